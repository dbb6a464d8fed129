package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_RescansAfterChange(t *testing.T) {
	root := corpus(t)
	m := newManager(t, root)
	_, err := m.Rescan(context.Background())
	require.NoError(t, err)

	reports := make(chan *Report, 8)
	w, err := NewWatcher(m, 50*time.Millisecond, func(r *Report, err error) {
		if err == nil {
			reports <- r
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	writeFile(t, root, "skills/routing/SKILL.md", "---\nname: routing\ndescription: Routing\n---\nbody\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-reports:
			if r.Changed {
				s, err := m.Acquire()
				require.NoError(t, err)
				_, ok := s.Manifest("routing")
				s.Release()
				if ok {
					return
				}
			}
		case <-deadline:
			t.Fatal("watcher did not publish a snapshot with the new skill")
		}
	}
}
