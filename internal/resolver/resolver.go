// Package resolver answers queries against the current corpus snapshot:
// match the task, then assemble a budgeted context from the matches.
package resolver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/assemble"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/search"
	"github.com/pannonia-mickey/ClaudeCodeSkills-sub005/internal/snapshot"
)

// Query is one resolve request.
type Query struct {
	Task   string
	Budget int
	// Agent restricts matching to one agent id when set.
	Agent string
	// Deadline bounds matching and assembly; zero means none.
	Deadline time.Duration
	// References are reference paths the caller explicitly asks for.
	References []string
}

// Result is the assembled context of a query together with how it was
// chosen.
type Result struct {
	Entries  []assemble.Entry     `json:"entries"`
	Warnings []assemble.Warning   `json:"warnings,omitempty"`
	Matches  []search.MatchResult `json:"matches"`
	Partial  bool                 `json:"partial,omitempty"`
	Budget   int                  `json:"budget"`
	Used     int                  `json:"used"`
	// SnapshotVersion is the version of the snapshot the query ran on.
	SnapshotVersion uint64 `json:"snapshotVersion"`
}

// HasWarning reports whether a warning of kind k is attached.
func (r *Result) HasWarning(k assemble.WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}

// Engine resolves queries. It is safe for concurrent use; every query runs
// on the snapshot that was current when it started.
type Engine struct {
	mgr     *snapshot.Manager
	matcher *search.Matcher
	log     *zap.Logger
}

// New returns an engine over mgr. A nil logger discards output.
func New(mgr *snapshot.Manager, opts search.Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{mgr: mgr, matcher: search.NewMatcher(opts), log: log.Named("resolve")}
}

// Matcher returns the engine's matcher.
func (e *Engine) Matcher() *search.Matcher { return e.matcher }

// Resolve matches q.Task and assembles the context for it.
//
// A query nothing matches confidently fails with *search.NoConfidentMatch.
// Any other error is an *InternalError. Problems with single references or
// the deadline are reported as warnings on a successful result.
func (e *Engine) Resolve(ctx context.Context, q Query) (*Result, error) {
	if q.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Deadline)
		defer cancel()
	}

	snap, err := e.mgr.Acquire()
	if err != nil {
		return nil, internal("acquire snapshot", err)
	}
	defer snap.Release()

	start := time.Now()
	m, err := e.matcher.Match(ctx, snap, q.Task, q.Agent)
	if err != nil {
		var ncm *search.NoConfidentMatch
		if errors.As(err, &ncm) {
			e.log.Debug("no confident match",
				zap.Uint64("version", snap.Version()),
				zap.Int("candidates", len(ncm.Candidates)))
			return nil, err
		}
		return nil, internal("match", err)
	}

	c, err := assemble.New(snap, snap.References()).Assemble(ctx, assemble.Request{
		Query:      q.Task,
		Matches:    m.Matches,
		Budget:     q.Budget,
		References: q.References,
	})
	if err != nil {
		return nil, internal("assemble", err)
	}

	res := &Result{
		Entries:         c.Entries,
		Matches:         m.Matches,
		Partial:         m.Partial || c.Partial,
		Budget:          c.Budget,
		Used:            c.Used,
		SnapshotVersion: snap.Version(),
	}
	if m.Partial {
		res.Warnings = append(res.Warnings, assemble.Warning{
			Kind:    assemble.DeadlineExceeded,
			Message: "deadline passed while matching, ranking is partial",
		})
	}
	res.Warnings = append(res.Warnings, c.Warnings...)

	e.log.Debug("resolved",
		zap.Uint64("version", snap.Version()),
		zap.String("top", m.Top().ID),
		zap.Int("entries", len(res.Entries)),
		zap.Int("used", res.Used),
		zap.Int("budget", res.Budget),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// ResolveTask is Resolve without a caller context. A nil agent means no
// explicit agent.
func (e *Engine) ResolveTask(task string, budget int, agent *string, deadline time.Duration) (*Result, error) {
	q := Query{Task: task, Budget: budget, Deadline: deadline}
	if agent != nil {
		q.Agent = *agent
	}
	return e.Resolve(context.Background(), q)
}
