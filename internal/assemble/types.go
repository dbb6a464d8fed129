package assemble

import "fmt"

// Entry kinds.
const (
	KindAgent     = "agent"
	KindSkill     = "skill"
	KindReference = "reference"
)

// Entry is one element of the assembled payload.
type Entry struct {
	SourceID    string  `json:"sourceId"`
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Truncated   bool    `json:"truncated"`
	Score       float64 `json:"score"`
	CutOffset   int     `json:"cutOffset,omitempty"`
	Unavailable bool    `json:"unavailable,omitempty"`
	Path        string  `json:"path,omitempty"`
	Tokens      int     `json:"tokens,omitempty"`
}

// WarningKind classifies a non-fatal condition of a query.
type WarningKind string

const (
	BudgetExceeded    WarningKind = "BudgetExceeded"
	DeadlineExceeded  WarningKind = "DeadlineExceeded"
	ReferenceNotFound WarningKind = "ReferenceNotFound"
)

// Warning is attached to a result instead of failing it.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	SourceID string      `json:"sourceId,omitempty"`
	Path     string      `json:"path,omitempty"`
	Message  string      `json:"message"`
}

func (w Warning) String() string {
	if w.Path != "" {
		return fmt.Sprintf("%s: %s (%s)", w.Kind, w.Message, w.Path)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// Context is the ordered, budgeted payload of one query.
type Context struct {
	Entries  []Entry
	Warnings []Warning
	// Partial is set when the deadline passed before assembly finished.
	Partial bool
	Budget  int
	Used    int
}

// HasWarning reports whether a warning of kind k is attached.
func (c *Context) HasWarning(k WarningKind) bool {
	for _, w := range c.Warnings {
		if w.Kind == k {
			return true
		}
	}
	return false
}
