package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConsistency is wrapped by every ConsistencyError.
var ErrConsistency = errors.New("taxonomy: inconsistent source data")

// Conflict describes one consistency problem found while merging sources.
type Conflict struct {
	Subject string   // entity ID or entity.property key
	Message string   // what is wrong
	Sources []string // sources involved, in ingestion order
}

func (c Conflict) String() string {
	if len(c.Sources) == 0 {
		return fmt.Sprintf("%s: %s", c.Subject, c.Message)
	}
	return fmt.Sprintf("%s: %s [sources: %s]", c.Subject, c.Message, strings.Join(c.Sources, ", "))
}

// ConsistencyError aggregates every conflict found by Build so a caller can
// fix all of them in one pass.
type ConsistencyError struct {
	Conflicts []Conflict
}

func (e *ConsistencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d consistency conflict(s):", len(e.Conflicts))
	for _, c := range e.Conflicts {
		b.WriteString("\n  - ")
		b.WriteString(c.String())
	}
	return b.String()
}

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

// IsConsistencyErr returns true if err is or wraps a consistency failure.
func IsConsistencyErr(err error) bool {
	return errors.Is(err, ErrConsistency)
}
