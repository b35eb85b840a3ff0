package idgen

import "fmt"

// Sequence issues monotonically increasing ids within a single run.
// Not safe for concurrent use; each run owns its own Sequence, matching
// the single-writer model of the simulation loop.
type Sequence struct {
	prefix string
	next   int64
}

// NewSequence creates a sequence whose ids share the given prefix.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next id in the sequence, e.g. "ord-000001".
func (s *Sequence) Next(kind string) string {
	s.next++
	if s.prefix == "" {
		return fmt.Sprintf("%s-%06d", kind, s.next)
	}
	return fmt.Sprintf("%s-%s-%06d", s.prefix, kind, s.next)
}
