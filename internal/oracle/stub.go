package oracle

import (
	"context"

	"fx-backtest-lab/internal/domain"
)

// StubOracle replays a scripted sequence of decisions. Once the script is
// exhausted it keeps answering NO_TRADE.
type StubOracle struct {
	Script []ScriptEntry
	Calls  int
}

// ScriptEntry is one scripted oracle response.
type ScriptEntry struct {
	Decision *domain.Decision
	Err      error
}

var _ Oracle = (*StubOracle)(nil)

// Decide returns the next scripted entry.
func (s *StubOracle) Decide(_ context.Context, _ domain.DecisionContext) (*domain.Decision, error) {
	i := s.Calls
	s.Calls++
	if i >= len(s.Script) {
		return &domain.Decision{Verdict: domain.VerdictNoTrade}, nil
	}
	entry := s.Script[i]
	if entry.Err != nil {
		return nil, entry.Err
	}
	return entry.Decision, nil
}
