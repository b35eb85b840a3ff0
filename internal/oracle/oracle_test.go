package oracle

import (
	"context"
	"errors"
	"testing"

	"fx-backtest-lab/internal/domain"
)

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name    string
		params  *domain.TradeParams
		wantErr bool
	}{
		{
			name: "valid buy",
			params: &domain.TradeParams{
				Side: domain.SideBuy, EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100,
			},
		},
		{
			name: "valid sell",
			params: &domain.TradeParams{
				Side: domain.SideSell, EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.0900,
			},
		},
		{
			name:    "nil params",
			wantErr: true,
		},
		{
			name: "unknown side",
			params: &domain.TradeParams{
				Side: "HOLD", EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100,
			},
			wantErr: true,
		},
		{
			name: "buy with stop above entry",
			params: &domain.TradeParams{
				Side: domain.SideBuy, EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.1100,
			},
			wantErr: true,
		},
		{
			name: "sell with target above entry",
			params: &domain.TradeParams{
				Side: domain.SideSell, EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.1100,
			},
			wantErr: true,
		},
		{
			name: "zero price",
			params: &domain.TradeParams{
				Side: domain.SideBuy, EntryPrice: 0, StopLoss: 1.0950, TakeProfit: 1.1100,
			},
			wantErr: true,
		},
		{
			name: "negative lot",
			params: &domain.TradeParams{
				Side: domain.SideBuy, EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100,
				LotSize: -0.01,
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateParams(tc.params)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateParams() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestStubOracle_ReplaysScript(t *testing.T) {
	scriptErr := errors.New("boom")
	stub := &StubOracle{Script: []ScriptEntry{
		{Decision: &domain.Decision{Verdict: domain.VerdictTrade}},
		{Err: scriptErr},
	}}

	d, err := stub.Decide(context.Background(), domain.DecisionContext{})
	if err != nil || d.Verdict != domain.VerdictTrade {
		t.Fatalf("first call: got %v, %v", d, err)
	}

	if _, err := stub.Decide(context.Background(), domain.DecisionContext{}); !errors.Is(err, scriptErr) {
		t.Fatalf("second call: expected scripted error, got %v", err)
	}

	// Exhausted scripts answer NO_TRADE.
	d, err = stub.Decide(context.Background(), domain.DecisionContext{})
	if err != nil || d.Verdict != domain.VerdictNoTrade {
		t.Fatalf("third call: got %v, %v", d, err)
	}

	if stub.Calls != 3 {
		t.Errorf("expected 3 recorded calls, got %d", stub.Calls)
	}
}
