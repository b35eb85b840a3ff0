package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"fx-backtest-lab/internal/domain"
	"fx-backtest-lab/internal/idgen"
)

// OpenAIOracle asks an OpenAI chat model for trade decisions in two stages:
// a cheap screening pass that filters out uninteresting windows, then a
// full decision pass that must answer with a strict JSON payload.
type OpenAIOracle struct {
	client         *openai.Client
	screeningModel string
	decisionModel  string
	maxRetry       time.Duration
	logger         zerolog.Logger
}

// OpenAIOracleOptions holds options for creating an OpenAIOracle.
type OpenAIOracleOptions struct {
	APIKey         string
	ScreeningModel string
	DecisionModel  string
	MaxRetry       time.Duration
}

// NewOpenAIOracle creates a new OpenAI-backed oracle.
func NewOpenAIOracle(opts OpenAIOracleOptions) *OpenAIOracle {
	if opts.ScreeningModel == "" {
		opts.ScreeningModel = openai.GPT4oMini
	}
	if opts.DecisionModel == "" {
		opts.DecisionModel = openai.GPT4o
	}
	if opts.MaxRetry == 0 {
		opts.MaxRetry = 60 * time.Second
	}
	return &OpenAIOracle{
		client:         openai.NewClient(opts.APIKey),
		screeningModel: opts.ScreeningModel,
		decisionModel:  opts.DecisionModel,
		maxRetry:       opts.MaxRetry,
		logger:         log.With().Str("component", "openai_oracle").Logger(),
	}
}

var _ Oracle = (*OpenAIOracle)(nil)

// decisionPayload is the JSON contract the decision model must honor.
type decisionPayload struct {
	Verdict    string  `json:"verdict"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	LotSize    float64 `json:"lot_size"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Decide runs the two-stage analysis over the given context.
func (o *OpenAIOracle) Decide(ctx context.Context, dctx domain.DecisionContext) (*domain.Decision, error) {
	decisionID := idgen.NewRunID()

	worth, err := o.screen(ctx, dctx)
	if err != nil {
		return nil, fmt.Errorf("%w: screening: %v", ErrAnalysis, err)
	}
	if !worth {
		o.logger.Debug().Str("symbol", dctx.Symbol).Msg("screening declined window")
		return &domain.Decision{ID: decisionID, Verdict: domain.VerdictNoTrade}, nil
	}

	payload, err := o.fullDecision(ctx, dctx)
	if err != nil {
		return nil, fmt.Errorf("%w: decision: %v", ErrAnalysis, err)
	}

	decision := &domain.Decision{
		ID:         decisionID,
		Verdict:    domain.VerdictNoTrade,
		Confidence: payload.Confidence,
		Reasoning:  payload.Reasoning,
	}
	if strings.EqualFold(payload.Verdict, string(domain.VerdictTrade)) {
		params := &domain.TradeParams{
			Side:       domain.Side(strings.ToUpper(payload.Side)),
			EntryPrice: payload.EntryPrice,
			StopLoss:   payload.StopLoss,
			TakeProfit: payload.TakeProfit,
			LotSize:    payload.LotSize,
		}
		// Inconsistent params degrade the verdict rather than failing
		// the whole iteration.
		if err := ValidateParams(params); err != nil {
			o.logger.Warn().Err(err).Str("symbol", dctx.Symbol).Msg("model returned invalid trade params")
			return decision, nil
		}
		decision.Verdict = domain.VerdictTrade
		decision.Params = params
	}
	return decision, nil
}

// screen asks the screening model a yes/no question about the window.
func (o *OpenAIOracle) screen(ctx context.Context, dctx domain.DecisionContext) (bool, error) {
	prompt := dctx.ScreeningPrompt
	if prompt == "" {
		prompt = defaultScreeningPrompt
	}

	resp, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.screeningModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: formatContext(dctx)},
		},
	})
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(resp), "YES"), nil
}

// fullDecision asks the decision model for the strict JSON payload,
// attaching rendered charts when available.
func (o *OpenAIOracle) fullDecision(ctx context.Context, dctx domain.DecisionContext) (*decisionPayload, error) {
	prompt := dctx.DecisionPrompt
	if prompt == "" {
		prompt = defaultDecisionPrompt
	}

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(dctx.Charts) > 0 {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: formatContext(dctx)},
		}
		for _, img := range dctx.Charts {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
				},
			})
		}
		userMsg.MultiContent = parts
	} else {
		userMsg.Content = formatContext(dctx)
	}

	resp, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.decisionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			userMsg,
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}

	var payload decisionPayload
	dec := json.NewDecoder(strings.NewReader(resp))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &payload, nil
}

// complete issues one chat completion with bounded retries.
func (o *OpenAIOracle) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var content string
	operation := func() error {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = o.maxRetry

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return content, nil
}

// formatContext renders the look-back window as text for the model.
func formatContext(dctx domain.DecisionContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s\nWindow: %s to %s\n",
		dctx.Symbol,
		dctx.WindowStart.Format(time.RFC3339),
		dctx.WindowEnd.Format(time.RFC3339))

	for _, res := range []domain.Resolution{
		domain.ResolutionD1, domain.ResolutionH4, domain.ResolutionH1,
		domain.ResolutionM15, domain.ResolutionM5, domain.ResolutionM1,
	} {
		candles := dctx.Candles[res]
		if len(candles) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s candles (%d):\n", res, len(candles))
		for _, c := range candles {
			fmt.Fprintf(&sb, "%s O=%.5f H=%.5f L=%.5f C=%.5f V=%d\n",
				c.Timestamp.Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.TickVolume)
		}
	}
	return sb.String()
}

const defaultScreeningPrompt = `You are a forex market screener. Given recent candle data,
answer YES if the market shows a tradeable setup worth deeper analysis, otherwise NO.
Answer with a single word.`

const defaultDecisionPrompt = `You are a forex trading analyst. Given recent candle data and charts,
decide whether to place a trade. Respond with a JSON object with exactly these fields:
verdict ("TRADE" or "NO_TRADE"), side ("BUY" or "SELL"), entry_price, stop_loss,
take_profit, lot_size (0 for default), confidence (0 to 1), reasoning (short string).
For a BUY the stop_loss must be below entry_price and take_profit above it; mirrored for SELL.`
