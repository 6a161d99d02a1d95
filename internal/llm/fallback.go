package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// DefaultMinTokens is the floor applied when a quota rejection halves the token budget.
const DefaultMinTokens = 48

// Call is one logical generation request for a pipeline role.
type Call struct {
	Role      string
	Primary   ProviderConfig
	Secondary *ProviderConfig
	Messages  []ChatMessage
}

// FailureSink receives every failed attempt, e.g. to persist a debug log.
type FailureSink interface {
	RecordFailure(role string, err error)
}

// Policy applies the provider fallback rules: one reduced-budget retry on quota
// rejection, then at most one call to the secondary provider.
type Policy struct {
	Invoker Invoker
	Logger  *zap.Logger
	Metrics interface {
		RecordModelAttempt(role, provider, outcome string)
		RecordQuotaRetry(role, provider string)
		RecordFallback(role, from, to string)
	}
	Failures  FailureSink
	MinTokens int
}

// Generate returns the first successful completion or an *ExhaustedError.
func (p *Policy) Generate(ctx context.Context, call Call) (string, error) {
	exhausted := &ExhaustedError{Role: call.Role}

	text, err := p.attempt(ctx, call.Role, call.Primary, call.Messages, exhausted)
	if err == nil {
		return text, nil
	}

	retry := call.Primary
	retry.MaxTokens = ReducedTokens(call.Primary.MaxTokens, p.MinTokens)
	if errors.Is(err, ErrQuotaExceeded) && retry.MaxTokens != call.Primary.MaxTokens {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", exhausted.cancelled(retry, ctxErr)
		}
		p.logger().Warn("quota exceeded, retrying with reduced token budget",
			zap.String("role", call.Role),
			zap.String("provider", call.Primary.String()),
			zap.Int("max_tokens", retry.MaxTokens),
		)
		if p.Metrics != nil {
			p.Metrics.RecordQuotaRetry(call.Role, string(call.Primary.Kind))
		}
		text, err = p.attempt(ctx, call.Role, retry, call.Messages, exhausted)
		if err == nil {
			return text, nil
		}
	}

	if call.Secondary == nil || !call.Secondary.Configured() {
		return "", exhausted
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", exhausted.cancelled(*call.Secondary, ctxErr)
	}

	p.logger().Warn("primary provider failed, using fallback",
		zap.String("role", call.Role),
		zap.String("primary", call.Primary.String()),
		zap.String("fallback", call.Secondary.String()),
		zap.Error(err),
	)
	if p.Metrics != nil {
		p.Metrics.RecordFallback(call.Role, string(call.Primary.Kind), string(call.Secondary.Kind))
	}
	text, err = p.attempt(ctx, call.Role, *call.Secondary, call.Messages, exhausted)
	if err == nil {
		return text, nil
	}
	return "", exhausted
}

func (p *Policy) attempt(ctx context.Context, role string, cfg ProviderConfig, msgs []ChatMessage, chain *ExhaustedError) (string, error) {
	if p.Invoker == nil {
		err := NewProviderError(string(cfg.Kind), cfg.Model, ErrTransport, 0, errors.New("no invoker configured"))
		chain.Attempts = append(chain.Attempts, Attempt{Provider: string(cfg.Kind), Model: cfg.Model, MaxTokens: cfg.MaxTokens, Err: err})
		return "", err
	}

	text, err := p.Invoker.Invoke(ctx, cfg, msgs)
	outcome := "ok"
	if err != nil {
		outcome = outcomeLabel(err)
	}
	if p.Metrics != nil {
		p.Metrics.RecordModelAttempt(role, string(cfg.Kind), outcome)
	}
	if err == nil {
		p.logger().Debug("model call succeeded",
			zap.String("role", role),
			zap.String("provider", cfg.String()),
			zap.Int("chars", len(text)),
		)
		return text, nil
	}

	chain.Attempts = append(chain.Attempts, Attempt{Provider: string(cfg.Kind), Model: cfg.Model, MaxTokens: cfg.MaxTokens, Err: err})
	p.logger().Warn("model call failed",
		zap.String("role", role),
		zap.String("provider", cfg.String()),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	if p.Failures != nil {
		p.Failures.RecordFailure(role, err)
	}
	return "", err
}

// cancelled records the call that was skipped because ctx ended.
func (e *ExhaustedError) cancelled(cfg ProviderConfig, ctxErr error) *ExhaustedError {
	e.Attempts = append(e.Attempts, Attempt{Provider: string(cfg.Kind), Model: cfg.Model, MaxTokens: cfg.MaxTokens, Err: ctxErr})
	return e
}

func (p *Policy) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// ReducedTokens halves budget, clamped to [floor, budget]. A non-positive budget
// yields the floor. A budget already at or below the floor comes back
// unchanged, and Generate then skips the quota retry.
func ReducedTokens(budget, floor int) int {
	if floor <= 0 {
		floor = DefaultMinTokens
	}
	if budget <= 0 {
		return floor
	}
	reduced := budget / 2
	if reduced < floor {
		reduced = floor
	}
	if reduced > budget {
		reduced = budget
	}
	return reduced
}

func outcomeLabel(err error) string {
	switch Classify(err) {
	case ErrQuotaExceeded:
		return "quota_exceeded"
	case ErrEmptyResponse:
		return "empty_response"
	default:
		return "transport_error"
	}
}
