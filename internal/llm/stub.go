package llm

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/alanyoungcy/polyseek/internal/domain"
)

const (
	stubPlan = `{"analysis_plan":["Review market pricing and liquidity","Weigh external signals","List open uncertainties"],` +
		`"key_questions":["What moves the YES price?"],"information_gaps":["No live data in stub mode"]}`
	stubCritique = `{"gaps":["Evidence base is synthetic"],"follow_up_queries":["latest news on the market question"],` +
		`"biases":["Anchoring on the current price"],"recommendations":["Treat the verdict as a placeholder"]}`
	stubResult = `{"verdict":"UNCERTAIN","confidence_pct":50.0,` +
		`"summary":"Deterministic stub analysis. The completion backend is disabled.",` +
		`"key_drivers":[{"text":"Market price is the only available evidence","source_ids":["SRC_STUB"]}],` +
		`"uncertainty_factors":["No model was consulted"],` +
		`"next_steps":["Configure an API key for a live analysis"],` +
		`"sources":[{"id":"SRC_STUB","title":"Stub completion","url":"","type":"market","sentiment":"neutral"}]}`
)

// Stub is a deterministic CompletionService. It recognizes the deep-mode
// plan and critique prompts by the JSON keys they ask for and answers every
// other prompt with a valid UNCERTAIN analysis.
type Stub struct {
	calls atomic.Int64
}

var _ domain.CompletionService = (*Stub)(nil)

// NewStub creates a Stub.
func NewStub() *Stub {
	return &Stub{}
}

// Complete returns the canned response for the request's stage.
func (s *Stub) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.CompletionError{Cause: domain.CauseTransport, Err: err}
	}
	s.calls.Add(1)

	var user string
	for _, m := range req.Messages {
		if m.Role == domain.RoleUser {
			user = m.Content
		}
	}
	switch {
	case strings.Contains(user, `"follow_up_queries"`):
		return stubCritique, nil
	case strings.Contains(user, `"information_gaps"`):
		return stubPlan, nil
	default:
		return stubResult, nil
	}
}

// Calls returns how many completions were served.
func (s *Stub) Calls() int64 {
	return s.calls.Load()
}
