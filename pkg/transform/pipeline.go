// Package transform applies a request's declared transformers — header
// injection plus retry/reauth/fail response classification.
package transform

import (
	"fmt"
	"time"

	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/httpmodel"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/rcontext"
	"golang.org/x/time/rate"
)

const (
	defaultRetries      = 3
	defaultInitialDelay = 1000 * time.Millisecond
	defaultMaxWait      = 60000 * time.Millisecond
)

// Pipeline resolves transformer names against a manifest's transformer
// definitions.
type Pipeline struct {
	manifest *manifest.Manifest
}

// New builds a Pipeline bound to m's transformer definitions.
func New(m *manifest.Manifest) *Pipeline {
	return &Pipeline{manifest: m}
}

func (p *Pipeline) resolve(names []string) []manifest.Transformer {
	out := make([]manifest.Transformer, 0, len(names))
	for _, name := range names {
		if t, ok := p.manifest.TransformerByName(name); ok {
			out = append(out, t)
		}
	}
	return out
}

// ApplyToRequest interpolates and merges every named transformer's headers
// into req.Headers. Later transformers in the list override earlier ones on
// header-name conflict.
func (p *Pipeline) ApplyToRequest(names []string, req *httpmodel.Request, ctx *rcontext.Context) error {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	for _, t := range p.resolve(names) {
		for k, v := range t.Headers {
			rendered, err := expr.Interpolate(v, ctx)
			if err != nil {
				return fmt.Errorf("transform %s: header %s: %w", t.Name, k, err)
			}
			req.Headers[k] = rendered
		}
	}
	return nil
}

func classifierContext(ctx *rcontext.Context, status int, body interface{}) *rcontext.Context {
	return ctx.WithExtracted(map[string]interface{}{
		"response": body,
		"status":   float64(status),
	})
}

func conditionMatches(c manifest.Condition, status int, ctx *rcontext.Context) bool {
	if c.Status != nil && *c.Status == status {
		return true
	}
	if c.Expr == "" {
		return false
	}
	v, err := expr.Eval(c.Expr, ctx)
	if err != nil {
		// An unresolved variable or malformed expression is treated as
		// non-matching, not fatal, at a classifier call site.
		return false
	}
	return truthyClassifierResult(v)
}

func truthyClassifierResult(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	default:
		return true
	}
}

// RetryDecision is the outcome of ShouldRetry.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// ShouldRetry matches resp against every retrywhere condition of every
// named transformer, in order, returning on the first match. A policy with
// retries N retries after attempts 1 through N, so a request is tried at
// most N+1 times under it.
func (p *Pipeline) ShouldRetry(names []string, resp *httpmodel.Response, attempt int, ctx *rcontext.Context) RetryDecision {
	augmented := classifierContext(ctx, resp.Status, resp.Body)
	for _, t := range p.resolve(names) {
		if t.RetryWhere == nil {
			continue
		}
		for _, cond := range t.RetryWhere.Conditions {
			if !conditionMatches(cond, resp.Status, augmented) {
				continue
			}
			retries := defaultRetries
			if t.RetryWhere.Retries != nil {
				retries = *t.RetryWhere.Retries
			}
			if attempt > retries {
				return RetryDecision{Retry: false}
			}
			initialDelay := defaultInitialDelay
			if t.RetryWhere.InitialDelay != nil {
				initialDelay = time.Duration(*t.RetryWhere.InitialDelay) * time.Millisecond
			}
			maxWait := defaultMaxWait
			if t.RetryWhere.MaxWait != nil {
				maxWait = time.Duration(*t.RetryWhere.MaxWait) * time.Millisecond
			}
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxWait {
				delay = maxWait
			}
			return RetryDecision{Retry: true, Delay: delay}
		}
	}
	return RetryDecision{Retry: false}
}

// ShouldReauth matches resp against every reauthwhere condition.
func (p *Pipeline) ShouldReauth(names []string, resp *httpmodel.Response, ctx *rcontext.Context) bool {
	augmented := classifierContext(ctx, resp.Status, resp.Body)
	for _, t := range p.resolve(names) {
		for _, cond := range t.ReauthWhere {
			if conditionMatches(cond, resp.Status, augmented) {
				return true
			}
		}
	}
	return false
}

// FailDecision is the outcome of ShouldFail.
type FailDecision struct {
	Fail    bool
	Message string
}

const defaultFailMessage = "request failed a configured fail condition"

// ShouldFail matches resp against every failwhere condition.
func (p *Pipeline) ShouldFail(names []string, resp *httpmodel.Response, ctx *rcontext.Context) FailDecision {
	augmented := classifierContext(ctx, resp.Status, resp.Body)
	for _, t := range p.resolve(names) {
		for _, cond := range t.FailWhere {
			if !conditionMatches(cond, resp.Status, augmented) {
				continue
			}
			message := cond.Message
			if message == "" {
				message = defaultFailMessage
			}
			return FailDecision{Fail: true, Message: message}
		}
	}
	return FailDecision{Fail: false}
}

// RatelimitDescriptor renders a transformer's ratelimits as an advisory,
// non-enforcing string for the run summary — e.g. "items: 5 req/s
// (advisory, not enforced)". rate.Limit is used only to express the
// frequency in a standard unit; no rate.Limiter is ever constructed, so
// nothing here throttles a request.
func RatelimitDescriptor(t manifest.Transformer) []string {
	var out []string
	for _, rl := range t.Ratelimits {
		if rl.Requests == 0 {
			continue
		}
		per := rl.Per
		if per == "" {
			per = "s"
		}
		freq := rate.Limit(rl.Requests)
		out = append(out, fmt.Sprintf("%s: %v req/%s (advisory, not enforced)", t.Name, freq, per))
	}
	return out
}
