package executor

import (
	"context"
	"fmt"

	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/oauth2coord"
	"github.com/blackcoderx/precog/pkg/rcontext"
)

// runOAuth2SubFlow implements §4.7.1. Any failure here is fatal — the run
// aborts.
func (e *Executor) runOAuth2SubFlow(ctx context.Context, authReq manifest.Request, hasAuthReq bool, initial *rcontext.Context) error {
	if !hasAuthReq {
		// A request literally named "env" stands in for the authorization
		// request itself (§9 open question: both spellings resolve the
		// same way).
		req, ok := e.manifest.RequestByName("env")
		if !ok {
			return fmt.Errorf("oauth2: manifest requires authorization but declares no interactiveOAuth2Authorization request and no \"env\" request")
		}
		authReq = req
	}

	state, err := oauth2coord.GenerateState()
	if err != nil {
		return err
	}
	stamped := initial.WithSystemVariable(rcontext.VarPrecogState, state)

	authorizeURLTemplate, _ := authReq.Args["authorizeUrl"].(string)
	authorizeURL, err := expr.Interpolate(authorizeURLTemplate, stamped)
	if err != nil {
		return fmt.Errorf("oauth2: interpolating authorizeUrl: %w", err)
	}

	resp, err := e.oauth.Run(ctx, authorizeURL, state)
	if err != nil {
		return err
	}

	// Edges in the wild reference either the literal "env" or the
	// authorization request's own name.
	e.history.Append("env", resp)
	e.history.Append(authReq.Name, resp)

	for _, edge := range e.manifest.EdgesFrom(authReq.Name) {
		children, err := e.resolver.Resolve(e.history, edge, stamped, false)
		if err != nil {
			return fmt.Errorf("oauth2: resolving token-exchange edge: %w", err)
		}
		for _, to := range edge.To {
			toReq, ok := e.manifest.RequestByName(to)
			if !ok {
				continue
			}
			for _, child := range children {
				if err := e.runTokenExchangeLeg(ctx, toReq, child); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Executor) runTokenExchangeLeg(ctx context.Context, toReq manifest.Request, child *rcontext.Context) error {
	url, err := expr.Interpolate(toReq.URL, child)
	if err != nil {
		return fmt.Errorf("oauth2: interpolating token-exchange URL for %s: %w", toReq.Name, err)
	}

	e.recordRatelimits(toReq.Transformers)
	resp, err := e.httpClient.Request(ctx, toReq, url, child)
	if err != nil {
		return fmt.Errorf("oauth2: token-exchange request %s: %w", toReq.Name, err)
	}
	e.history.Append(toReq.Name, resp)

	// Run outgoing edges' selects for their authy side effects without
	// executing their targets.
	for _, chainEdge := range e.manifest.EdgesFrom(toReq.Name) {
		if _, err := e.resolver.Resolve(e.history, chainEdge, child, false); err != nil {
			return fmt.Errorf("oauth2: resolving chained authy edge from %s: %w", toReq.Name, err)
		}
	}
	return nil
}
