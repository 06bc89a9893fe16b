package executor

import (
	"context"
	"strings"

	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/httpmodel"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/rcontext"
)

// traverse implements §4.7.4: resolve one request's URL, issue it if not
// already visited, then recurse into its dependency edges.
func (e *Executor) traverse(ctx context.Context, name string, rc *rcontext.Context) {
	req, ok := e.manifest.RequestByName(name)
	if !ok || req.Function != "" {
		return
	}

	url, ok := e.resolveEntryURL(req, rc)
	if !ok {
		e.debugf("skip %s: unresolved URL placeholder", name)
		return
	}

	urlKey := name + ":" + url
	if e.visited[urlKey] {
		e.debugf("skip %s: already visited %s", name, urlKey)
		return
	}
	e.visited[urlKey] = true
	e.total++
	e.recordRatelimits(req.Transformers)

	resp, err := e.httpClient.Request(ctx, req, url, rc)
	if err != nil {
		e.recordError(name, err.Error())
		return
	}
	e.history.Append(name, resp)
	e.successful++
	e.debugf("issued %s -> %d", urlKey, resp.Status)

	for _, edge := range e.manifest.EdgesFrom(name) {
		if edge.LoadType == manifest.LoadTypeDelta {
			continue
		}
		e.followEdge(ctx, edge, name, resp, rc)
	}
}

func (e *Executor) followEdge(ctx context.Context, edge manifest.Edge, fromName string, latest *httpmodel.Response, rc *rcontext.Context) {
	latestOnly := false
	if isPaginationEdge(edge) {
		if paginationExhausted(latest) {
			e.debugf("pagination exhausted for %s", fromName)
			return
		}
		latestOnly = true
	}

	children, err := e.resolver.Resolve(e.history, edge, rc, latestOnly)
	if err != nil {
		e.recordError(fromName, err.Error())
		return
	}
	if len(children) == 0 {
		return
	}

	authState, err := e.store.Load()
	if err != nil {
		e.recordError(fromName, err.Error())
		return
	}
	for _, child := range children {
		child.AuthState = authState
	}

	for _, to := range edge.To {
		for _, child := range children {
			e.traverse(ctx, to, child)
		}
	}
}

// isPaginationEdge: a self-edge whose `to` contains a "_paged" name that
// also appears in `from`.
func isPaginationEdge(edge manifest.Edge) bool {
	for _, to := range edge.To {
		if strings.Contains(to, "_paged") && edge.FromContains(to) {
			return true
		}
	}
	return false
}

// paginationExhausted reports whether body.next is null, absent, or empty.
func paginationExhausted(resp *httpmodel.Response) bool {
	body, ok := resp.Body.(map[string]interface{})
	if !ok {
		return true
	}
	next, exists := body["next"]
	if !exists || next == nil {
		return true
	}
	if s, ok := next.(string); ok && s == "" {
		return true
	}
	return false
}

// resolveEntryURL implements the two-stage interpolation of §4.7.4 step 2-3:
// first against extractedData alone, then — if a placeholder remains —
// against the full context. Any placeholder still unresolved after both
// passes means skip.
func (e *Executor) resolveEntryURL(req manifest.Request, rc *rcontext.Context) (string, bool) {
	stage1 := expr.InterpolateTolerant(req.URL, expr.MapVars(rc.ExtractedData))
	if !expr.HasPlaceholder(stage1) {
		return stage1, true
	}
	stage2 := expr.InterpolateTolerant(stage1, rc)
	if expr.HasPlaceholder(stage2) {
		return "", false
	}
	return stage2, true
}
