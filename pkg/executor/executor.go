// Package executor drives the graph traversal: entry-point discovery,
// per-request recursion over dependency edges, pagination control, dataset
// aggregation, and the run summary.
package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/blackcoderx/precog/pkg/authstate"
	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/history"
	"github.com/blackcoderx/precog/pkg/httpclient"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/oauth2coord"
	"github.com/blackcoderx/precog/pkg/rcontext"
	"github.com/blackcoderx/precog/pkg/resolver"
	"github.com/blackcoderx/precog/pkg/tokenstore"
	"github.com/blackcoderx/precog/pkg/transform"
)

// Options configures one run.
type Options struct {
	OutputDir    string
	RedirectPort int
	RedirectURI  string
	ForceReauth  bool
	Debug        bool
	BrowserOpen  oauth2coord.BrowserOpener
}

// Result is the run summary (§4.7, §7).
type Result struct {
	ManifestID      string
	Duration        time.Duration
	Total           int
	Successful      int
	Failed          int
	UniqueEndpoints int
	Errors          []string
	Ratelimits      []string
}

// Executor holds everything wired for a single run. Construct with New and
// call Run once.
type Executor struct {
	manifest   *manifest.Manifest
	store      *tokenstore.Store
	history    *history.History
	pipeline   *transform.Pipeline
	httpClient *httpclient.Client
	resolver   *resolver.Resolver
	oauth      *oauth2coord.Coordinator
	opts       Options

	visited        map[string]bool
	errorCounts    map[string]int
	errorOrder     []string
	total          int
	successful     int
	failed         int
	ratelimitSeen  map[string]bool
	ratelimitNotes []string
}

// New wires every component for m using credentialsBaseDir as the Token
// Store's root directory (usually the process working directory).
func New(m *manifest.Manifest, credentialsBaseDir string, opts Options) *Executor {
	if opts.RedirectPort == 0 {
		opts.RedirectPort = 3000
	}
	store := tokenstore.New(credentialsBaseDir, m.ID)
	pipeline := transform.New(m)
	return &Executor{
		manifest:      m,
		store:         store,
		history:       history.New(),
		pipeline:      pipeline,
		httpClient:    httpclient.New(pipeline),
		resolver:      resolver.New(store),
		oauth:         oauth2coord.New(oauth2coord.Config{Port: opts.RedirectPort, RedirectURI: opts.RedirectURI, Opener: opts.BrowserOpen}),
		opts:          opts,
		visited:       map[string]bool{},
		errorCounts:   map[string]int{},
		ratelimitSeen: map[string]bool{},
	}
}

// recordRatelimits surfaces each named transformer's ratelimits descriptor
// (§4.3, §4.7.5) into the run summary the first time that transformer is
// seen — it is introspection only, never enforcement.
func (e *Executor) recordRatelimits(names []string) {
	for _, name := range names {
		if e.ratelimitSeen[name] {
			continue
		}
		t, ok := e.manifest.TransformerByName(name)
		if !ok {
			continue
		}
		e.ratelimitSeen[name] = true
		e.ratelimitNotes = append(e.ratelimitNotes, transform.RatelimitDescriptor(t)...)
	}
}

// Run executes the full run lifecycle (§4.7.1-4.7.5) and returns the
// summary.
func (e *Executor) Run(ctx context.Context, credentials map[string]interface{}) (*Result, error) {
	start := time.Now()

	authState, err := e.loadOrClearAuth()
	if err != nil {
		return nil, err
	}

	authReq, hasAuthReq := e.findOAuth2Request()
	requiresOAuth2 := hasAuthReq
	if _, hasEnv := e.manifest.RequestByName("env"); hasEnv {
		requiresOAuth2 = true
	}

	redirectURI := e.oauth.RedirectURI()
	systemVariables := map[string]interface{}{
		rcontext.VarPrecogRootURI:     redirectURI,
		rcontext.VarPrecogRedirectURI: redirectURI,
		rcontext.VarWskRedirectURI:    redirectURI,
	}

	if requiresOAuth2 {
		initial := rcontext.New(credentials, authState, systemVariables)
		if err := e.runOAuth2SubFlow(ctx, authReq, hasAuthReq, initial); err != nil {
			return nil, err
		}
		authState, err = e.store.Load()
		if err != nil {
			return nil, fmt.Errorf("executor: reloading auth state after oauth2: %w", err)
		}
	}

	adjacent := e.oauth2AdjacentRequests(authReq, hasAuthReq)

	initial := rcontext.New(credentials, authState, systemVariables)
	for _, req := range e.manifest.Reqs {
		if !e.isEntryPoint(req, adjacent) {
			continue
		}
		e.debugf("entry point: %s", req.Name)
		e.traverse(ctx, req.Name, initial)
	}

	if err := e.writeDatasets(); err != nil {
		return nil, err
	}

	result := &Result{
		ManifestID:      e.manifest.ID,
		Duration:        time.Since(start),
		Total:           e.total,
		Successful:      e.successful,
		Failed:          e.failed,
		UniqueEndpoints: len(e.visited),
		Errors:          e.formattedErrors(),
		Ratelimits:      e.ratelimitNotes,
	}
	return result, nil
}

func (e *Executor) loadOrClearAuth() (*authstate.State, error) {
	if e.opts.ForceReauth {
		if err := e.store.Clear(); err != nil {
			return nil, fmt.Errorf("executor: clearing auth state: %w", err)
		}
		return authstate.New(), nil
	}
	st, err := e.store.Load()
	if err != nil {
		return nil, fmt.Errorf("executor: loading auth state: %w", err)
	}
	return st, nil
}

func (e *Executor) findOAuth2Request() (manifest.Request, bool) {
	for _, r := range e.manifest.Reqs {
		if r.Function == manifest.FunctionInteractiveOAuth2Authorization {
			return r, true
		}
	}
	return manifest.Request{}, false
}

// isEntryPoint implements §4.7.2.
func (e *Executor) isEntryPoint(req manifest.Request, adjacent map[string]bool) bool {
	if req.URL == "" {
		return false
	}
	if expr.HasPlaceholder(req.URL) {
		return false
	}
	for _, v := range req.Headers {
		if expr.HasPlaceholder(v) {
			return false
		}
	}
	if req.Name == "env" {
		return false
	}
	if adjacent[req.Name] {
		return false
	}
	return true
}

// oauth2AdjacentRequests computes the exclusion set: the authorization
// request itself, plus every request reachable as a `to` in an edge whose
// `from` contains it.
func (e *Executor) oauth2AdjacentRequests(authReq manifest.Request, has bool) map[string]bool {
	adjacent := map[string]bool{}
	if !has {
		req, ok := e.manifest.RequestByName("env")
		if !ok {
			return adjacent
		}
		authReq = req
	}
	adjacent[authReq.Name] = true
	for _, edge := range e.manifest.EdgesFrom(authReq.Name) {
		for _, to := range edge.To {
			adjacent[to] = true
		}
	}
	return adjacent
}

func (e *Executor) recordError(requestName, message string) {
	e.failed++
	key := requestName + ": " + truncate(message, 200)
	if _, ok := e.errorCounts[key]; !ok {
		e.errorOrder = append(e.errorOrder, key)
	}
	e.errorCounts[key]++
}

func (e *Executor) formattedErrors() []string {
	out := make([]string, 0, len(e.errorOrder))
	for _, key := range e.errorOrder {
		out = append(out, fmt.Sprintf("%s (x%d)", key, e.errorCounts[key]))
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (e *Executor) debugf(format string, args ...interface{}) {
	if !e.opts.Debug {
		return
	}
	fmt.Fprintf(os.Stderr, "[precog] "+format+"\n", args...)
}

func slugify(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, "_")
}
