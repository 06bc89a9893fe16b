// Package oauth2coord drives the interactive OAuth2 authorization-code leg:
// a local callback listener, CSRF state validation, and a synthetic
// response the dependency resolver can select values out of exactly like
// any other HTTP response.
package oauth2coord

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/blackcoderx/precog/pkg/httpmodel"
)

const (
	defaultPort    = 3000
	callbackPath   = "/callback"
	globalTimeout  = 5 * time.Minute
	autoCloseDelay = 2 * time.Second
)

// Error reports any failure in the interactive flow. It is always fatal —
// the run aborts.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "oauth2: " + e.Reason
}

// BrowserOpener abstracts launching the user's default browser, so tests
// can inject a no-op.
type BrowserOpener interface {
	Open(url string) error
}

// OSBrowserOpener shells out to the platform's URL opener.
type OSBrowserOpener struct{}

// Open launches the platform-default browser at url.
func (OSBrowserOpener) Open(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}

// Config configures a Coordinator.
type Config struct {
	Port        int
	RedirectURI string // overrides the derived http://localhost:<port>/callback
	Opener      BrowserOpener
	Timeout     time.Duration
}

// Coordinator drives one interactive authorization-code exchange at a time.
type Coordinator struct {
	cfg Config
}

// New builds a Coordinator, filling in defaults for zero-valued fields.
func New(cfg Config) *Coordinator {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Opener == nil {
		cfg.Opener = OSBrowserOpener{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = globalTimeout
	}
	return &Coordinator{cfg: cfg}
}

// RedirectURI returns the callback URI this Coordinator listens on.
func (c *Coordinator) RedirectURI() string {
	if c.cfg.RedirectURI != "" {
		return c.cfg.RedirectURI
	}
	return fmt.Sprintf("http://localhost:%d%s", c.cfg.Port, callbackPath)
}

// GenerateState returns a fresh 32-byte, hex-encoded CSRF state value.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("oauth2: generating CSRF state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type callbackResult struct {
	code             string
	state            string
	errorCode        string
	errorDescription string
}

// Run drives the full flow against an already-interpolated authorizeURL.
// expectedState is the value the Executor stamped into the context as
// precog_state before interpolating the URL; if empty, Run generates one
// itself and reports it is used via the returned state.
func (c *Coordinator) Run(ctx context.Context, authorizeURL string, expectedState string) (*httpmodel.Response, error) {
	if expectedState == "" {
		generated, err := GenerateState()
		if err != nil {
			return nil, &Error{Reason: err.Error()}
		}
		expectedState = generated
	}

	finalURL, err := ensureQueryParams(authorizeURL, map[string]string{
		"redirect_uri": c.RedirectURI(),
		"state":        expectedState,
	})
	if err != nil {
		return nil, &Error{Reason: "building authorize URL: " + err.Error()}
	}

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{
			code:             q.Get("code"),
			state:            q.Get("state"),
			errorCode:        q.Get("error"),
			errorDescription: q.Get("error_description"),
		}
		writeCallbackPage(w, res, expectedState)
		resultCh <- res
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", c.cfg.Port), Handler: mux}
	listenErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErrCh <- err
		}
	}()
	defer srv.Close()

	fmt.Println("Open this URL to authorize:", finalURL)
	if err := c.cfg.Opener.Open(finalURL); err != nil {
		fmt.Println("could not open browser automatically:", err)
	}

	select {
	case res := <-resultCh:
		srv.Close()
		return c.validate(res, expectedState)
	case err := <-listenErrCh:
		return nil, &Error{Reason: "local callback listener: " + err.Error()}
	case <-time.After(c.cfg.Timeout):
		srv.Close()
		return nil, &Error{Reason: "timed out waiting for OAuth2 callback"}
	case <-ctx.Done():
		srv.Close()
		return nil, &Error{Reason: ctx.Err().Error()}
	}
}

func (c *Coordinator) validate(res callbackResult, expectedState string) (*httpmodel.Response, error) {
	if res.errorCode != "" {
		return nil, &Error{Reason: fmt.Sprintf("authorization denied: %s %s", res.errorCode, res.errorDescription)}
	}
	if res.code == "" {
		return nil, &Error{Reason: "callback did not include an authorization code"}
	}
	if res.state != expectedState {
		return nil, &Error{Reason: "possible CSRF: callback state did not match"}
	}

	return &httpmodel.Response{
		Status: 200,
		Body: map[string]interface{}{
			"query": map[string]interface{}{
				"code":  res.code,
				"state": res.state,
			},
		},
	}, nil
}

func writeCallbackPage(w http.ResponseWriter, res callbackResult, expectedState string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case res.errorCode != "":
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>%s: %s</p></body></html>", res.errorCode, res.errorDescription)
	case res.code == "":
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "<html><body><h1>Missing authorization code</h1></body></html>")
	case res.state != expectedState:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "<html><body><h1>possible CSRF</h1><p>State did not match.</p></body></html>")
	default:
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<html><body><h1>Authorization complete</h1><p>You may close this window.</p>
<script>setTimeout(function(){window.close()}, %d)</script></body></html>`, autoCloseDelay.Milliseconds())
	}
}

// ensureQueryParams injects each key into rawURL's query string only if it
// is not already present.
func ensureQueryParams(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		if q.Get(k) == "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
