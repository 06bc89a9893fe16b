// Package httpclient issues a single manifest request, honoring the
// transformer pipeline's header injection and retry/fail classification.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/httpmodel"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/rcontext"
	"github.com/blackcoderx/precog/pkg/transform"
)

const maxAttempts = 10

// Error reports a request that the transformer pipeline classified as
// failed, or that exhausted its attempts.
type Error struct {
	RequestName string
	Message     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.RequestName, e.Message)
}

// Client issues HTTP requests for manifest request definitions.
type Client struct {
	http     *http.Client
	pipeline *transform.Pipeline
}

// New builds a Client driven by pipeline's classification rules.
func New(pipeline *transform.Pipeline) *Client {
	return &Client{http: &http.Client{}, pipeline: pipeline}
}

// Request issues one request (up to maxAttempts internal attempts) and
// returns its response, or an error if the pipeline classified it as
// failed or every attempt exhausted on transport errors.
func (c *Client) Request(ctx context.Context, def manifest.Request, url string, rc *rcontext.Context) (*httpmodel.Response, error) {
	body, err := c.buildBody(def, rc)
	if err != nil {
		return nil, fmt.Errorf("%s: building body: %w", def.Name, err)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, def, url, body, rc)
		if err != nil {
			if attempt == maxAttempts {
				return nil, fmt.Errorf("%s: transport error after %d attempts: %w", def.Name, attempt, err)
			}
			delay := time.Duration(1000*(1<<uint(attempt-1))) * time.Millisecond
			time.Sleep(delay)
			continue
		}

		failDecision := c.pipeline.ShouldFail(def.Transformers, resp, rc)
		if failDecision.Fail {
			return nil, &Error{RequestName: def.Name, Message: failDecision.Message}
		}

		retryDecision := c.pipeline.ShouldRetry(def.Transformers, resp, attempt, rc)
		if retryDecision.Retry {
			time.Sleep(retryDecision.Delay)
			continue
		}

		return resp, nil
	}
	return nil, &Error{RequestName: def.Name, Message: "exhausted retry attempts"}
}

func (c *Client) buildBody(def manifest.Request, rc *rcontext.Context) ([]byte, error) {
	if def.Body == nil {
		return nil, nil
	}
	rendered, err := interpolateValue(def.Body, rc)
	if err != nil {
		return nil, err
	}
	if s, ok := rendered.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(rendered)
}

func (c *Client) attempt(ctx context.Context, def manifest.Request, url string, body []byte, rc *rcontext.Context) (*httpmodel.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, def.MethodOrDefault(), url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range def.Headers {
		rendered, err := expr.Interpolate(v, rc)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", k, err)
		}
		req.Header.Set(k, rendered)
	}

	mutable := &httpmodel.Request{Headers: headersToMap(req.Header)}
	if err := c.pipeline.ApplyToRequest(def.Transformers, mutable, rc); err != nil {
		return nil, err
	}
	for k, v := range mutable.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := &httpmodel.Response{
		Status:   resp.StatusCode,
		Headers:  headersToMap(resp.Header),
		FullBody: string(raw),
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		var parsed interface{}
		if err := json.Unmarshal(raw, &parsed); err == nil {
			result.Body = parsed
		} else {
			result.Body = string(raw)
		}
	} else {
		result.Body = string(raw)
	}

	return result, nil
}

func headersToMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// interpolateValue walks a body template — a string, a map, or a slice —
// and interpolates every string leaf against vars.
func interpolateValue(v interface{}, vars expr.Vars) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return expr.Interpolate(t, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, elem := range t {
			rendered, err := interpolateValue(elem, vars)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, elem := range t {
			rendered, err := interpolateValue(elem, vars)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}
