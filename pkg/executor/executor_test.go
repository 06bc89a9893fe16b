package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/blackcoderx/precog/pkg/authstate"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/tokenstore"
)

func TestRunNoAuthSingleDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":1},{"id":2}]}`))
	}))
	defer srv.Close()

	m := &manifest.Manifest{
		ID: "scenario-1",
		Reqs: []manifest.Request{
			{Name: "items", URL: srv.URL, Method: "GET"},
		},
		Datasets: []manifest.Dataset{
			{Name: "Items", Data: []string{"items"}},
		},
	}

	base := t.TempDir()
	outDir := filepath.Join(base, "out")
	ex := New(m, base, Options{OutputDir: outDir})

	result, err := ex.Run(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Total != 1 || result.Successful != 1 || result.Failed != 0 {
		t.Errorf("unexpected totals: %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "items.json"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(records) != 2 || records[0]["id"] != 1.0 || records[1]["id"] != 2.0 {
		t.Errorf("got %#v", records)
	}
}

func TestRunDependencyFanOut(t *testing.T) {
	var bPaths []string
	srv := httptest.NewServeMux()
	srv.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"a"},{"id":"b"}]}`))
	})
	srv.HandleFunc("/b/", func(w http.ResponseWriter, r *http.Request) {
		bPaths = append(bPaths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	m := &manifest.Manifest{
		ID: "scenario-2",
		Reqs: []manifest.Request{
			{Name: "A", URL: ts.URL + "/a", Method: "GET"},
			{Name: "B", URL: ts.URL + "/b/{{x}}", Method: "GET"},
		},
		Deps: []manifest.Edge{
			{
				From:   []string{"A"},
				To:     []string{"B"},
				Select: []manifest.Selection{{Name: "x", Path: "$.data[*].id"}},
			},
		},
		Datasets: []manifest.Dataset{
			{Name: "Results", Data: []string{"B"}},
		},
	}

	base := t.TempDir()
	ex := New(m, base, Options{OutputDir: filepath.Join(base, "out")})
	result, err := ex.Run(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("expected 1 A + 2 B requests, got %d", result.Total)
	}
	if len(bPaths) != 2 || bPaths[0] != "/b/a" || bPaths[1] != "/b/b" {
		t.Errorf("unexpected traversal order: %v", bPaths)
	}
}

func TestRunPaginationStopsOnNilNext(t *testing.T) {
	var calls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.Write([]byte(`{"results":[{"id":1}],"next":"` + srv.URL + `"}`))
		} else {
			w.Write([]byte(`{"results":[{"id":2}],"next":null}`))
		}
	}))
	defer srv.Close()

	m := &manifest.Manifest{
		ID: "scenario-4",
		Reqs: []manifest.Request{
			{Name: "items", URL: srv.URL, Method: "GET"},
			{Name: "items_paged", URL: "{{next}}", Method: "GET"},
		},
		Deps: []manifest.Edge{
			{
				From:   []string{"items", "items_paged"},
				To:     []string{"items_paged"},
				Select: []manifest.Selection{{Name: "next", Path: "$.next"}},
			},
		},
		Datasets: []manifest.Dataset{
			{Name: "Items", Data: []string{"items", "items_paged"}},
		},
	}

	base := t.TempDir()
	ex := New(m, base, Options{OutputDir: filepath.Join(base, "out")})
	result, err := ex.Run(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 requests (pagination stops on null next), got %d", calls)
	}
	if result.Total != 2 {
		t.Errorf("got total %d", result.Total)
	}
}

func TestRunForceReauthClearsStoreBeforeRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	m := &manifest.Manifest{
		ID: "scenario-force-reauth",
		Reqs: []manifest.Request{
			{Name: "items", URL: srv.URL, Method: "GET"},
		},
		Datasets: []manifest.Dataset{
			{Name: "Items", Data: []string{"items"}},
		},
	}

	base := t.TempDir()
	store := tokenstore.New(base, m.ID)
	if err := store.Save(&authstate.State{AccessToken: "stale-token"}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	ex := New(m, base, Options{OutputDir: filepath.Join(base, "out"), ForceReauth: true})
	if _, err := ex.Run(context.Background(), map[string]interface{}{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("reloading store: %v", err)
	}
	if st.AccessToken != "" {
		t.Errorf("expected force-reauth to clear stale access token, got %q", st.AccessToken)
	}
}

func TestRunRetryOn429ThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	retries := 2
	delay := 1
	status429 := 429
	m := &manifest.Manifest{
		ID: "scenario-5",
		Transformers: []manifest.Transformer{
			{
				Name: "retry-429",
				RetryWhere: &manifest.RetryPolicy{
					Conditions:   []manifest.Condition{{Status: &status429}},
					Retries:      &retries,
					InitialDelay: &delay,
				},
			},
		},
		Reqs: []manifest.Request{
			{Name: "items", URL: srv.URL, Method: "GET", Transformers: []string{"retry-429"}},
		},
		Datasets: []manifest.Dataset{
			{Name: "Items", Data: []string{"items"}},
		},
	}

	base := t.TempDir()
	ex := New(m, base, Options{OutputDir: filepath.Join(base, "out")})
	result, err := ex.Run(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Successful != 1 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRunSurfacesRatelimitDescriptorInResultAndSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	m := &manifest.Manifest{
		ID: "scenario-ratelimit",
		Transformers: []manifest.Transformer{
			{
				Name:       "limited",
				Ratelimits: []manifest.RateLimit{{Requests: 5, Per: "s"}},
			},
		},
		Reqs: []manifest.Request{
			{Name: "items", URL: srv.URL, Method: "GET", Transformers: []string{"limited"}},
		},
		Datasets: []manifest.Dataset{
			{Name: "Items", Data: []string{"items"}},
		},
	}

	base := t.TempDir()
	ex := New(m, base, Options{OutputDir: filepath.Join(base, "out")})
	result, err := ex.Run(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Ratelimits) != 1 {
		t.Fatalf("expected 1 ratelimit descriptor, got %#v", result.Ratelimits)
	}
	if !strings.Contains(result.Ratelimits[0], "limited") || !strings.Contains(result.Ratelimits[0], "advisory") {
		t.Errorf("descriptor missing transformer name or advisory note: %q", result.Ratelimits[0])
	}
	if !strings.Contains(result.String(), result.Ratelimits[0]) {
		t.Errorf("String() did not render ratelimit descriptor: %q", result.String())
	}
	if !strings.Contains(result.Markdown(), result.Ratelimits[0]) {
		t.Errorf("Markdown() did not render ratelimit descriptor: %q", result.Markdown())
	}
}
