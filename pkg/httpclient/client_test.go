package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/blackcoderx/precog/pkg/authstate"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/rcontext"
	"github.com/blackcoderx/precog/pkg/transform"
)

func newContext() *rcontext.Context {
	return rcontext.New(map[string]interface{}{}, authstate.New(), map[string]interface{}{})
}

func TestRequestParsesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"id":1}]}`))
	}))
	defer srv.Close()

	client := New(transform.New(&manifest.Manifest{}))
	def := manifest.Request{Name: "items", Method: "GET"}

	resp, err := client.Request(context.Background(), def, srv.URL, newContext())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	body, ok := resp.Body.(map[string]interface{})
	if !ok {
		t.Fatalf("expected parsed JSON map, got %T", resp.Body)
	}
	if _, ok := body["results"]; !ok {
		t.Errorf("missing results key: %#v", body)
	}
}

func TestRequestRetriesOn429ThenSucceeds(t *testing.T) {
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

	status429 := http.StatusTooManyRequests
	delay := 1
	m := &manifest.Manifest{
		Transformers: []manifest.Transformer{
			{
				Name: "retry-429",
				RetryWhere: &manifest.RetryPolicy{
					Conditions:   []manifest.Condition{{Status: &status429}},
					InitialDelay: &delay,
				},
			},
		},
	}
	client := New(transform.New(m))
	def := manifest.Request{Name: "items", Method: "GET", Transformers: []string{"retry-429"}}

	resp, err := client.Request(context.Background(), def, srv.URL, newContext())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.Status != 200 {
		t.Errorf("expected eventual 200, got %d", resp.Status)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRequestFailWhereReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	status500 := http.StatusInternalServerError
	m := &manifest.Manifest{
		Transformers: []manifest.Transformer{
			{Name: "fail-500", FailWhere: []manifest.Condition{{Status: &status500, Message: "boom"}}},
		},
	}
	client := New(transform.New(m))
	def := manifest.Request{Name: "items", Method: "GET", Transformers: []string{"fail-500"}}

	_, err := client.Request(context.Background(), def, srv.URL, newContext())
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "items: boom" {
		t.Errorf("got %q", err.Error())
	}
}
