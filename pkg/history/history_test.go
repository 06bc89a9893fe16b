package history

import (
	"testing"

	"github.com/blackcoderx/precog/pkg/httpmodel"
)

func TestAppendAndAll(t *testing.T) {
	h := New()
	h.Append("items", &httpmodel.Response{Status: 200})
	h.Append("items", &httpmodel.Response{Status: 201})

	all := h.All("items")
	if len(all) != 2 || all[0].Status != 200 || all[1].Status != 201 {
		t.Errorf("got %#v", all)
	}
}

func TestLatestOnlyUnion(t *testing.T) {
	h := New()
	h.Append("items_paged", &httpmodel.Response{Status: 200})
	h.Append("items_paged", &httpmodel.Response{Status: 201})

	union := h.Union([]string{"items_paged"}, true)
	if len(union) != 1 || union[0].Status != 201 {
		t.Errorf("expected only the latest response, got %#v", union)
	}
}

func TestUnionAcrossMultipleNames(t *testing.T) {
	h := New()
	h.Append("a", &httpmodel.Response{Status: 200})
	h.Append("b", &httpmodel.Response{Status: 201})

	union := h.Union([]string{"a", "b"}, false)
	if len(union) != 2 {
		t.Errorf("got %#v", union)
	}
}

func TestLatestOnEmptyNameIsNil(t *testing.T) {
	h := New()
	if h.Latest("missing") != nil {
		t.Error("expected nil for unrecorded name")
	}
}
