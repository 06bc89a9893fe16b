// Package resolver implements the Dependency Resolver: given a dependency
// edge and the response history, it extracts values from prior responses
// and produces the child request contexts for the edge's targets.
package resolver

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/history"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/rcontext"
	"github.com/blackcoderx/precog/pkg/tokenstore"
)

// Resolver extracts selection values and builds child contexts. Apart from
// the Executor clearing the Token Store on a forced re-authorization, it is
// the only component that writes to the Token Store.
type Resolver struct {
	store *tokenstore.Store
}

// New builds a Resolver that persists authy-flagged values to store.
func New(store *tokenstore.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve extracts every select descriptor of edge against the union of its
// From responses (most-recent-only when latestOnly, for pagination edges),
// applies selectwhere gating, and fans the result out into child contexts.
func (r *Resolver) Resolve(h *history.History, edge manifest.Edge, parent *rcontext.Context, latestOnly bool) ([]*rcontext.Context, error) {
	sources := h.Union(edge.From, latestOnly)

	names := make([]string, 0, len(edge.Select))
	valuesByName := make(map[string][]interface{}, len(edge.Select))

	for _, sel := range edge.Select {
		var collected []interface{}
		for _, resp := range sources {
			vals, err := r.extractSelect(sel, resp, parent)
			if err != nil {
				return nil, err
			}
			collected = append(collected, vals...)
		}
		valuesByName[sel.Name] = dedupe(collected)
		names = append(names, sel.Name)
	}

	if edge.SelectWhere != "" && !r.gate(edge.SelectWhere, names, valuesByName, parent) {
		return nil, nil
	}

	return fanOut(names, valuesByName, parent), nil
}

func (r *Resolver) gate(selectWhere string, names []string, valuesByName map[string][]interface{}, parent *rcontext.Context) bool {
	firstValues := make(map[string]interface{}, len(names))
	for _, name := range names {
		if vals := valuesByName[name]; len(vals) > 0 {
			firstValues[name] = vals[0]
		}
	}
	augmented := parent.WithExtracted(firstValues)
	v, err := expr.Eval(selectWhere, augmented)
	if err != nil {
		return false
	}
	return isTruthy(v)
}

func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	default:
		return true
	}
}

// fanOut implements the k==0 / k==1 / k>1 cartesian-product rule, walking
// names (and, within the product, each name's value list) in order so
// sibling contexts are produced in deterministic lexicographic index order.
func fanOut(names []string, valuesByName map[string][]interface{}, parent *rcontext.Context) []*rcontext.Context {
	if len(names) == 0 {
		return nil
	}
	if len(names) == 1 {
		name := names[0]
		vals := valuesByName[name]
		children := make([]*rcontext.Context, 0, len(vals))
		for _, v := range vals {
			children = append(children, parent.WithExtracted(map[string]interface{}{name: v}))
		}
		return children
	}

	combos := cartesian(names, valuesByName)
	children := make([]*rcontext.Context, 0, len(combos))
	for _, combo := range combos {
		children = append(children, parent.WithExtracted(combo))
	}
	return children
}

func cartesian(names []string, valuesByName map[string][]interface{}) []map[string]interface{} {
	combos := []map[string]interface{}{{}}
	for _, name := range names {
		vals := valuesByName[name]
		if len(vals) == 0 {
			return nil
		}
		var next []map[string]interface{}
		for _, combo := range combos {
			for _, v := range vals {
				merged := make(map[string]interface{}, len(combo)+1)
				for k, existing := range combo {
					merged[k] = existing
				}
				merged[name] = v
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}

// dedupe preserves first-seen order while removing later duplicates. Values
// are compared by a type-tagged string key, so the string "1" and the number
// 1 are kept as distinct values.
func dedupe(values []interface{}) []interface{} {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		key := dedupeKey(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeKey(v interface{}) string {
	switch t := v.(type) {
	case string:
		return "s:" + t
	case float64:
		return "n:" + strconv.FormatFloat(t, 'g', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return "j:" + string(b)
	}
}
