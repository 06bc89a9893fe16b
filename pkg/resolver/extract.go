package resolver

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/blackcoderx/precog/pkg/expr"
	"github.com/blackcoderx/precog/pkg/httpmodel"
	"github.com/blackcoderx/precog/pkg/jsonpath"
	"github.com/blackcoderx/precog/pkg/manifest"
	"github.com/blackcoderx/precog/pkg/rcontext"
)

// extractSelect implements the per-descriptor extraction order of §4.6:
// nested selects, then expr, then nested concatenation, then full-body,
// then status, then path. Returns the list of values extracted from a
// single source response — nil on a non-match.
func (r *Resolver) extractSelect(sel manifest.Selection, resp *httpmodel.Response, ctx *rcontext.Context) ([]interface{}, error) {
	var nestedValues []interface{}
	evalCtx := ctx
	if len(sel.Select) > 0 {
		nestedBindings := make(map[string]interface{}, len(sel.Select))
		for _, nested := range sel.Select {
			vals, err := r.extractSelect(nested, resp, ctx)
			if err != nil {
				return nil, err
			}
			nestedBindings[nested.Name] = vals
			nestedValues = append(nestedValues, vals...)
		}
		evalCtx = ctx.WithExtracted(nestedBindings)
	}

	switch {
	case sel.Expr != "":
		v, err := expr.Eval(sel.Expr, evalCtx)
		if err != nil {
			// ExpressionError: yield nothing for this source response.
			return nil, nil
		}
		if sel.Authy {
			if err := r.store.SaveAuthyValue(sel.Name, v); err != nil {
				return nil, err
			}
		}
		return []interface{}{v}, nil

	case len(sel.Select) > 0:
		return nestedValues, nil

	case sel.Type == manifest.TypeFullBody:
		encoded, err := json.Marshal(resp.Body)
		if err != nil {
			return nil, nil
		}
		s := string(encoded)
		if sel.UpTo > 0 && len(s) > sel.UpTo {
			s = s[:sel.UpTo]
		}
		if sel.Authy {
			if err := r.store.SaveAuthyValue(sel.Name, s); err != nil {
				return nil, err
			}
		}
		return []interface{}{s}, nil

	case sel.Type == manifest.TypeStatus:
		v := float64(resp.Status)
		if sel.Authy {
			if err := r.store.SaveAuthyValue(sel.Name, v); err != nil {
				return nil, err
			}
		}
		return []interface{}{v}, nil

	default:
		return r.extractPath(sel, resp)
	}
}

func (r *Resolver) extractPath(sel manifest.Selection, resp *httpmodel.Response) ([]interface{}, error) {
	if sel.Path == "" {
		return nil, nil
	}
	results, err := jsonpath.Query(resp.Body, sel.Path)
	if err != nil || len(results) == 0 {
		return nil, nil
	}

	values := coerceResults(sel.Type, results)
	if sel.Authy && len(values) > 0 {
		if err := r.store.SaveAuthyValue(sel.Name, values[0]); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// coerceResults applies the type-driven coercion and drop rules. A number
// type whose raw results are objects (a nested-aggregation pattern) passes
// through unconverted.
func coerceResults(typ string, results []interface{}) []interface{} {
	if typ == manifest.TypeNumber && anyIsObject(results) {
		return results
	}

	out := make([]interface{}, 0, len(results))
	for _, v := range results {
		switch typ {
		case manifest.TypeNumber:
			f, ok := toFloat(v)
			if !ok || math.IsNaN(f) {
				continue
			}
			out = append(out, f)
		case manifest.TypeString:
			s := toStringForDrop(v)
			if s == "" || s == "null" || s == "undefined" {
				continue
			}
			out = append(out, s)
		default:
			out = append(out, v)
		}
	}
	return out
}

func anyIsObject(results []interface{}) bool {
	for _, v := range results {
		if _, ok := v.(map[string]interface{}); ok {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case nil:
		return 0, false
	default:
		return 0, false
	}
}

func toStringForDrop(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
