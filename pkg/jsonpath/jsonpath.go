// Package jsonpath implements the small subset of JSONPath the selection
// engine needs: dotted child access and a `[*]` array wildcard. Recursive
// descent (`$..foo`) is not part of the corpus and is not supported.
package jsonpath

import (
	"fmt"
	"strconv"
	"strings"
)

type segmentKind int

const (
	segField segmentKind = iota
	segWildcard
	segIndex
)

type segment struct {
	kind  segmentKind
	field string
	index int
}

// Normalize rewrites the `[:_]` and `[_:]` array-wildcard spellings some
// manifests use into the canonical `[*]`, ahead of parsing.
func Normalize(path string) string {
	r := strings.NewReplacer("[:_]", "[*]", "[_:]", "[*]")
	return r.Replace(path)
}

// Query evaluates path against body and returns every matching value, in
// document order. A path segment that finds nothing at any point yields an
// empty result rather than an error — only a malformed path is an error.
func Query(body interface{}, path string) ([]interface{}, error) {
	segments, err := parse(Normalize(path))
	if err != nil {
		return nil, err
	}

	current := []interface{}{body}
	for _, seg := range segments {
		var next []interface{}
		for _, cur := range current {
			next = append(next, applySegment(seg, cur)...)
		}
		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

func applySegment(seg segment, cur interface{}) []interface{} {
	switch seg.kind {
	case segField:
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		v, ok := m[seg.field]
		if !ok {
			return nil
		}
		return []interface{}{v}
	case segWildcard:
		arr, ok := cur.([]interface{})
		if !ok {
			return nil
		}
		out := make([]interface{}, len(arr))
		copy(out, arr)
		return out
	case segIndex:
		arr, ok := cur.([]interface{})
		if !ok {
			return nil
		}
		if seg.index < 0 || seg.index >= len(arr) {
			return nil
		}
		return []interface{}{arr[seg.index]}
	}
	return nil
}

// parse turns "$.a.b[*].c" into [field:a field:b wildcard field:c]. The
// leading "$" is optional and, if present, is discarded.
func parse(path string) ([]segment, error) {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")

	var segments []segment
	i := 0
	for i < len(path) {
		switch path[i] {
		case '.':
			i++
			start := i
			for i < len(path) && path[i] != '.' && path[i] != '[' {
				i++
			}
			field := path[start:i]
			if field == "" {
				return nil, fmt.Errorf("jsonpath: empty field name in %q", path)
			}
			segments = append(segments, segment{kind: segField, field: field})
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("jsonpath: unterminated '[' in %q", path)
			}
			inner := path[i+1 : i+end]
			i += end + 1
			if inner == "*" {
				segments = append(segments, segment{kind: segWildcard})
				continue
			}
			idx, err := strconv.Atoi(inner)
			if err != nil {
				return nil, fmt.Errorf("jsonpath: invalid index %q in %q", inner, path)
			}
			segments = append(segments, segment{kind: segIndex, index: idx})
		default:
			return nil, fmt.Errorf("jsonpath: unexpected character %q in %q", path[i], path)
		}
	}
	return segments, nil
}
