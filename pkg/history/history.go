// Package history is the append-only sequence of responses observed during a
// run, keyed by request name.
package history

import "github.com/blackcoderx/precog/pkg/httpmodel"

// History is map<name, list<response>>, the minimal abstraction the
// resolver needs — contexts never reference it directly, only through
// resolver calls.
type History struct {
	byName map[string][]*httpmodel.Response
}

// New returns an empty history.
func New() *History {
	return &History{byName: make(map[string][]*httpmodel.Response)}
}

// Append records a response under name. Responses are never removed or
// mutated once appended.
func (h *History) Append(name string, resp *httpmodel.Response) {
	h.byName[name] = append(h.byName[name], resp)
}

// All returns every response recorded under name, in issue order.
func (h *History) All(name string) []*httpmodel.Response {
	return h.byName[name]
}

// Latest returns the most recently appended response under name, or nil if
// none was ever recorded.
func (h *History) Latest(name string) *httpmodel.Response {
	list := h.byName[name]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Union returns responses from every name in names, in names order, each
// name's own sequence in issue order. When latestOnly is set, only the most
// recent response per name is included — the view pagination edges use so
// the resolver sees exactly the paginating request's last response.
func (h *History) Union(names []string, latestOnly bool) []*httpmodel.Response {
	var out []*httpmodel.Response
	for _, name := range names {
		if latestOnly {
			if r := h.Latest(name); r != nil {
				out = append(out, r)
			}
			continue
		}
		out = append(out, h.All(name)...)
	}
	return out
}
