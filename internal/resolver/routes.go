package resolver

import "strings"

// Route describes one configured route: the path prefixes it matches and
// whether the matched prefix is stripped before resolution.
type Route struct {
	Paths     []string
	StripPath bool
}

// Table matches inbound paths against the configured routes. A gateway
// with no routes serves everything through a single catch-all route that
// strips nothing.
type Table struct {
	routes []Route
}

// NewTable creates a route table.
func NewTable(routes []Route) *Table {
	return &Table{routes: routes}
}

// Match returns the route with the longest matching path prefix. When the
// winning route strips its prefix, the returned route's first path is the
// one that matched, so stripping and matching always agree.
func (t *Table) Match(path string) Route {
	var (
		best      Route
		bestLen   = -1
		bestFound bool
	)
	for _, route := range t.routes {
		for _, prefix := range route.Paths {
			if prefix == "" || !strings.HasPrefix(path, prefix) {
				continue
			}
			if len(prefix) > bestLen {
				bestLen = len(prefix)
				best = Route{Paths: []string{prefix}, StripPath: route.StripPath}
				bestFound = true
			}
		}
	}
	if !bestFound {
		return Route{}
	}
	return best
}
