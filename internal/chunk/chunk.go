// Package chunk routes memories to named storage partitions by keyword
// substring matching. Writes pick one partition; reads deliberately fan
// out wider than any single write would.
package chunk

import (
	"sort"
	"strings"
)

// DefaultChunk is the catch-all partition for text no domain claims.
const DefaultChunk = "general"

// DefaultReadLimit caps how many keyword-matched chunks a recall scans
// before the default and on-disk chunks are appended.
const DefaultReadLimit = 3

// Tables maps chunk names to their keyword lists.
type Tables map[string][]string

// Router scores text against domain keyword tables.
type Router struct {
	tables       Tables
	defaultChunk string
}

// NewRouter returns a router over the given tables. A nil tables argument
// selects the built-in defaults.
func NewRouter(tables Tables) *Router {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Router{tables: tables, defaultChunk: DefaultChunk}
}

// Default returns the catch-all chunk name.
func (r *Router) Default() string { return r.defaultChunk }

// Names returns every routable chunk name, default included, sorted.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.tables)+1)
	for name := range r.tables {
		names = append(names, name)
	}
	names = append(names, r.defaultChunk)
	sort.Strings(names)
	return names
}

func hits(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Write picks the single chunk for storing text: the domain with the most
// keyword hits. Zero hits, or a tie for the top score, routes to the
// default chunk.
func (r *Router) Write(text string) string {
	lower := strings.ToLower(text)

	best := r.defaultChunk
	bestHits := 0
	tied := false
	for name, keywords := range r.tables {
		h := hits(lower, keywords)
		switch {
		case h > bestHits:
			best, bestHits, tied = name, h, false
		case h == bestHits && h > 0:
			tied = true
		}
	}
	if bestHits == 0 || tied {
		return r.defaultChunk
	}
	return best
}

// Read picks the chunks to scan when recalling text: up to limit domains
// with at least one keyword hit, highest first, then the default chunk if
// absent, then every onDisk chunk not already selected.
func (r *Router) Read(text string, limit int, onDisk []string) []string {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	lower := strings.ToLower(text)

	type match struct {
		name string
		hits int
	}
	var matches []match
	for name, keywords := range r.tables {
		if h := hits(lower, keywords); h > 0 {
			matches = append(matches, match{name, h})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return matches[i].name < matches[j].name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	selected := make([]string, 0, len(matches)+1+len(onDisk))
	seen := make(map[string]bool, len(matches)+1)
	for _, m := range matches {
		selected = append(selected, m.name)
		seen[m.name] = true
	}
	if !seen[r.defaultChunk] {
		selected = append(selected, r.defaultChunk)
		seen[r.defaultChunk] = true
	}
	for _, name := range onDisk {
		if !seen[name] {
			selected = append(selected, name)
			seen[name] = true
		}
	}
	return selected
}
