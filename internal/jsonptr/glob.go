package jsonptr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrGlobIndex is reported when a literal token meets an array but is not a
// valid index. Matches found elsewhere in the traversal are still returned.
var ErrGlobIndex = errors.New("json pointer glob: invalid array index token")

type QueryOptions struct {
	AcceptRootSlash bool
	// MaxMatches and MaxNodes are hard caps; values <= 0 disable the cap.
	MaxMatches int
	MaxNodes   int
}

type Match struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type QueryStats struct {
	NodesVisited  int  `json:"nodes_visited"`
	Matches       int  `json:"matches"`
	HitMatchLimit bool `json:"hit_match_limit"`
	HitNodeLimit  bool `json:"hit_node_limit"`
}

// Limited reports whether either budget cut the enumeration short.
func (s QueryStats) Limited() bool { return s.HitMatchLimit || s.HitNodeLimit }

// Query enumerates every node of doc matched by pattern. Pattern tokens "*"
// match exactly one key or index, "**" matches zero or more segments, and any
// other token containing '*', '?' or '\' is matched per segment as a glob
// (with \*, \? and \\ as literal escapes). The returned paths are canonical
// pointers that Resolve accepts.
//
// A non-nil error with a nil result means the pattern itself is malformed. A
// non-nil error alongside matches reports an invalid array index met during
// traversal; the matches are still valid.
func Query(doc any, pattern string, opts QueryOptions) ([]Match, QueryStats, error) {
	tokens, err := Split(pattern, opts.AcceptRootSlash)
	if err != nil {
		return nil, QueryStats{}, err
	}
	q := &query{
		tokens:     tokens,
		maxMatches: max(0, opts.MaxMatches),
		maxNodes:   max(0, opts.MaxNodes),
		rootSlash:  opts.AcceptRootSlash,
	}
	q.path = make([]byte, 0, len(pattern)+32)
	q.walk(doc, 0)

	st := QueryStats{
		NodesVisited:  q.nodes,
		Matches:       len(q.out),
		HitMatchLimit: q.hitMatch,
		HitNodeLimit:  q.hitNodes,
	}
	return q.out, st, q.err
}

type query struct {
	tokens     []string
	maxMatches int
	maxNodes   int
	rootSlash  bool

	path     []byte
	out      []Match
	nodes    int
	hitMatch bool
	hitNodes bool
	err      error
}

func (q *query) stopped() bool { return q.hitMatch || q.hitNodes }

func (q *query) full() bool {
	if q.maxMatches > 0 && len(q.out) >= q.maxMatches {
		q.hitMatch = true
		return true
	}
	return false
}

func (q *query) bump() bool {
	if q.maxNodes > 0 && q.nodes >= q.maxNodes {
		q.hitNodes = true
		return false
	}
	q.nodes++
	return true
}

func (q *query) emit(v any) {
	if q.full() {
		return
	}
	p := string(q.path)
	if p == "" && q.rootSlash {
		p = "/"
	}
	q.out = append(q.out, Match{Path: p, Value: v})
}

// descend pushes one segment onto the current path, walks child at token
// index ti, then pops the segment.
func (q *query) descend(seg string, child any, ti int) {
	n := len(q.path)
	q.path = append(q.path, '/')
	q.path = append(q.path, seg...)
	q.walk(child, ti)
	q.path = q.path[:n]
}

// each visits children of cur in deterministic order, keeping only those whose
// segment passes keep (nil keeps all).
func (q *query) each(cur any, ti int, keep func(seg string) bool) {
	switch n := cur.(type) {
	case map[string]any:
		for _, k := range sortedKeys(n) {
			if keep != nil && !keep(k) {
				continue
			}
			q.descend(EscapeToken(k), n[k], ti)
			if q.stopped() {
				return
			}
		}
	case []any:
		for i := range n {
			idx := strconv.Itoa(i)
			if keep != nil && !keep(idx) {
				continue
			}
			q.descend(idx, n[i], ti)
			if q.stopped() {
				return
			}
		}
	}
}

func (q *query) walk(cur any, ti int) {
	if q.full() {
		return
	}
	if !q.bump() {
		return
	}
	if ti >= len(q.tokens) {
		q.emit(cur)
		return
	}

	t := q.tokens[ti]
	switch {
	case t == "**":
		q.walk(cur, ti+1)
		if q.stopped() {
			return
		}
		q.each(cur, ti, nil)
		return
	case t == "*":
		q.each(cur, ti+1, nil)
		return
	case isSegmentGlob(t):
		q.each(cur, ti+1, func(seg string) bool { return globMatch(seg, t) })
		return
	}

	switch n := cur.(type) {
	case map[string]any:
		v, ok := n[t]
		if !ok {
			return
		}
		q.descend(EscapeToken(t), v, ti+1)
	case []any:
		idx, ok := ParseIndex(t)
		if !ok {
			// Under "**" a key-shaped token simply misses arrays.
			if ti == 0 || q.tokens[ti-1] != "**" {
				q.err = fmt.Errorf("%w: %s", ErrGlobIndex, t)
			}
			return
		}
		if idx >= len(n) {
			return
		}
		q.descend(strconv.Itoa(idx), n[idx], ti+1)
	}
}

func isSegmentGlob(tok string) bool {
	return strings.ContainsAny(tok, `*?\`)
}

// globMatch matches text against a single-segment pattern: '*' is any run,
// '?' any one byte, and a backslash escapes '*', '?' or '\'. A backslash
// before any other byte is literal. Object keys are compared as the unescaped
// key, so the pattern is matched against the raw key text.
func globMatch(text, pattern string) bool {
	ti, pi := 0, 0
	starPI, starTI := -1, 0

	// next decodes the pattern element at p.
	next := func(p int) (c byte, adv int, star, one bool) {
		c = pattern[p]
		switch {
		case c == '*':
			return c, 1, true, false
		case c == '?':
			return c, 1, false, true
		case c == '\\' && p+1 < len(pattern):
			if n := pattern[p+1]; n == '*' || n == '?' || n == '\\' {
				return n, 2, false, false
			}
		}
		return c, 1, false, false
	}

	for ti < len(text) {
		if pi < len(pattern) {
			c, adv, wildAny, wildOne := next(pi)
			switch {
			case wildAny:
				starPI, starTI = pi, ti
				pi += adv
				continue
			case wildOne, text[ti] == c:
				ti++
				pi += adv
				continue
			}
		}
		if starPI >= 0 {
			starTI++
			ti = starTI
			pi = starPI + 1
			continue
		}
		return false
	}
	for pi < len(pattern) {
		if _, adv, wildAny, _ := next(pi); wildAny {
			pi += adv
			continue
		}
		return false
	}
	return true
}
