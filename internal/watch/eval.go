package watch

import (
	"math"
	"strconv"

	"github.com/masterblaster1999/Nebula4X-sub001/internal/jsonptr"
)

const (
	minQueryMaxMatches = 10
	maxQueryMaxMatches = 500000
	minQueryMaxNodes   = 100
	maxQueryMaxNodes   = 5000000
)

// ClampQueryCaps bounds query caps to [10, 500000] matches and
// [100, 5000000] nodes, so no caller can disable the traversal budget.
func ClampQueryCaps(maxMatches, maxNodes int) (int, int) {
	return min(max(maxMatches, minQueryMaxMatches), maxQueryMaxMatches),
		min(max(maxNodes, minQueryMaxNodes), maxQueryMaxNodes)
}

type EvalOptions struct {
	AcceptRootSlash bool
	// Query caps, clamped to [10, 500000] matches and [100, 5000000] nodes.
	QueryMaxMatches int
	QueryMaxNodes   int

	CollectSamples   bool
	MaxSampleMatches int
	MaxPreviewChars  int
}

func DefaultEvalOptions() EvalOptions {
	return EvalOptions{
		AcceptRootSlash:  true,
		QueryMaxMatches:  5000,
		QueryMaxNodes:    200000,
		MaxSampleMatches: 8,
		MaxPreviewChars:  120,
	}
}

type Result struct {
	OK      bool    `json:"ok"`
	Numeric bool    `json:"numeric"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
	Error   string  `json:"error,omitempty"`

	IsQuery       bool    `json:"is_query,omitempty"`
	Op            QueryOp `json:"op"`
	MatchCount    int     `json:"match_count,omitempty"`
	NumericCount  int     `json:"numeric_count,omitempty"`
	NodesVisited  int     `json:"nodes_visited,omitempty"`
	HitMatchLimit bool    `json:"hit_match_limit,omitempty"`
	HitNodeLimit  bool    `json:"hit_node_limit,omitempty"`

	// RepresentativePointer is the pin path in pointer mode and the first match
	// in query mode ("/" when there is none).
	RepresentativePointer string `json:"representative_pointer"`

	SamplePaths    []string `json:"sample_paths,omitempty"`
	SamplePreviews []string `json:"sample_previews,omitempty"`
}

// Evaluate computes the pin's current value over doc. Failures are reported
// through Result.OK and Result.Error.
func Evaluate(doc any, pin Pin, opts EvalOptions) Result {
	if pin.IsQuery {
		return evalQuery(doc, pin, opts)
	}
	return evalPointer(doc, pin.Path, opts)
}

func repPointer(path string, acceptRootSlash bool) string {
	if path == "" && acceptRootSlash {
		return "/"
	}
	return path
}

func evalPointer(doc any, path string, opts EvalOptions) Result {
	node, err := jsonptr.Resolve(doc, path, opts.AcceptRootSlash)
	if err != nil {
		return Result{
			Display:               "(missing)",
			Error:                 err.Error(),
			RepresentativePointer: repPointer(path, opts.AcceptRootSlash),
		}
	}
	r := scalar(node, opts.MaxPreviewChars)
	r.RepresentativePointer = repPointer(path, opts.AcceptRootSlash)
	return r
}

func evalQuery(doc any, pin Pin, opts EvalOptions) Result {
	op := pin.Op
	if op < OpCount || op > OpMax {
		op = OpCount
	}
	r := Result{IsQuery: true, Op: op}

	maxMatches, maxNodes := ClampQueryCaps(opts.QueryMaxMatches, opts.QueryMaxNodes)
	matches, st, err := jsonptr.Query(doc, pin.Path, jsonptr.QueryOptions{
		AcceptRootSlash: opts.AcceptRootSlash,
		MaxMatches:      maxMatches,
		MaxNodes:        maxNodes,
	})
	r.MatchCount = st.Matches
	r.NodesVisited = st.NodesVisited
	r.HitMatchLimit = st.HitMatchLimit
	r.HitNodeLimit = st.HitNodeLimit
	if err != nil {
		r.Display = "(error)"
		r.Error = err.Error()
		r.RepresentativePointer = "/"
		return r
	}

	r.OK = true
	r.RepresentativePointer = "/"
	if len(matches) > 0 {
		r.RepresentativePointer = matches[0].Path
	}

	if opts.CollectSamples && opts.MaxSampleMatches > 0 {
		n := min(opts.MaxSampleMatches, len(matches))
		r.SamplePaths = make([]string, 0, n)
		r.SamplePreviews = make([]string, 0, n)
		for _, m := range matches[:n] {
			r.SamplePaths = append(r.SamplePaths, m.Path)
			prev := scalar(m.Value, opts.MaxPreviewChars).Display
			r.SamplePreviews = append(r.SamplePreviews, trimPreview(prev, opts.MaxPreviewChars))
		}
	}

	sum := 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range matches {
		x, ok := coerce(m.Value)
		if !ok {
			continue
		}
		r.NumericCount++
		sum += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}

	switch op {
	case OpSum:
		r.Numeric, r.Value, r.Display = true, sum, FormatNumber(sum)
	case OpAvg, OpMin, OpMax:
		if r.NumericCount == 0 {
			r.OK = false
			r.Display = "(no numeric)"
			return r
		}
		v := sum / float64(r.NumericCount)
		if op == OpMin {
			v = lo
		} else if op == OpMax {
			v = hi
		}
		r.Numeric, r.Value, r.Display = true, v, FormatNumber(v)
	default:
		r.Numeric, r.Value = true, float64(r.MatchCount)
		r.Display = strconv.Itoa(r.MatchCount)
		if st.Limited() {
			r.Display += "+"
		}
	}
	return r
}
