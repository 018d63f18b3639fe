package jsonptr

import (
	"strconv"
	"strings"
)

type SuggestOptions struct {
	MaxSuggestions  int
	AcceptRootSlash bool
	CaseSensitive   bool
}

func DefaultSuggestOptions() SuggestOptions {
	return SuggestOptions{MaxSuggestions: 32, AcceptRootSlash: true}
}

// arrayScanFactor bounds index scanning to MaxSuggestions*arrayScanFactor.
const arrayScanFactor = 200

// Suggest returns canonical child pointers completing a partially typed
// pointer. The input may omit the leading '/', and its last token may contain
// an unfinished "~" escape. Any resolution failure yields no suggestions.
func Suggest(doc any, input string, opts SuggestOptions) []string {
	if opts.MaxSuggestions <= 0 {
		return nil
	}
	path := input
	if path == "" {
		path = "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}

	prefix, partialRaw := "/", ""
	switch {
	case path == "/":
	case strings.HasSuffix(path, "/"):
		prefix = path[:len(path)-1]
	default:
		last := strings.LastIndexByte(path, '/')
		if last > 0 {
			prefix = path[:last]
		}
		partialRaw = path[last+1:]
	}
	partial := unescapePartial(partialRaw)

	node, err := Resolve(doc, prefix, opts.AcceptRootSlash)
	if err != nil {
		return nil
	}

	match := func(s string) bool {
		if partial == "" {
			return true
		}
		if len(partial) > len(s) {
			return false
		}
		if opts.CaseSensitive {
			return strings.HasPrefix(s, partial)
		}
		return hasPrefixFoldASCII(s, partial)
	}

	var out []string
	switch n := node.(type) {
	case map[string]any:
		for _, k := range sortedKeys(n) {
			if !match(k) {
				continue
			}
			out = append(out, Join(prefix, k))
			if len(out) >= opts.MaxSuggestions {
				break
			}
		}
	case []any:
		scan := min(len(n), opts.MaxSuggestions*arrayScanFactor)
		for i := 0; i < scan; i++ {
			if !match(strconv.Itoa(i)) {
				continue
			}
			out = append(out, JoinIndex(prefix, i))
			if len(out) >= opts.MaxSuggestions {
				break
			}
		}
	}
	return out
}

// unescapePartial decodes "~0" and "~1" and keeps any other '~' literally.
func unescapePartial(tok string) string {
	if !strings.Contains(tok, "~") {
		return tok
	}
	var b strings.Builder
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c == '~' && i+1 < len(tok) {
			switch tok[i+1] {
			case '0':
				b.WriteByte('~')
				i++
				continue
			case '1':
				b.WriteByte('/')
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// hasPrefixFoldASCII folds only A-Z; other bytes must match exactly.
func hasPrefixFoldASCII(s, prefix string) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if lowerASCII(s[i]) != lowerASCII(prefix[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
