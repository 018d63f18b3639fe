// Package jsonptr resolves RFC 6901 JSON pointers against decoded JSON documents
// and extends the pointer grammar with glob queries and autocomplete.
//
// Documents are the values produced by encoding/json: nil, bool, float64,
// json.Number, string, []any and map[string]any. Object children are always
// visited in sorted key order.
package jsonptr

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrSyntax        = errors.New("json pointer must be empty or start with '/'")
	ErrDanglingTilde = errors.New("json pointer: dangling '~'")
	ErrBadEscape     = errors.New("json pointer: invalid escape")
	ErrKeyNotFound   = errors.New("json pointer: key not found")
	ErrBadIndex      = errors.New("json pointer: invalid array index")
	ErrIndexRange    = errors.New("json pointer: array index out of range")
	ErrScalar        = errors.New("json pointer: traversed into scalar at token")
)

// EscapeToken encodes '~' as "~0" and '/' as "~1".
func EscapeToken(s string) string {
	if !strings.ContainsAny(s, "~/") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '~':
			b.WriteString("~0")
		case '/':
			b.WriteString("~1")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// UnescapeToken reverses EscapeToken. "~" must be followed by '0' or '1'.
func UnescapeToken(s string) (string, error) {
	if !strings.Contains(s, "~") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '~' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", ErrDanglingTilde
		}
		switch n := s[i+1]; n {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", fmt.Errorf("%w '~%c'", ErrBadEscape, n)
		}
		i++
	}
	return b.String(), nil
}

// Split breaks a pointer into unescaped reference tokens. The empty string is
// the root; "/" is also the root when acceptRootSlash is set, otherwise it is
// the single empty-key token.
func Split(path string, acceptRootSlash bool) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if acceptRootSlash && path == "/" {
		return nil, nil
	}
	if path[0] != '/' {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}
	raw := strings.Split(path[1:], "/")
	out := make([]string, len(raw))
	for i, r := range raw {
		tok, err := UnescapeToken(r)
		if err != nil {
			return nil, err
		}
		out[i] = tok
	}
	return out, nil
}

// ParseIndex accepts non-negative decimal integers only. The RFC 6901 "-"
// token is rejected.
func ParseIndex(tok string) (int, bool) {
	if tok == "" {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Resolve walks doc along path. The returned node is borrowed from doc.
func Resolve(doc any, path string, acceptRootSlash bool) (any, error) {
	tokens, err := Split(path, acceptRootSlash)
	if err != nil {
		return nil, err
	}
	cur := doc
	for _, t := range tokens {
		switch n := cur.(type) {
		case map[string]any:
			v, ok := n[t]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, t)
			}
			cur = v
		case []any:
			idx, ok := ParseIndex(t)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrBadIndex, t)
			}
			if idx >= len(n) {
				return nil, fmt.Errorf("%w: %s", ErrIndexRange, t)
			}
			cur = n[idx]
		default:
			return nil, fmt.Errorf("%w: %s", ErrScalar, t)
		}
	}
	return cur, nil
}

// Join appends one escaped token to base. A base of "" or "/" yields "/tok".
func Join(base, tok string) string {
	esc := EscapeToken(tok)
	if base == "" || base == "/" {
		return "/" + esc
	}
	return base + "/" + esc
}

func JoinIndex(base string, idx int) string {
	tok := strconv.Itoa(idx)
	if base == "" || base == "/" {
		return "/" + tok
	}
	return base + "/" + tok
}

// sortedKeys returns the object's keys in ascending byte order.
func sortedKeys(o map[string]any) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
