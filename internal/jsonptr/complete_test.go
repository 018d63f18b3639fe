package jsonptr

import (
	"reflect"
	"testing"
)

func TestSuggest(t *testing.T) {
	doc := mustDoc(t, `{
	  "Weird/Key": 1,
	  "ships": {"Alpha": 1, "apex": 2, "beta": 3},
	  "list": [0,1,2,3,4,5,6,7,8,9,10,11],
	  "a~b": {"x": 1},
	  "n": 5
	}`)
	opts := DefaultSuggestOptions()

	cases := []struct {
		input string
		want  []string
	}{
		{"/", []string{"/Weird~1Key", "/a~0b", "/list", "/n", "/ships"}},
		{"", []string{"/Weird~1Key", "/a~0b", "/list", "/n", "/ships"}},
		{"sh", []string{"/ships"}},
		{"/ships/a", []string{"/ships/Alpha", "/ships/apex"}},
		{"/ships/", []string{"/ships/Alpha", "/ships/apex", "/ships/beta"}},
		{"/list/1", []string{"/list/1", "/list/10", "/list/11"}},
		{"/a~", []string{"/a~0b"}},
		{"/a~0b/", []string{"/a~0b/x"}},
		{"/W", []string{"/Weird~1Key"}},
		{"/n/", nil},
		{"/missing/x", nil},
	}
	for _, tc := range cases {
		got := Suggest(doc, tc.input, opts)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Suggest(%q)=%q want=%q", tc.input, got, tc.want)
		}
	}
}

func TestSuggest_CaseAndCap(t *testing.T) {
	doc := mustDoc(t, `{"Alpha":1,"apex":2,"arc":3}`)

	got := Suggest(doc, "/a", SuggestOptions{MaxSuggestions: 8, AcceptRootSlash: true, CaseSensitive: true})
	if !reflect.DeepEqual(got, []string{"/apex", "/arc"}) {
		t.Fatalf("case-sensitive=%q", got)
	}
	got = Suggest(doc, "/a", SuggestOptions{MaxSuggestions: 2, AcceptRootSlash: true})
	if !reflect.DeepEqual(got, []string{"/Alpha", "/apex"}) {
		t.Fatalf("capped=%q", got)
	}
	if got := Suggest(doc, "/a", SuggestOptions{}); got != nil {
		t.Fatalf("zero max should yield nothing, got %q", got)
	}
}

func TestSuggest_FoldsASCIIOnly(t *testing.T) {
	// Unicode folding would pair these keys with the inputs; ASCII folding must not.
	doc := mustDoc(t, `{"\u00c4rger":1,"\u00e4rmel":2,"Kelvin":3,"\u212aelvin":4}`)
	cases := []struct {
		input string
		want  []string
	}{
		{"/\u00e4", []string{"/\u00e4rmel"}},
		{"/k", []string{"/Kelvin"}},
		{"/KEL", []string{"/Kelvin"}},
	}
	for _, tc := range cases {
		got := Suggest(doc, tc.input, DefaultSuggestOptions())
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Suggest(%q)=%q want=%q", tc.input, got, tc.want)
		}
	}
}

func TestSuggest_ArrayScanCap(t *testing.T) {
	arr := make([]any, 1000)
	doc := map[string]any{"big": arr}
	// The scan stops at MaxSuggestions*200 indices, so "/big/9" with max 1 only
	// looks at indices 0..199.
	got := Suggest(doc, "/big/9", SuggestOptions{MaxSuggestions: 1, AcceptRootSlash: true})
	if !reflect.DeepEqual(got, []string{"/big/9"}) {
		t.Fatalf("got=%q", got)
	}
	got = Suggest(doc, "/big/999", SuggestOptions{MaxSuggestions: 1, AcceptRootSlash: true})
	if len(got) != 0 {
		t.Fatalf("index beyond scan cap suggested: %q", got)
	}
}
