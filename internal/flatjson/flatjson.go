// Package flatjson turns a nested JSON document into an ordered list of its
// string leaves and writes replacement strings back into the same document.
// Document order is preserved, so item numbering is stable across runs.
package flatjson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// DefaultDelimiter joins path segments in keys. A dot would be ambiguous with
// dotted keys common in i18n files.
const DefaultDelimiter = "*"

// ErrNotContainer is returned for documents that are not an object or array.
var ErrNotContainer = errors.New("document must be a JSON object or array")

// Entry is a string leaf of a document.
type Entry struct {
	// Key is the path segments joined by the delimiter.
	Key string
	// Path addresses the leaf for gjson/sjson.
	Path  string
	Value string
}

// Flatten lists the string leaves of doc in document order. Numbers,
// booleans and nulls are not listed and stay untouched.
func Flatten(doc []byte, delimiter string) ([]Entry, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	root := gjson.ParseBytes(doc)
	if !root.IsObject() && !root.IsArray() {
		return nil, ErrNotContainer
	}

	var out []Entry
	walk(root, nil, nil, delimiter, &out)
	return out, nil
}

func walk(v gjson.Result, keys, paths []string, delimiter string, out *[]Entry) {
	switch {
	case v.IsObject():
		v.ForEach(func(k, child gjson.Result) bool {
			walk(child, with(keys, k.String()), with(paths, escape(k.String())), delimiter, out)
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, child gjson.Result) bool {
			idx := strconv.Itoa(i)
			walk(child, with(keys, idx), with(paths, idx), delimiter, out)
			i++
			return true
		})
	case v.Type == gjson.String:
		*out = append(*out, Entry{
			Key:   strings.Join(keys, delimiter),
			Path:  strings.Join(paths, "."),
			Value: v.String(),
		})
	}
}

func with(s []string, v string) []string {
	out := make([]string, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

// escape makes a key safe as a single gjson/sjson path segment.
func escape(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Values maps entry keys to values.
func Values(entries []Entry) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Value
	}
	return m
}

// Apply writes values (keyed by Entry.Key) into doc at the paths of entries
// and returns the indented result. Entries without a value keep their
// original text.
func Apply(doc []byte, entries []Entry, values map[string]string) ([]byte, error) {
	out := append([]byte(nil), doc...)
	for _, e := range entries {
		v, ok := values[e.Key]
		if !ok {
			continue
		}
		var err error
		out, err = sjson.SetBytes(out, e.Path, v)
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", e.Key, err)
		}
	}
	return Pretty(out), nil
}

// Pretty indents doc with four spaces, keeping key order.
func Pretty(doc []byte) []byte {
	return pretty.PrettyOptions(doc, &pretty.Options{Width: 80, Indent: "    "})
}
