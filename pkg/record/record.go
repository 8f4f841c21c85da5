// Package record provides the read-only view over one LeakIX leak or
// service event yielded to callers.
//
// Events arrive as loosely structured JSON documents. Rather than a dynamic
// proxy, Record exposes an explicit nested-field accessor: Field walks a
// dotted path ("geoip.country_name") and reports whether the value exists,
// so missing paths never panic and never need nil checks at every level.
package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultFields is the projection applied when a caller asks for no
// specific fields.
var DefaultFields = []string{"protocol", "ip", "port"}

// Record is one leak/service event. The underlying JSON is never mutated
// after creation.
type Record struct {
	raw json.RawMessage
}

// New wraps a raw JSON event. The caller must not modify raw afterwards.
func New(raw json.RawMessage) Record {
	return Record{raw: raw}
}

// Raw returns the underlying JSON document.
func (r Record) Raw() json.RawMessage {
	return r.raw
}

// Field returns the value at a dotted path and whether it exists.
// Nested paths like "geoip.country_name" are supported.
func (r Record) Field(path string) (gjson.Result, bool) {
	res := gjson.GetBytes(r.raw, path)
	return res, res.Exists()
}

// FieldOr returns the string value at a dotted path, or def when the path
// is absent.
func (r Record) FieldOr(path, def string) string {
	if res, ok := r.Field(path); ok {
		return res.String()
	}
	return def
}

// URL derives a URL from the record's protocol, ip and port when the
// protocol is http or https. Returns "" otherwise.
func (r Record) URL() string {
	protocol := r.FieldOr("protocol", "")
	if protocol != "http" && protocol != "https" {
		return ""
	}
	ip := r.FieldOr("ip", "")
	port := r.FieldOr("port", "")
	if ip == "" || port == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s:%s", protocol, ip, port)
}

// Project extracts the given dotted fields into "field: value" pairs,
// using "N/A" for absent paths. With exactly the default projection
// (protocol, ip, port) and an http(s) protocol, the projection collapses
// to a single URL, matching the CLI's default output.
func (r Record) Project(fields []string) string {
	if len(fields) == 0 {
		fields = DefaultFields
	}

	if isDefaultProjection(fields) {
		if url := r.URL(); url != "" {
			return url
		}
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, r.FieldOr(f, "N/A")))
	}
	return strings.Join(parts, ", ")
}

// Fields returns every dotted leaf path present in the record, sorted.
// Used for schema introspection ("what can I project?").
func (r Record) Fields() []string {
	var paths []string
	walkFields(gjson.ParseBytes(r.raw), "", &paths)
	sort.Strings(paths)
	return paths
}

func walkFields(value gjson.Result, prefix string, paths *[]string) {
	if !value.IsObject() {
		if prefix != "" {
			*paths = append(*paths, prefix)
		}
		return
	}
	value.ForEach(func(key, child gjson.Result) bool {
		path := key.String()
		if prefix != "" {
			path = prefix + "." + path
		}
		walkFields(child, path, paths)
		return true
	})
}

func isDefaultProjection(fields []string) bool {
	if len(fields) != len(DefaultFields) {
		return false
	}
	for i, f := range fields {
		if f != DefaultFields[i] {
			return false
		}
	}
	return true
}
