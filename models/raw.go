package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawListing is one record as the source returned it. The upstream schema is
// unstable, so every logical field is read through an ordered list of
// alternative keys instead of a fixed struct.
type RawListing map[string]any

// String returns the first non-empty value among keys, stringified.
// Numeric payload values are accepted because the source flips between
// string and number encodings for the same field across responses.
func (r RawListing) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			if s := t.String(); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case int64:
			return strconv.FormatInt(t, 10)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

// StringOr is String with a fallback for when every key is absent or empty.
func (r RawListing) StringOr(fallback string, keys ...string) string {
	if s := r.String(keys...); s != "" {
		return s
	}
	return fallback
}

// Maps returns the first key holding a list of objects, each as a RawListing.
func (r RawListing) Maps(keys ...string) []RawListing {
	for _, k := range keys {
		list, ok := r[k].([]any)
		if !ok {
			continue
		}
		var out []RawListing
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, RawListing(m))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Map returns a nested object under the first present key.
func (r RawListing) Map(keys ...string) RawListing {
	for _, k := range keys {
		if m, ok := r[k].(map[string]any); ok {
			return RawListing(m)
		}
	}
	return nil
}
