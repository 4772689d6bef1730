package model

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrMalformedRef = errors.New("malformed event reference")

// RawID is an event reference exactly as a historical client encoded it:
// either a bare string or a wrapped structured identifier. Matching code
// never inspects field shapes directly; it goes through this union.
type RawID interface {
	// String returns the reference stringified as-written.
	String() string
	// Canonical re-encodes the reference the way the catalog encodes its
	// identifiers: trimmed and lowercased, with 32-digit hex rendered in
	// dashed UUID form.
	Canonical() string

	isRawID()
}

// StringID is a reference written as a plain JSON string.
type StringID string

func (s StringID) String() string { return string(s) }

func (s StringID) Canonical() string { return canonicalize(string(s)) }

func (StringID) isRawID() {}

// WrappedID is a reference written as a structured object, e.g. the
// document-store export shape {"$oid": "…"}.
type WrappedID string

func (w WrappedID) String() string { return string(w) }

func (w WrappedID) Canonical() string { return canonicalize(string(w)) }

func (WrappedID) isRawID() {}

func canonicalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 32 && isHex(s) {
		// undashed uuid; the catalog writes uuids dashed
		return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:32]
	}
	return s
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// ParseRawID decodes a reference field from its JSON encoding. A quoted
// string becomes a StringID; an object carrying "$oid" or "oid" becomes
// a WrappedID. Anything else is malformed.
func ParseRawID(data []byte) (RawID, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrMalformedRef
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, ErrMalformedRef
		}
		return StringID(s), nil
	}

	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, ErrMalformedRef
		}
		for _, key := range []string{"$oid", "oid"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, ErrMalformedRef
			}
			return WrappedID(s), nil
		}
	}
	return nil, ErrMalformedRef
}

// EncodeRawID is the inverse of ParseRawID.
func EncodeRawID(id RawID) (json.RawMessage, error) {
	switch v := id.(type) {
	case StringID:
		return json.Marshal(string(v))
	case WrappedID:
		return json.Marshal(map[string]string{"$oid": string(v)})
	default:
		return nil, ErrMalformedRef
	}
}
