// ABOUTME: Canonical identifier normalization for records coming off the wire
// ABOUTME: Maps _id, id, and <resource>Id variants onto a single id field plus aliases
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// IDFields returns the identifier keys a resource may use, in priority order.
// singular is the resource's singular name, e.g. "meeting" yields "meetingId".
func IDFields(singular string) []string {
	fields := []string{"id", "_id"}
	if singular != "" {
		fields = append(fields, singular+"Id")
	}
	return fields
}

// NormalizeObject rewrites a raw JSON object so that "id" holds the canonical
// identifier and "aliasIds" holds every distinct alternate id. The first
// non-empty of id, _id, <singular>Id wins.
func NormalizeObject(raw json.RawMessage, singular string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}

	var canonical string
	var aliases []string
	for _, key := range IDFields(singular) {
		value, ok := obj[key]
		if !ok {
			continue
		}
		id := idString(value)
		if id == "" {
			continue
		}
		if canonical == "" {
			canonical = id
			continue
		}
		if id != canonical && !contains(aliases, id) {
			aliases = append(aliases, id)
		}
	}

	if canonical == "" {
		return nil, fmt.Errorf("record has none of %s", strings.Join(IDFields(singular), ", "))
	}

	obj["id"] = mustJSON(canonical)
	if len(aliases) > 0 {
		obj["aliasIds"] = mustJSON(aliases)
	} else {
		delete(obj, "aliasIds")
	}

	return json.Marshal(obj)
}

// DecodeEntity normalizes a raw record and decodes it into T.
func DecodeEntity[T any](raw json.RawMessage, singular string) (*T, error) {
	normalized, err := NormalizeObject(raw, singular)
	if err != nil {
		return nil, err
	}
	if normalized == nil {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// idString accepts string or numeric ids and returns them as a string.
// Mongo-style {"$oid": "..."} wrappers are unwrapped as well.
func idString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}

	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err == nil {
		return oid.OID
	}
	return ""
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
