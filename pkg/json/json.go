// Package json is the JSON codec used throughout tablecast. It fronts
// goccy/go-json so every caller picks up the faster encoder without caring
// which implementation backs it.
package json

import (
	gojson "github.com/goccy/go-json"
)

// Marshal encodes v as JSON.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent encodes v as indented JSON.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes JSON data into v.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is valid JSON.
func Valid(data []byte) bool {
	return gojson.Valid(data)
}
