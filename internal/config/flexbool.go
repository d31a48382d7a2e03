package config

import (
	"bytes"
	"encoding/json"
)

// FlexBool accepts both JSON booleans and the legacy "0"/"1" numeric/string
// forms the original configuration format allowed, per spec §6's "boolean
// flags accept both 0/1 and true/false."
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`, "1", `"1"`:
		*b = true
		return nil
	case "false", `"false"`, "0", `"0"`, "", "null":
		*b = false
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*b = n != 0
		return nil
	}
	return &json.UnmarshalTypeError{Value: string(data), Type: nil}
}

// MarshalJSON implements json.Marshaler.
func (b FlexBool) MarshalJSON() ([]byte, error) {
	if b {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

// Bool returns the plain bool value.
func (b FlexBool) Bool() bool { return bool(b) }
