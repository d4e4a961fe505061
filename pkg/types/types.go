// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package types

import (
	"fmt"
	"strconv"

	"github.com/asaskevich/govalidator"
)

// Version is a semantic version triple as it appears on the wire.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// DaemonVersion is the version reported by "get statistics" on the global scope.
var DaemonVersion = Version{Major: 0, Minor: 6, Patch: 0}

// Request is a validated request envelope as handed to a scope controller.
// Method and Action are lowercased by the dispatcher.
type Request struct {
	Method string
	Scope  string
	Action string
	Args   Args
}

// Args is the "args" sub-object of a request envelope. The typed accessors
// implement the shared argument contract: a missing argument fails with
// "missing required <name>" and a wrongly typed one with "invalid <name>".
type Args map[string]interface{}

// ArgError reports a missing or wrongly typed request argument.
type ArgError struct {
	Name    string
	Missing bool
}

func (e *ArgError) Error() string {
	if e.Missing {
		return "missing required " + e.Name
	}
	return "invalid " + e.Name
}

func missing(name string) *ArgError {
	return &ArgError{Name: name, Missing: true}
}

func invalid(name string) *ArgError {
	return &ArgError{Name: name}
}

// Uint extracts a required unsigned integer. Negative, fractional and
// out-of-range numbers are rejected.
func (a Args) Uint(name string) (uint, error) {
	raw, ok := a[name]
	if !ok {
		return 0, missing(name)
	}
	n, ok := raw.(float64)
	if !ok || !govalidator.IsWhole(n) || !govalidator.IsNonNegative(n) || n >= 1<<64 {
		return 0, invalid(name)
	}
	return uint(n), nil
}

// OptionalUint extracts an optional unsigned integer. The second return
// value reports whether the argument was present.
func (a Args) OptionalUint(name string) (uint, bool, error) {
	if _, ok := a[name]; !ok {
		return 0, false, nil
	}
	n, err := a.Uint(name)
	return n, err == nil, err
}

// String extracts a required string.
func (a Args) String(name string) (string, error) {
	raw, ok := a[name]
	if !ok {
		return "", missing(name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid(name)
	}
	return s, nil
}

// OptionalString extracts an optional string.
func (a Args) OptionalString(name string) (string, bool, error) {
	if _, ok := a[name]; !ok {
		return "", false, nil
	}
	s, err := a.String(name)
	return s, err == nil, err
}

// Bool extracts a required boolean.
func (a Args) Bool(name string) (bool, error) {
	raw, ok := a[name]
	if !ok {
		return false, missing(name)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, invalid(name)
	}
	return b, nil
}

// OptionalBool extracts an optional boolean.
func (a Args) OptionalBool(name string) (bool, bool, error) {
	if _, ok := a[name]; !ok {
		return false, false, nil
	}
	b, err := a.Bool(name)
	return b, err == nil, err
}

// StringSlice extracts an optional array of strings. A present argument
// that is not an array of strings fails with "invalid <name>".
func (a Args) StringSlice(name string) ([]string, error) {
	raw, ok := a[name]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, invalid(name)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, invalid(name)
		}
		out = append(out, s)
	}
	return out, nil
}

// Scalar extracts a required scalar (string, number or boolean) and
// stringifies it.
func (a Args) Scalar(name string) (string, error) {
	raw, ok := a[name]
	if !ok {
		return "", missing(name)
	}
	s, ok := StringifyScalar(raw)
	if !ok {
		return "", invalid(name)
	}
	return s, nil
}

// ScalarMap extracts a required object whose values are all scalars,
// stringifying each value. Object or array values fail with ErrMetaValues.
func (a Args) ScalarMap(name string) (map[string]string, error) {
	raw, ok := a[name]
	if !ok {
		return nil, missing(name)
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, invalid(name)
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := StringifyScalar(v)
		if !ok {
			return nil, ErrMetaValues
		}
		out[k] = s
	}
	return out, nil
}

// StringifyScalar renders a decoded JSON scalar as a string. It reports
// false for objects, arrays and nulls.
func StringifyScalar(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Response is the JSON object returned for every request. It always
// carries an integer "status"; error responses add a "message".
type Response map[string]interface{}

// Success returns a fresh 200 response.
func Success() Response {
	return Response{"status": StatusOK}
}

// ErrorResponse returns a response carrying the given status and message.
func ErrorResponse(status int, message string) Response {
	return Response{"status": status, "message": message}
}

// With sets a key on the response and returns it for chaining.
func (r Response) With(key string, value interface{}) Response {
	r[key] = value
	return r
}

// Status returns the response status code.
func (r Response) Status() int {
	if s, ok := r["status"].(int); ok {
		return s
	}
	return StatusInternal
}

// Message returns the response message, if any.
func (r Response) Message() string {
	s, _ := r["message"].(string)
	return s
}
