// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package container

import (
	"errors"
	"fmt"
)

// ErrFilterShape is returned when args.filters is neither an object nor
// an array of objects.
var ErrFilterShape = errors.New("filters must be expressed as a JSON object or array")

// UnsupportedFilterError reports a filter type no rule is registered for.
type UnsupportedFilterError struct {
	Type string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("Unsupported filter '%s'", e.Type)
}

// InvalidFilterValueError reports a filter value of the wrong type.
type InvalidFilterValueError struct {
	Type string
}

func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid value for filter '%s'", e.Type)
}

// Filter is one (type, value) predicate over the container indices.
type Filter struct {
	Type  string
	Value interface{}
}

// Group is a conjunction of filters; its result is their intersection.
type Group []Filter

// Union is a disjunction of groups; its result is their set union. A nil
// union selects every game.
type Union []Group

// Rule evaluates one filter value into a set of game ids. Rules run
// under the container index mutex.
type Rule func(value interface{}) (map[uint]struct{}, error)

// ParseFilters accepts the decoded args.filters value: a single group
// (object) or a union of groups (array of objects).
func ParseFilters(raw interface{}) (Union, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return Union{groupFromObject(v)}, nil
	case []interface{}:
		union := make(Union, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, ErrFilterShape
			}
			union = append(union, groupFromObject(obj))
		}
		return union, nil
	default:
		return nil, ErrFilterShape
	}
}

func groupFromObject(obj map[string]interface{}) Group {
	group := make(Group, 0, len(obj))
	for t, v := range obj {
		group = append(group, Filter{Type: t, Value: v})
	}
	return group
}

// evaluateLocked computes the union of group intersections. Callers hold
// the index mutex.
func (c *Container) evaluateLocked(union Union) (map[uint]struct{}, error) {
	result := map[uint]struct{}{}
	for _, group := range union {
		set, err := c.evaluateGroupLocked(group)
		if err != nil {
			return nil, err
		}
		for id := range set {
			result[id] = struct{}{}
		}
	}
	return result, nil
}

func (c *Container) evaluateGroupLocked(group Group) (map[uint]struct{}, error) {
	var result map[uint]struct{}
	for _, f := range group {
		rule, ok := c.rules[f.Type]
		if !ok {
			return nil, &UnsupportedFilterError{Type: f.Type}
		}
		set, err := rule(f.Value)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = set
			continue
		}
		for id := range result {
			if _, ok := set[id]; !ok {
				delete(result, id)
			}
		}
	}
	if result == nil {
		result = map[uint]struct{}{}
	}
	return result, nil
}
