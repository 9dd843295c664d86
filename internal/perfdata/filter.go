package perfdata

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"slices"
	"strings"

	"github.com/casbin/govaluate"
)

// Filter keeps the rows whose Select columns hold one of the allowed values
// and for which the Where expression, if any, is true
type Filter struct {
	Select map[string][]string `yaml:"select"`
	Where  string              `yaml:"where"`
}

// ParseSelect parses col=v1|v2 terms into a Select map
func ParseSelect(terms []string) (map[string][]string, error) {
	sel := make(map[string][]string)
	for _, term := range terms {
		col, values, ok := strings.Cut(term, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" || values == "" {
			return nil, fmt.Errorf("invalid select %q, expected column=value[|value...]", term)
		}
		for _, v := range strings.Split(values, "|") {
			sel[col] = append(sel[col], strings.TrimSpace(v))
		}
	}
	return sel, nil
}

// Apply returns the rows of t that pass the filter
func (f Filter) Apply(t *Table) (*Table, error) {
	for col := range f.Select {
		if !t.HasColumn(col) {
			return nil, fmt.Errorf("select column %s not found", col)
		}
	}
	out := t.where(func(row Row) bool {
		for col, allowed := range f.Select {
			if !matches(row[col], allowed) {
				return false
			}
		}
		return true
	})
	if strings.TrimSpace(f.Where) == "" {
		return out, nil
	}
	expr, err := govaluate.NewEvaluableExpression(f.Where)
	if err != nil {
		return nil, fmt.Errorf("invalid where expression %q: %w", f.Where, err)
	}
	for _, v := range expr.Vars() {
		if !t.HasColumn(v) {
			return nil, fmt.Errorf("where expression %q: column %s not found", f.Where, v)
		}
	}
	var evalErr error
	out = out.where(func(row Row) bool {
		if evalErr != nil {
			return false
		}
		result, err := expr.Evaluate(parameters(row))
		if err != nil {
			evalErr = err
			return false
		}
		keep, ok := result.(bool)
		if !ok {
			evalErr = fmt.Errorf("result is %v, not a boolean", result)
			return false
		}
		return keep
	})
	if evalErr != nil {
		return nil, fmt.Errorf("where expression %q: %w", f.Where, evalErr)
	}
	return out, nil
}

func matches(v Value, allowed []string) bool {
	if slices.Contains(allowed, v.Str) {
		return true
	}
	if !v.IsNum {
		return false
	}
	for _, a := range allowed {
		if av := NewValue(a); av.IsNum && av.Num == v.Num {
			return true
		}
	}
	return false
}

// parameters exposes a row to govaluate, as numbers where the cells are numeric
func parameters(row Row) map[string]interface{} {
	params := make(map[string]interface{}, len(row))
	for col, v := range row {
		if v.IsNum {
			params[col] = v.Num
		} else {
			params[col] = v.Str
		}
	}
	return params
}
