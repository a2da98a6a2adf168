package queryir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/vidindex/internal/ir"
)

type suffixRule struct {
	suffix string
	build  func(field string, value any) (Predicate, error)
}

// Longest suffixes first so that "_not_contains" wins over "_contains".
var suffixRules = []suffixRule{
	{"_not_contains", func(f string, v any) (Predicate, error) {
		p, err := containsPred(f, v)
		return Not{Predicate: p}, err
	}},
	{"_not_in", func(f string, v any) (Predicate, error) {
		p, err := inPred(f, v)
		return Not{Predicate: p}, err
	}},
	{"_contains", func(f string, v any) (Predicate, error) { return containsPred(f, v) }},
	{"_not", func(f string, v any) (Predicate, error) {
		p, err := equalsPred(f, v)
		return Not{Predicate: p}, err
	}},
	{"_gte", comparePred(OpGTE)},
	{"_lte", comparePred(OpLTE)},
	{"_gt", comparePred(OpGT)},
	{"_lt", comparePred(OpLT)},
	{"_in", func(f string, v any) (Predicate, error) { return inPred(f, v) }},
}

// ParseWhere converts a decoded where map (JSON or YAML) into a predicate.
// A nil or empty map yields a nil predicate, which matches every row.
// Field names are not checked here; Validate does that against the catalog.
func ParseWhere(where map[string]any) (Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		p, err := parseKey(key, where[key])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return And{Predicates: preds}, nil
}

func parseKey(key string, value any) (Predicate, error) {
	switch key {
	case "and", "or":
		subs, err := parseList(key, value)
		if err != nil {
			return nil, err
		}
		if key == "and" {
			return And{Predicates: subs}, nil
		}
		return Or{Predicates: subs}, nil
	}

	for _, rule := range suffixRules {
		if field, ok := strings.CutSuffix(key, rule.suffix); ok && field != "" {
			p, err := rule.build(field, value)
			if err != nil {
				return nil, fmt.Errorf("where %q: %w", key, err)
			}
			return p, nil
		}
	}

	p, err := equalsPred(key, value)
	if err != nil {
		return nil, fmt.Errorf("where %q: %w", key, err)
	}
	return p, nil
}

func parseList(key string, value any) ([]Predicate, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("where %q: expected a list of filters, got %T", key, value)
	}
	out := make([]Predicate, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("where %q[%d]: expected a filter object, got %T", key, i, item)
		}
		p, err := ParseWhere(m)
		if err != nil {
			return nil, fmt.Errorf("where %q[%d]: %w", key, i, err)
		}
		if p == nil {
			p = And{}
		}
		out = append(out, p)
	}
	return out, nil
}

func literal(v any) (ir.IRValue, error) {
	val, err := ir.FromAny(v)
	if err != nil {
		return nil, err
	}
	switch val.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
		return val, nil
	default:
		return nil, fmt.Errorf("expected a scalar value, got %T", v)
	}
}

func equalsPred(field string, v any) (Predicate, error) {
	val, err := literal(v)
	if err != nil {
		return nil, err
	}
	return Equals{Field: field, Value: val}, nil
}

func containsPred(field string, v any) (Predicate, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("contains expects a string, got %T", v)
	}
	return Contains{Field: field, Value: s}, nil
}

func comparePred(op CompareOp) func(string, any) (Predicate, error) {
	return func(field string, v any) (Predicate, error) {
		val, err := literal(v)
		if err != nil {
			return nil, err
		}
		return Compare{Field: field, Op: op, Value: val}, nil
	}
}

func inPred(field string, v any) (Predicate, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("in expects a list, got %T", v)
	}
	vals := make([]ir.IRValue, 0, len(items))
	for i, item := range items {
		val, err := literal(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		vals = append(vals, val)
	}
	return In{Field: field, Values: vals}, nil
}
