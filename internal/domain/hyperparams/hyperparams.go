// Package hyperparams resolves model-family hyperparameters for a quantile
// level from a static map keyed by quantile level.
package hyperparams

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ErrMissingHyperparameter means no key in the map can serve a level.
var ErrMissingHyperparameter = errors.New("missing hyperparameter")

// ErrInvalidFile is returned when a hyperparameter file cannot be parsed.
var ErrInvalidFile = errors.New("invalid hyperparameter file")

// Params is one family's hyperparameter set.
type Params map[string]any

// Float reads key as float64, falling back to def when absent or not numeric.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Int reads key as int, falling back to def when absent or not numeric.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Map holds parameter sets keyed by the textual form of a quantile level as
// written in the source file, e.g. "0.1", "0.10" or "0.100".
type Map map[string]Params

// Resolved is the outcome of a lookup.
type Resolved struct {
	Key    string
	Params Params
	Exact  bool // false when the nearest-key fallback was used
}

// Lookup finds the parameter set for tau. Precedence:
//  1. key equal to the shortest decimal form of tau ("0.1")
//  2. key equal to tau formatted with two decimals ("0.10")
//  3. key equal to tau formatted with three decimals ("0.100")
//  4. any key whose numeric value equals tau
//  5. the numeric key with the smallest |key - tau|; ties go to the lower key
//
// Keys that do not parse as numbers only take part in steps 1-3. A nil Map
// resolves every level to empty Params so families use their defaults.
func (m Map) Lookup(tau float64) (Resolved, error) {
	if m == nil {
		return Resolved{Params: Params{}, Exact: true}, nil
	}
	for _, k := range []string{
		strconv.FormatFloat(tau, 'f', -1, 64),
		fmt.Sprintf("%.2f", tau),
		fmt.Sprintf("%.3f", tau),
	} {
		if p, ok := m[k]; ok {
			return Resolved{Key: k, Params: p.Clone(), Exact: true}, nil
		}
	}

	type numericKey struct {
		raw string
		val float64
	}
	keys := make([]numericKey, 0, len(m))
	for raw := range m {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		keys = append(keys, numericKey{raw: raw, val: v})
	}
	if len(keys) == 0 {
		return Resolved{}, fmt.Errorf("%w: no numeric key for tau=%v", ErrMissingHyperparameter, tau)
	}
	// Ascending value, then raw text, so the scan below is deterministic.
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].val != keys[j].val {
			return keys[i].val < keys[j].val
		}
		return keys[i].raw < keys[j].raw
	})
	for _, k := range keys {
		if k.val == tau {
			return Resolved{Key: k.raw, Params: m[k.raw].Clone(), Exact: true}, nil
		}
	}
	best := keys[0]
	bestDist := math.Abs(best.val - tau)
	for _, k := range keys[1:] {
		if d := math.Abs(k.val - tau); d < bestDist {
			best, bestDist = k, d
		}
	}
	return Resolved{Key: best.raw, Params: m[best.raw].Clone()}, nil
}

// Parse decodes a YAML or JSON document whose top level maps quantile keys to
// parameter objects. Key text is preserved exactly as written.
func Parse(raw []byte) (Map, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if len(root.Content) == 0 {
		return Map{}, nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidFile)
	}
	out := make(Map, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		var p Params
		if err := doc.Content[i+1].Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrInvalidFile, key, err)
		}
		if p == nil {
			p = Params{}
		}
		out[key] = p
	}
	return out, nil
}

// Load reads and parses a hyperparameter file.
func Load(path string) (Map, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return Parse(raw)
}
