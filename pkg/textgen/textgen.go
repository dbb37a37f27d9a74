// Package textgen talks to the text generation and ranking backends.
package textgen

import (
	"context"
	"errors"
	"math"
)

// ErrUnsupported is returned by providers that cannot serve a call.
var ErrUnsupported = errors.New("operation not supported by provider")

// Params are backend generation parameters as written in configuration,
// e.g. num_return_sequences, max_new_tokens, temperature.
type Params map[string]any

// Generator produces raw completions for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, model string, params Params) ([]string, error)
}

// Ranker scores how well candidate continues prior.
type Ranker interface {
	Rank(ctx context.Context, prior, candidate, model string) (float64, error)
}

// RankInput joins prior text and a candidate the way dialog ranking models
// expect.
func RankInput(prior, candidate string) string {
	return prior + "<|endoftext|>" + candidate
}

// With returns a copy of p with key set to v.
func (p Params) With(key string, v any) Params {
	out := make(Params, len(p)+1)
	for k, val := range p {
		out[k] = val
	}
	out[key] = v
	return out
}

// Int reads an integer parameter. YAML may decode numbers as int or float64.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// Float reads a numeric parameter.
func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
