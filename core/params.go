package core

import "encoding/json"

// Params is the flat parameter set a stage ran with. Values survive a JSON
// round trip unchanged: numbers are normalized to float64 on construction so
// a freshly built set compares equal to one decoded from the manifest.
type Params map[string]any

// NewParams normalizes kv into a Params set.
func NewParams(kv map[string]any) Params {
	p := make(Params, len(kv))
	for k, v := range kv {
		p[k] = normalizeValue(v)
	}
	return p
}

// Equal reports whether p and other carry the same keys and values after
// canonical-JSON normalization.
func (p Params) Equal(other Params) bool {
	a, err := json.Marshal(canonical(p))
	if err != nil {
		return false
	}
	b, err := json.Marshal(canonical(other))
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

func canonical(p Params) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
