package normalize

// Defensive field access over decoded JSON. Every lookup returns
// (value, present) and the caller decides the fallback once, centrally.

func getMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	return asMap(v)
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func getSlice(m map[string]interface{}, key string) ([]interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	s, ok := v.([]interface{})
	return s, ok
}

func getString(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getFloat(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func getFloatSlice(m map[string]interface{}, key string) ([]float64, bool) {
	items, ok := getSlice(m, key)
	if !ok {
		return nil, false
	}
	values := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := asFloat(item)
		if !ok {
			continue
		}
		values = append(values, f)
	}
	return values, len(values) > 0
}

func getStringSlice(m map[string]interface{}, key string) ([]string, bool) {
	items, ok := getSlice(m, key)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		values = append(values, s)
	}
	return values, len(values) > 0
}
