package types

// AttributeMap holds a variant's open-ended axis-name -> value mapping
// (e.g. "color" -> "Red"). Keys are unique by construction.
type AttributeMap map[string]string

// Clone returns an independent copy of the map.
func (m AttributeMap) Clone() AttributeMap {
	if m == nil {
		return nil
	}
	out := make(AttributeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Get returns the value for key and whether it was present.
func (m AttributeMap) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}
