package manifest

// OrderedMap is a string map that remembers insertion order. Macro
// definitions are passed to the build tools in declaration order.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedMap returns an empty map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]string{}}
}

// Set stores value under key. Existing keys keep their position.
func (o *OrderedMap) Set(key, value string) {
	if o.values == nil {
		o.values = map[string]string{}
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *OrderedMap) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (o *OrderedMap) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (o *OrderedMap) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len returns the number of entries.
func (o *OrderedMap) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Clone returns an independent copy.
func (o *OrderedMap) Clone() *OrderedMap {
	c := NewOrderedMap()
	for _, k := range o.Keys() {
		c.Set(k, o.values[k])
	}
	return c
}
