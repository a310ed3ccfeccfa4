// Package style parses, merges and serializes inline style declarations of the
// form "k:v; k:v".
package style

import (
	"strings"
)

// Separator joins serialized declarations.
const Separator = "; "

// Declarations is an ordered property map. The order of first appearance is
// kept so serialization is stable.
type Declarations struct {
	keys   []string
	values map[string]string
}

// New returns an empty declaration list.
func New() *Declarations {
	return &Declarations{values: make(map[string]string)}
}

// Parse reads a style string. Empty and malformed declarations (no colon, empty
// property or empty value) are dropped; a repeated property keeps its first
// position and its last value.
func Parse(s string) *Declarations {
	d := New()
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.TrimSpace(prop)
		value = strings.TrimSpace(value)
		if prop == "" || value == "" {
			continue
		}
		d.Set(prop, value)
	}
	return d
}

// Set adds or replaces a declaration.
func (d *Declarations) Set(prop, value string) {
	if _, ok := d.values[prop]; !ok {
		d.keys = append(d.keys, prop)
	}
	d.values[prop] = value
}

// Get returns the value of a property.
func (d *Declarations) Get(prop string) (string, bool) {
	v, ok := d.values[prop]
	return v, ok
}

// Len returns the number of declarations.
func (d *Declarations) Len() int {
	return len(d.keys)
}

// Keys returns the properties in order.
func (d *Declarations) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// String serializes the declarations as "k:v; k:v".
func (d *Declarations) String() string {
	parts := make([]string, 0, len(d.keys))
	for _, k := range d.keys {
		parts = append(parts, k+":"+d.values[k])
	}
	return strings.Join(parts, Separator)
}

// Merge combines an explicit style string with an extracted one. Every property
// present in both keeps the explicit value; properties only in the extracted
// string follow the explicit ones in their original order. The result never
// contains a property twice.
func Merge(explicit, extracted string) string {
	out := Parse(explicit)
	ext := Parse(extracted)
	for _, k := range ext.keys {
		if _, ok := out.values[k]; ok {
			continue
		}
		out.Set(k, ext.values[k])
	}
	return out.String()
}
