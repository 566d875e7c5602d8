// Package spec describes what a native query returns and how columns map to
// properties. A Mapping is validated when built and immutable afterwards.
package spec

import "sort"

// EntityDescriptor describes a mapped entity type.
// Factory must return a pointer to a zero struct value; property values are
// set on the struct fields by db tag, exact name or PascalCase of the
// property name.
type EntityDescriptor struct {
	Name          string
	Factory       func() any
	Properties    []PropertyDescriptor
	IDProperty    string
	Discriminator *Discriminator
	Associations  map[string]Association
}

// PropertyDescriptor describes one mapped property.
// Column is the default result-set column; empty means the column name is
// derived from the property name. A non-empty Properties slice marks an
// embedded (composite) property, which recurses exactly one level.
type PropertyDescriptor struct {
	Name       string
	Column     string
	Type       string
	Lazy       bool
	Properties []PropertyDescriptor
}

// Discriminator selects the concrete subtype for a polymorphic entity row.
// Subtypes maps discriminator column values to concrete descriptors; each
// subtype declares its full property list, base properties included.
type Discriminator struct {
	Column   string
	Subtypes map[string]*EntityDescriptor
}

// Association describes an association-valued property of an entity.
type Association struct {
	Target     *EntityDescriptor
	Collection bool
}

// LeafProperty is a flattened, non-lazy property with its full path
// ("name", or "address.city" for an embedded leaf).
type LeafProperty struct {
	Path     string
	Property PropertyDescriptor
}

// LeafProperties returns the entity's eager leaf properties in declared
// order, embedded properties flattened one level.
func (e *EntityDescriptor) LeafProperties() []LeafProperty {
	var leaves []LeafProperty
	for _, p := range e.Properties {
		if p.Lazy {
			continue
		}
		if len(p.Properties) > 0 {
			for _, sub := range p.Properties {
				if sub.Lazy {
					continue
				}
				leaves = append(leaves, LeafProperty{Path: p.Name + "." + sub.Name, Property: sub})
			}
			continue
		}
		leaves = append(leaves, LeafProperty{Path: p.Name, Property: p})
	}
	return leaves
}

// AllLeafProperties returns the declared leaves plus, for a discriminated
// entity, the leaves each subtype adds beyond the base, subtypes visited in
// discriminator-value order so the result is deterministic.
func (e *EntityDescriptor) AllLeafProperties() []LeafProperty {
	leaves := e.LeafProperties()
	if e.Discriminator == nil {
		return leaves
	}

	seen := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		seen[l.Path] = true
	}

	values := make([]string, 0, len(e.Discriminator.Subtypes))
	for v := range e.Discriminator.Subtypes {
		values = append(values, v)
	}
	sort.Strings(values)

	for _, v := range values {
		for _, l := range e.Discriminator.Subtypes[v].LeafProperties() {
			if seen[l.Path] {
				continue
			}
			seen[l.Path] = true
			leaves = append(leaves, l)
		}
	}
	return leaves
}

// leafByPath finds a leaf property by path across base and subtypes.
func (e *EntityDescriptor) leafByPath(path string) (LeafProperty, bool) {
	for _, l := range e.AllLeafProperties() {
		if l.Path == path {
			return l, true
		}
	}
	return LeafProperty{}, false
}
