package spec

import (
	"fmt"
	"strings"
)

// LockMode is the lock level requested for an entity return.
// The read path records it; acquiring locks is the backend's business.
type LockMode int

const (
	LockNone LockMode = iota
	LockRead
	LockUpgrade
)

// Return is one item of a result-set mapping.
type Return interface {
	isReturn()
}

// EntityReturn maps a query alias to an entity type.
// PropertyColumns overrides the column for a property path; when non-empty
// it must cover every eager property of the entity (and of all subtypes for
// a discriminated entity). When empty, column names default to the
// descriptor's declared columns or to snake_case of the property path,
// prefixed with the alias for every alias after the first.
type EntityReturn struct {
	Alias               string
	Entity              *EntityDescriptor
	PropertyColumns     map[string]string
	DiscriminatorColumn string
	Lock                LockMode
}

func (*EntityReturn) isReturn() {}

// JoinReturn marks an association to be eagerly assembled from the same row
// set. OwnerProperty must name a non-collection association on the owner
// alias's entity.
type JoinReturn struct {
	Alias         string
	OwnerAlias    string
	OwnerProperty string

	// PropertyColumns overrides columns of the joined entity's properties.
	PropertyColumns map[string]string
}

func (*JoinReturn) isReturn() {}

// CollectionReturn marks a collection populated by grouping rows on the
// owner key. OwnerProperty must name a collection association on the owner
// alias's entity.
type CollectionReturn struct {
	Alias         string
	OwnerAlias    string
	OwnerProperty string

	// KeyColumn is the column carrying the owner key; defaults to the
	// collection alias suffixed with "_key".
	KeyColumn string
	// ElementColumns overrides columns of the element entity's properties.
	ElementColumns map[string]string
}

func (*CollectionReturn) isReturn() {}

// ScalarReturn maps a single result column to a declared scalar type.
type ScalarReturn struct {
	Column string
	Type   string
}

func (*ScalarReturn) isReturn() {}

// binding is the resolved view of one alias: its entity, its effective
// property-path→column table and its role in the spec.
type binding struct {
	alias      string
	entity     *EntityDescriptor
	columns    map[string]string
	collection bool
	owner      string
	ownerProp  string
}

// Mapping is a validated, immutable result-set mapping.
type Mapping struct {
	returns  []Return
	bindings map[string]*binding

	hasCollections bool
	hasScalars     bool
}

// New validates the given returns and builds an immutable Mapping.
// All violations surface here as *InvalidMappingSpecError.
func New(returns ...Return) (*Mapping, error) {
	m := &Mapping{
		returns:  returns,
		bindings: make(map[string]*binding),
	}

	firstEntityAlias := ""
	for _, r := range returns {
		er, ok := r.(*EntityReturn)
		if !ok {
			continue
		}
		if firstEntityAlias == "" {
			firstEntityAlias = er.Alias
		}
	}

	// Entity returns first so join/collection owners can be resolved.
	for _, r := range returns {
		er, ok := r.(*EntityReturn)
		if !ok {
			continue
		}
		if err := m.bindEntity(er, er.Alias != firstEntityAlias); err != nil {
			return nil, err
		}
	}

	for _, r := range returns {
		switch ret := r.(type) {
		case *JoinReturn:
			if err := m.bindJoin(ret); err != nil {
				return nil, err
			}
		case *CollectionReturn:
			if err := m.bindCollection(ret); err != nil {
				return nil, err
			}
			m.hasCollections = true
		case *ScalarReturn:
			if ret.Column == "" {
				return nil, &InvalidMappingSpecError{Reason: "scalar return has no column"}
			}
			m.hasScalars = true
		}
	}

	return m, nil
}

// bindEntity validates an entity return and computes its column table.
func (m *Mapping) bindEntity(er *EntityReturn, prefixed bool) error {
	if er.Alias == "" {
		return &InvalidMappingSpecError{Reason: "entity return has no alias"}
	}
	if _, dup := m.bindings[er.Alias]; dup {
		return &InvalidMappingSpecError{Reason: fmt.Sprintf("duplicate alias %q", er.Alias)}
	}
	if er.Entity == nil || er.Entity.Factory == nil {
		return &InvalidMappingSpecError{Reason: fmt.Sprintf("alias %q has no entity descriptor", er.Alias)}
	}
	if _, ok := er.Entity.leafByPath(er.Entity.IDProperty); !ok {
		return &InvalidMappingSpecError{Reason: fmt.Sprintf("entity %s: id property %q is not a mapped property", er.Entity.Name, er.Entity.IDProperty)}
	}

	columns, err := columnTable(er.Entity, er.Alias, prefixed, er.PropertyColumns)
	if err != nil {
		return err
	}
	if er.Entity.Discriminator != nil {
		disc := er.DiscriminatorColumn
		if disc == "" {
			disc = er.Entity.Discriminator.Column
		}
		if disc == "" {
			return &InvalidMappingSpecError{Reason: fmt.Sprintf("entity %s: discriminated entity has no discriminator column", er.Entity.Name)}
		}
		columns["class"] = disc
	}

	m.bindings[er.Alias] = &binding{alias: er.Alias, entity: er.Entity, columns: columns}
	return nil
}

// bindJoin derives the implicit entity binding for a join alias.
func (m *Mapping) bindJoin(jr *JoinReturn) error {
	owner, assoc, err := m.ownerAssociation(jr.Alias, jr.OwnerAlias, jr.OwnerProperty)
	if err != nil {
		return err
	}
	if assoc.Collection {
		return &InvalidMappingSpecError{Reason: fmt.Sprintf("join return %q: property %q on %s is a collection, use a collection return", jr.Alias, jr.OwnerProperty, owner.entity.Name)}
	}

	columns, err := columnTable(assoc.Target, jr.Alias, true, jr.PropertyColumns)
	if err != nil {
		return err
	}
	if assoc.Target.Discriminator != nil {
		columns["class"] = assoc.Target.Discriminator.Column
	}

	m.bindings[jr.Alias] = &binding{
		alias:     jr.Alias,
		entity:    assoc.Target,
		columns:   columns,
		owner:     jr.OwnerAlias,
		ownerProp: jr.OwnerProperty,
	}
	return nil
}

// bindCollection derives the implicit element binding for a collection alias.
func (m *Mapping) bindCollection(cr *CollectionReturn) error {
	owner, assoc, err := m.ownerAssociation(cr.Alias, cr.OwnerAlias, cr.OwnerProperty)
	if err != nil {
		return err
	}
	if !assoc.Collection {
		return &InvalidMappingSpecError{Reason: fmt.Sprintf("collection return %q: property %q on %s is not a collection", cr.Alias, cr.OwnerProperty, owner.entity.Name)}
	}

	elementColumns, err := columnTable(assoc.Target, cr.Alias, true, cr.ElementColumns)
	if err != nil {
		return err
	}

	columns := make(map[string]string, len(elementColumns)+2)
	for path, col := range elementColumns {
		columns["element."+path] = col
	}
	// The default cannot reuse the owner id's column name: element columns
	// are already prefixed with the alias and would collide.
	key := cr.KeyColumn
	if key == "" {
		key = cr.Alias + "_key"
	}
	columns["key"] = key
	if assoc.Target.Discriminator != nil {
		columns["element.class"] = assoc.Target.Discriminator.Column
	}

	m.bindings[cr.Alias] = &binding{
		alias:      cr.Alias,
		entity:     assoc.Target,
		columns:    columns,
		collection: true,
		owner:      cr.OwnerAlias,
		ownerProp:  cr.OwnerProperty,
	}
	return nil
}

// ownerAssociation resolves the owner binding and the named association for
// a join or collection return, validating the alias namespace on the way.
func (m *Mapping) ownerAssociation(alias, ownerAlias, ownerProperty string) (*binding, Association, error) {
	if alias == "" {
		return nil, Association{}, &InvalidMappingSpecError{Reason: "join/collection return has no alias"}
	}
	if _, dup := m.bindings[alias]; dup {
		return nil, Association{}, &InvalidMappingSpecError{Reason: fmt.Sprintf("duplicate alias %q", alias)}
	}
	owner, ok := m.bindings[ownerAlias]
	if !ok || owner.collection {
		return nil, Association{}, &InvalidMappingSpecError{Reason: fmt.Sprintf("return %q references unknown owner alias %q", alias, ownerAlias)}
	}
	assoc, ok := owner.entity.Associations[ownerProperty]
	if !ok || assoc.Target == nil || assoc.Target.Factory == nil {
		return nil, Association{}, &InvalidMappingSpecError{Reason: fmt.Sprintf("property %q on entity %s is not an association", ownerProperty, owner.entity.Name)}
	}
	return owner, assoc, nil
}

// columnTable computes the property-path→column table for an entity bound to
// an alias, applying explicit overrides over descriptor columns over
// name-derived defaults.
func columnTable(entity *EntityDescriptor, alias string, prefixed bool, overrides map[string]string) (map[string]string, error) {
	leaves := entity.AllLeafProperties()
	known := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		known[l.Path] = true
	}
	for path := range overrides {
		if !known[path] {
			return nil, &InvalidMappingSpecError{Reason: fmt.Sprintf("alias %q: override for unknown property %q on entity %s", alias, path, entity.Name)}
		}
	}

	// An explicit mapping opts out of defaults and must be complete.
	if len(overrides) > 0 {
		var missing []string
		for _, l := range leaves {
			if _, ok := overrides[l.Path]; !ok {
				missing = append(missing, l.Path)
			}
		}
		if len(missing) > 0 {
			if entity.Discriminator != nil {
				return nil, &InvalidMappingSpecError{
					Reason: fmt.Sprintf("alias %q: incomplete inheritance mapping", alias),
					Err:    &IncompleteInheritanceMappingError{Entity: entity.Name, Missing: missing},
				}
			}
			return nil, &InvalidMappingSpecError{
				Reason: fmt.Sprintf("alias %q: explicit property mapping for entity %s is incomplete (missing: %s)", alias, entity.Name, strings.Join(missing, ", ")),
			}
		}
	}

	columns := make(map[string]string, len(leaves))
	for _, l := range leaves {
		switch {
		case overrides[l.Path] != "":
			columns[l.Path] = overrides[l.Path]
		case l.Property.Column != "":
			columns[l.Path] = l.Property.Column
		case prefixed:
			columns[l.Path] = alias + "_" + snakeCase(strings.ReplaceAll(l.Path, ".", "_"))
		default:
			columns[l.Path] = snakeCase(strings.ReplaceAll(l.Path, ".", "_"))
		}
	}
	return columns, nil
}

// Returns lists the mapping's return items in declaration order.
func (m *Mapping) Returns() []Return { return m.returns }

// HasCollections reports whether the mapping assembles any collection.
func (m *Mapping) HasCollections() bool { return m.hasCollections }

// HasScalars reports whether the mapping emits any scalar column.
func (m *Mapping) HasScalars() bool { return m.hasScalars }

// EntityFor returns the entity descriptor bound to an alias; for a
// collection alias this is the element entity.
func (m *Mapping) EntityFor(alias string) (*EntityDescriptor, bool) {
	b, ok := m.bindings[alias]
	if !ok {
		return nil, false
	}
	return b.entity, true
}

// ColumnFor resolves a property path on an alias to its result-set column.
// Collection aliases use the paths "key", "element.<property>" and
// "element.class"; discriminated entity aliases expose "class".
func (m *Mapping) ColumnFor(alias, path string) (string, bool) {
	b, ok := m.bindings[alias]
	if !ok {
		return "", false
	}
	col, ok := b.columns[path]
	return col, ok
}

// HasAlias reports whether the alias is bound by the mapping, either
// explicitly or derived from a join/collection return.
func (m *Mapping) HasAlias(alias string) bool {
	_, ok := m.bindings[alias]
	return ok
}

// IsCollectionAlias reports whether the alias names a collection return.
func (m *Mapping) IsCollectionAlias(alias string) bool {
	b, ok := m.bindings[alias]
	return ok && b.collection
}

// snakeCase converts PascalCase to snake_case
func snakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
