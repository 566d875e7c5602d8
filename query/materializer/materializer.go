package materializer

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hydrate-orm/hydrate-go/query/alias"
	"github.com/hydrate-orm/hydrate-go/query/coerce"
	"github.com/hydrate-orm/hydrate-go/query/spec"
)

// Result is one materialized logical row: an entity pointer, a scalar
// value, or a Tuple when the mapping has more than one top-level return.
type Result = any

// Tuple is the materialized form of a multi-return row.
type Tuple []any

// Materializer maps raw rows to typed results per one mapping spec.
// It is stateless across passes; per-pass identity state lives on the
// Iterator returned by Materialize.
type Materializer struct {
	mapping  *spec.Mapping
	aliases  *alias.Table
	registry *coerce.Registry
	topCount int
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithAliasTable supplies the placeholder table produced by the alias
// resolver; generated columns take precedence over the spec's defaults.
func WithAliasTable(t *alias.Table) Option {
	return func(m *Materializer) { m.aliases = t }
}

// WithRegistry overrides the scalar coercion registry.
func WithRegistry(r *coerce.Registry) Option {
	return func(m *Materializer) { m.registry = r }
}

// New creates a materializer for a validated mapping.
func New(mapping *spec.Mapping, opts ...Option) *Materializer {
	m := &Materializer{mapping: mapping, registry: coerce.Default()}
	for _, opt := range opts {
		opt(m)
	}
	for _, r := range mapping.Returns() {
		switch r.(type) {
		case *spec.EntityReturn, *spec.ScalarReturn:
			m.topCount++
		}
	}
	return m
}

// Materialize starts a lazy pass over the cursor. The returned iterator
// owns the cursor and closes it on exhaustion, failure and Close.
func (m *Materializer) Materialize(ctx context.Context, cursor RowCursor) *Iterator {
	return &Iterator{
		ctx:         ctx,
		m:           m,
		cursor:      cursor,
		identity:    make(map[identityKey]reflect.Value),
		collections: make(map[string]bool),
		emitted:     make(map[string]bool),
	}
}

// List runs a full pass and drains it into a slice.
func (m *Materializer) List(ctx context.Context, cursor RowCursor) ([]Result, error) {
	it := m.Materialize(ctx, cursor)
	defer it.Close()

	var results []Result
	for it.Next() {
		results = append(results, it.Result())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// column resolves the result-set column for an alias property path,
// resolver-generated aliases first.
func (m *Materializer) column(aliasName, path string) (string, bool) {
	if col, ok := m.aliases.Column(aliasName, path); ok {
		return col, true
	}
	return m.mapping.ColumnFor(aliasName, path)
}

// identityKey dedups entity fragments within one pass.
type identityKey struct {
	entity string
	id     string
}

// hydrated is one alias's materialized value for the current row.
type hydrated struct {
	value any
	key   string
}

// processRow materializes every return item against one row and returns
// the row's top-level signature and tuple.
func (it *Iterator) processRow(row RawRow) (string, Result, error) {
	m := it.m
	instances := make(map[string]hydrated)
	top := make([]any, 0, m.topCount)
	var sigParts []string

	for _, r := range m.mapping.Returns() {
		switch ret := r.(type) {
		case *spec.EntityReturn:
			h, err := it.materializeEntity(row, ret.Alias, "")
			if err != nil {
				return "", nil, err
			}
			instances[ret.Alias] = h
			top = append(top, h.value)
			sigParts = append(sigParts, ret.Entity.Name+"#"+h.key)

		case *spec.JoinReturn:
			if err := it.assembleJoin(row, ret, instances); err != nil {
				return "", nil, err
			}

		case *spec.CollectionReturn:
			if err := it.assembleCollection(row, ret, instances); err != nil {
				return "", nil, err
			}

		case *spec.ScalarReturn:
			value, err := it.materializeScalar(row, ret)
			if err != nil {
				return "", nil, err
			}
			top = append(top, value)
		}
	}

	var result Result
	if m.topCount == 1 {
		result = top[0]
	} else {
		result = Tuple(top)
	}
	return strings.Join(sigParts, "|"), result, nil
}

// materializeEntity extracts one alias's entity from the row, reusing the
// pass-local instance when the identity key was seen before. Property
// values are first-row-wins: an existing instance is never re-hydrated.
func (it *Iterator) materializeEntity(row RawRow, aliasName, pathPrefix string) (hydrated, error) {
	m := it.m
	entity, _ := m.mapping.EntityFor(aliasName)

	key := it.entityKey(row, aliasName, pathPrefix, entity)
	if key == "" {
		// All id columns null: absent, not a placeholder instance.
		return hydrated{}, nil
	}

	ik := identityKey{entity: entity.Name, id: key}
	if existing, ok := it.identity[ik]; ok {
		return hydrated{value: existing.Interface(), key: key}, nil
	}

	concrete := entity
	if entity.Discriminator != nil {
		col, _ := m.column(aliasName, pathPrefix+"class")
		raw, _ := row.Get(col)
		value := keyString(raw)
		sub, ok := entity.Discriminator.Subtypes[value]
		if !ok {
			return hydrated{}, &UnknownDiscriminatorError{Entity: entity.Name, Value: value}
		}
		concrete = sub
	}

	instance := concrete.Factory()
	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return hydrated{}, fmt.Errorf("entity %s: factory must return a pointer to struct, got %T", concrete.Name, instance)
	}

	for _, leaf := range concrete.AllLeafProperties() {
		col, ok := m.column(aliasName, pathPrefix+leaf.Path)
		if !ok {
			continue
		}
		raw, ok := row.Get(col)
		if !ok {
			continue
		}
		value := raw
		if leaf.Property.Type != "" {
			coerced, err := m.registry.Lookup(leaf.Property.Type)(raw)
			if err != nil {
				return hydrated{}, &TypeCoercionError{Column: col, ExpectedType: leaf.Property.Type, ActualValue: raw, Err: err}
			}
			value = coerced
		}
		if err := setProperty(rv.Elem(), leaf.Path, value); err != nil {
			return hydrated{}, fmt.Errorf("entity %s: %w", concrete.Name, err)
		}
	}

	it.identity[ik] = rv
	return hydrated{value: instance, key: key}, nil
}

// entityKey builds the identity-key string from the id columns; empty when
// every id column is null.
func (it *Iterator) entityKey(row RawRow, aliasName, pathPrefix string, entity *spec.EntityDescriptor) string {
	var parts []string
	allNull := true
	for _, leaf := range entity.AllLeafProperties() {
		if leaf.Path != entity.IDProperty && !strings.HasPrefix(leaf.Path, entity.IDProperty+".") {
			continue
		}
		col, ok := it.m.column(aliasName, pathPrefix+leaf.Path)
		if !ok {
			continue
		}
		raw, _ := row.Get(col)
		if raw != nil {
			allNull = false
		}
		parts = append(parts, keyString(raw))
	}
	if allNull {
		return ""
	}
	return strings.Join(parts, "/")
}

// assembleJoin sets the association property on the owner instance. An
// all-null foreign key resolves to absent.
func (it *Iterator) assembleJoin(row RawRow, ret *spec.JoinReturn, instances map[string]hydrated) error {
	target, err := it.materializeEntity(row, ret.Alias, "")
	if err != nil {
		return err
	}
	instances[ret.Alias] = target
	if target.value == nil {
		return nil
	}

	owner := instances[ret.OwnerAlias]
	if owner.value == nil {
		return nil
	}

	field := fieldByProperty(reflect.ValueOf(owner.value).Elem(), ret.OwnerProperty)
	if !field.IsValid() || !field.CanSet() {
		return fmt.Errorf("owner has no settable field for association %q", ret.OwnerProperty)
	}
	// First-row-wins: never overwrite an already-assembled association.
	if !field.IsZero() {
		return nil
	}

	targetValue := reflect.ValueOf(target.value)
	if field.Kind() == reflect.Ptr {
		field.Set(targetValue)
		return nil
	}
	field.Set(targetValue.Elem())
	return nil
}

// assembleCollection appends the row's element to the owner's collection,
// suppressing duplicate elements per owner. A null element key contributes
// an empty (non-nil) collection.
func (it *Iterator) assembleCollection(row RawRow, ret *spec.CollectionReturn, instances map[string]hydrated) error {
	owner := instances[ret.OwnerAlias]
	if owner.value == nil {
		return nil
	}

	field := fieldByProperty(reflect.ValueOf(owner.value).Elem(), ret.OwnerProperty)
	if !field.IsValid() || !field.CanSet() || field.Kind() != reflect.Slice {
		return fmt.Errorf("owner has no settable slice field for collection %q", ret.OwnerProperty)
	}
	if field.IsNil() {
		field.Set(reflect.MakeSlice(field.Type(), 0, 0))
	}

	element, err := it.materializeEntity(row, ret.Alias, "element.")
	if err != nil {
		return err
	}
	if element.value == nil {
		return nil
	}

	seenKey := ret.OwnerAlias + "/" + owner.key + "." + ret.OwnerProperty + "#" + element.key
	if it.collections[seenKey] {
		return nil
	}
	it.collections[seenKey] = true

	elementValue := reflect.ValueOf(element.value)
	if field.Type().Elem().Kind() != reflect.Ptr {
		elementValue = elementValue.Elem()
	}
	field.Set(reflect.Append(field, elementValue))
	return nil
}

// materializeScalar coerces one scalar column to its declared type.
func (it *Iterator) materializeScalar(row RawRow, ret *spec.ScalarReturn) (any, error) {
	raw, ok := row.Get(ret.Column)
	if !ok {
		return nil, fmt.Errorf("result set has no column %q", ret.Column)
	}
	if ret.Type == "" {
		return raw, nil
	}
	value, err := it.m.registry.Lookup(ret.Type)(raw)
	if err != nil {
		return nil, &TypeCoercionError{Column: ret.Column, ExpectedType: ret.Type, ActualValue: raw, Err: err}
	}
	return value, nil
}

// keyString canonicalizes a raw id or discriminator value for map keying;
// drivers may deliver the same logical key as int64, string or []byte.
func keyString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// setProperty sets a possibly embedded property path on a struct value.
func setProperty(structValue reflect.Value, path string, value any) error {
	segments := strings.Split(path, ".")
	current := structValue
	for i, segment := range segments {
		field := fieldByProperty(current, segment)
		if !field.IsValid() || !field.CanSet() {
			return fmt.Errorf("no settable field for property %q", path)
		}
		if i == len(segments)-1 {
			return setFieldValue(field, value)
		}
		// Embedded step: allocate through nil pointers.
		if field.Kind() == reflect.Ptr {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			field = field.Elem()
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("property %q: segment %q is not an embedded struct", path, segment)
		}
		current = field
	}
	return nil
}

// fieldByProperty finds a struct field for a property name: PascalCase of
// the name first, then db tag, then case-insensitive match.
func fieldByProperty(structValue reflect.Value, name string) reflect.Value {
	if f := structValue.FieldByName(pascalCase(name)); f.IsValid() {
		return f
	}
	t := structValue.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("db") == name || strings.EqualFold(f.Name, name) {
			return structValue.Field(i)
		}
	}
	return reflect.Value{}
}

// setFieldValue sets a struct field value from a materialized value
func setFieldValue(fieldValue reflect.Value, value any) error {
	fieldType := fieldValue.Type()

	if fieldType.Kind() == reflect.Ptr {
		if value == nil {
			fieldValue.Set(reflect.Zero(fieldType))
			return nil
		}
		elemValue := reflect.New(fieldType.Elem()).Elem()
		if err := setFieldValue(elemValue, value); err != nil {
			return err
		}
		fieldValue.Set(elemValue.Addr())
		return nil
	}

	if value == nil {
		return nil
	}

	valueValue := reflect.ValueOf(value)
	valueType := valueValue.Type()
	if valueType.AssignableTo(fieldType) {
		fieldValue.Set(valueValue)
		return nil
	}
	if valueType.ConvertibleTo(fieldType) {
		fieldValue.Set(valueValue.Convert(fieldType))
		return nil
	}
	return fmt.Errorf("cannot convert %s to %s", valueType, fieldType)
}

// pascalCase converts a property name to an exported field name.
func pascalCase(s string) string {
	parts := strings.Split(s, "_")
	var result strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(part[1:])
	}
	return result.String()
}
