// Package alias rewrites {alias.property} placeholders in native query
// templates to generated result-set column aliases.
package alias

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/hydrate-orm/hydrate-go/query/spec"
)

// Table maps alias + property path to the generated column alias produced
// while resolving a template. The materializer consults it before falling
// back to the spec's own column table.
type Table struct {
	byAlias map[string]map[string]string
}

// Column returns the generated column for an alias and property path.
func (t *Table) Column(alias, path string) (string, bool) {
	if t == nil {
		return "", false
	}
	cols, ok := t.byAlias[alias]
	if !ok {
		return "", false
	}
	col, ok := cols[path]
	return col, ok
}

func (t *Table) set(alias, path, column string) {
	if t.byAlias[alias] == nil {
		t.byAlias[alias] = make(map[string]string)
	}
	t.byAlias[alias][path] = column
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)((?:\.[A-Za-z0-9_*]+)*)\}`)

// Resolver rewrites placeholders against one mapping spec.
type Resolver struct {
	mapping *spec.Mapping
}

// NewResolver creates a resolver for the given mapping.
func NewResolver(m *spec.Mapping) *Resolver {
	return &Resolver{mapping: m}
}

// Resolve replaces every placeholder in the template with generated column
// aliases and returns the rewritten query plus the placeholder table.
// Pure function of (template, mapping); the template is never mutated.
func (r *Resolver) Resolve(template string) (string, *Table, error) {
	table := &Table{byAlias: make(map[string]map[string]string)}
	owners := make(map[string]string) // generated column -> placeholder

	var resolveErr error
	rewritten := placeholderPattern.ReplaceAllStringFunc(template, func(placeholder string) string {
		if resolveErr != nil {
			return placeholder
		}
		groups := placeholderPattern.FindStringSubmatch(placeholder)
		aliasName := groups[1]
		path := strings.TrimPrefix(groups[2], ".")

		replacement, err := r.resolveOne(placeholder, aliasName, path, table, owners)
		if err != nil {
			resolveErr = err
			return placeholder
		}
		return replacement
	})
	if resolveErr != nil {
		return "", nil, resolveErr
	}
	return rewritten, table, nil
}

// resolveOne handles a single placeholder occurrence.
func (r *Resolver) resolveOne(placeholder, aliasName, path string, table *Table, owners map[string]string) (string, error) {
	if !r.mapping.HasAlias(aliasName) {
		return "", &UnresolvedAliasError{Alias: aliasName, Placeholder: placeholder}
	}
	entity, _ := r.mapping.EntityFor(aliasName)
	isCollection := r.mapping.IsCollectionAlias(aliasName)

	paths, expand, err := r.pathsFor(placeholder, aliasName, entity, isCollection, path)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		generated := generatedAlias(aliasName, p)
		if owner, taken := owners[generated]; taken && owner != placeholder {
			return "", &AmbiguousColumnError{Column: generated, Placeholders: [2]string{owner, placeholder}}
		}
		owners[generated] = placeholder
		table.set(aliasName, p, generated)

		if expand {
			source := sourceColumn(entity, p)
			if p == "key" {
				// The key column is declared on the collection return itself.
				source, _ = r.mapping.ColumnFor(aliasName, "key")
			}
			parts = append(parts, fmt.Sprintf("%s.%s as %s", aliasName, source, generated))
		} else {
			parts = append(parts, generated)
		}
	}
	return strings.Join(parts, ", "), nil
}

// pathsFor maps a placeholder path to the property paths it covers.
// The second result is true when the placeholder expands to a full select
// list rather than a bare alias.
func (r *Resolver) pathsFor(placeholder, aliasName string, entity *spec.EntityDescriptor, isCollection bool, path string) ([]string, bool, error) {
	unresolved := &UnresolvedAliasError{Alias: aliasName, Placeholder: placeholder}

	if isCollection {
		switch {
		case path == "key":
			return []string{"key"}, false, nil
		case path == "*":
			paths := []string{"key"}
			paths = append(paths, elementPaths(entity)...)
			return paths, true, nil
		case path == "element":
			return idPaths(entity, "element."), false, nil
		case path == "element.*":
			return elementPaths(entity), true, nil
		case strings.HasPrefix(path, "element."):
			p := path
			if _, ok := r.mapping.ColumnFor(aliasName, p); !ok {
				return nil, false, unresolved
			}
			return []string{p}, false, nil
		}
		return nil, false, unresolved
	}

	switch {
	case path == "*":
		paths := make([]string, 0, 8)
		for _, l := range entity.AllLeafProperties() {
			paths = append(paths, l.Path)
		}
		if entity.Discriminator != nil {
			paths = append(paths, "class")
		}
		return paths, true, nil
	case path == "class":
		if entity.Discriminator == nil {
			return nil, false, unresolved
		}
		return []string{"class"}, false, nil
	case path == "id" || path == "key":
		return idPaths(entity, ""), false, nil
	case path != "":
		if _, ok := r.mapping.ColumnFor(aliasName, path); !ok {
			return nil, false, unresolved
		}
		return []string{path}, false, nil
	}
	return nil, false, unresolved
}

// idPaths returns the leaf paths of the entity's id property, prefixed for
// collection element access.
func idPaths(entity *spec.EntityDescriptor, prefix string) []string {
	var paths []string
	for _, l := range entity.AllLeafProperties() {
		if l.Path == entity.IDProperty || strings.HasPrefix(l.Path, entity.IDProperty+".") {
			paths = append(paths, prefix+l.Path)
		}
	}
	return paths
}

// elementPaths returns all element property paths of a collection alias.
func elementPaths(entity *spec.EntityDescriptor) []string {
	var paths []string
	for _, l := range entity.AllLeafProperties() {
		paths = append(paths, "element."+l.Path)
	}
	if entity.Discriminator != nil {
		paths = append(paths, "element.class")
	}
	return paths
}

// sourceColumn gives the table-side column an expansion selects from.
// This is the entity's declared column, never the spec's read-side default,
// which may carry an alias prefix.
func sourceColumn(entity *spec.EntityDescriptor, path string) string {
	lookup := strings.TrimPrefix(path, "element.")
	if lookup == "class" {
		return entity.Discriminator.Column
	}
	for _, l := range entity.AllLeafProperties() {
		if l.Path == lookup {
			if l.Property.Column != "" {
				return l.Property.Column
			}
			return snakeCase(strings.ReplaceAll(lookup, ".", "_"))
		}
	}
	return snakeCase(strings.ReplaceAll(lookup, ".", "_"))
}

// generatedAlias derives a content-addressed column alias for alias.path.
// Distinct placeholders can never collide unless they name the same path.
func generatedAlias(aliasName, path string) string {
	leaf := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		leaf = path[i+1:]
	}
	sum := sha256.Sum256([]byte(aliasName + "." + path))
	return snakeCase(leaf) + "_" + hex.EncodeToString(sum[:])[:8]
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
