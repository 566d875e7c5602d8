package alias

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hydrate-orm/hydrate-go/query/spec"
)

type testAuthor struct {
	ID    int64
	Name  string
	Books []*testBook
}

type testBook struct {
	ID     int64
	Title  string
	Author *testAuthor
}

func testMapping(t *testing.T, returns ...spec.Return) *spec.Mapping {
	t.Helper()
	m, err := spec.New(returns...)
	require.NoError(t, err)
	return m
}

func entities() (author, book *spec.EntityDescriptor) {
	author = &spec.EntityDescriptor{
		Name:    "Author",
		Factory: func() any { return &testAuthor{} },
		Properties: []spec.PropertyDescriptor{
			{Name: "id", Type: "int64"},
			{Name: "name", Type: "string"},
		},
		IDProperty: "id",
	}
	book = &spec.EntityDescriptor{
		Name:    "Book",
		Factory: func() any { return &testBook{} },
		Properties: []spec.PropertyDescriptor{
			{Name: "id", Type: "int64"},
			{Name: "title", Type: "string"},
		},
		IDProperty: "id",
	}
	author.Associations = map[string]spec.Association{
		"books": {Target: book, Collection: true},
	}
	book.Associations = map[string]spec.Association{
		"author": {Target: author},
	}
	return author, book
}

func TestResolveStarExpandsAllProperties(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})

	rewritten, table, err := NewResolver(m).Resolve("SELECT {a.*} FROM authors a")
	require.NoError(t, err)

	idCol, ok := table.Column("a", "id")
	require.True(t, ok)
	nameCol, ok := table.Column("a", "name")
	require.True(t, ok)
	require.NotEqual(t, idCol, nameCol)

	require.Contains(t, rewritten, fmt.Sprintf("a.id as %s", idCol))
	require.Contains(t, rewritten, fmt.Sprintf("a.name as %s", nameCol))
	require.NotContains(t, rewritten, "{")
}

func TestResolveIsDeterministic(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})
	r := NewResolver(m)

	first, _, err := r.Resolve("SELECT {a.*} FROM authors a")
	require.NoError(t, err)
	second, _, err := r.Resolve("SELECT {a.*} FROM authors a")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolveBarePropertyReference(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})

	rewritten, table, err := NewResolver(m).Resolve("SELECT a.name as {a.name} FROM authors a ORDER BY {a.id}")
	require.NoError(t, err)

	nameCol, _ := table.Column("a", "name")
	idCol, _ := table.Column("a", "id")
	// Bare references render the generated alias only, no "as" expansion.
	require.Contains(t, rewritten, "a.name as "+nameCol)
	require.True(t, strings.HasSuffix(rewritten, "ORDER BY "+idCol))
}

func TestResolveIDShorthand(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})

	_, table, err := NewResolver(m).Resolve("SELECT {a.id} FROM authors a")
	require.NoError(t, err)
	_, ok := table.Column("a", "id")
	require.True(t, ok)
}

func TestResolveUnknownAlias(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})

	_, _, err := NewResolver(m).Resolve("SELECT {z.*} FROM authors a")
	var unresolved *UnresolvedAliasError
	require.ErrorAs(t, err, &unresolved)
	require.Equal(t, "z", unresolved.Alias)
	require.Equal(t, "{z.*}", unresolved.Placeholder)
}

func TestResolveUnknownProperty(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})

	_, _, err := NewResolver(m).Resolve("SELECT {a.birthday} FROM authors a")
	var unresolved *UnresolvedAliasError
	require.ErrorAs(t, err, &unresolved)
}

func TestResolveRejectsOverlappingPlaceholders(t *testing.T) {
	author, _ := entities()
	m := testMapping(t, &spec.EntityReturn{Alias: "a", Entity: author})

	// {a.*} already selects a.name; selecting it again would duplicate
	// the generated column.
	_, _, err := NewResolver(m).Resolve("SELECT {a.*}, {a.name} FROM authors a")
	var ambiguous *AmbiguousColumnError
	require.ErrorAs(t, err, &ambiguous)
}

func TestResolveCollectionPlaceholders(t *testing.T) {
	author, _ := entities()
	m := testMapping(t,
		&spec.EntityReturn{Alias: "a", Entity: author},
		&spec.CollectionReturn{Alias: "bk", OwnerAlias: "a", OwnerProperty: "books", KeyColumn: "author_id"},
	)

	rewritten, table, err := NewResolver(m).Resolve("SELECT {a.*}, {bk.*} FROM authors a JOIN books bk ON bk.author_id = a.id")
	require.NoError(t, err)

	keyCol, ok := table.Column("bk", "key")
	require.True(t, ok)
	require.Contains(t, rewritten, "bk.author_id as "+keyCol)

	titleCol, ok := table.Column("bk", "element.title")
	require.True(t, ok)
	require.Contains(t, rewritten, "bk.title as "+titleCol)
}

func TestResolveCollectionElementProperty(t *testing.T) {
	author, _ := entities()
	m := testMapping(t,
		&spec.EntityReturn{Alias: "a", Entity: author},
		&spec.CollectionReturn{Alias: "bk", OwnerAlias: "a", OwnerProperty: "books", KeyColumn: "author_id"},
	)

	_, table, err := NewResolver(m).Resolve("SELECT {a.*}, {bk.key}, {bk.element.*} FROM authors a JOIN books bk ON 1=1")
	require.NoError(t, err)
	_, ok := table.Column("bk", "element.id")
	require.True(t, ok)
	_, ok = table.Column("bk", "element.title")
	require.True(t, ok)
}

func TestResolveDiscriminatorPlaceholder(t *testing.T) {
	payment := &spec.EntityDescriptor{
		Name:    "Payment",
		Factory: func() any { return &struct{ ID int64 }{} },
		Properties: []spec.PropertyDescriptor{
			{Name: "id", Type: "int64"},
		},
		IDProperty: "id",
		Discriminator: &spec.Discriminator{
			Column:   "payment_type",
			Subtypes: map[string]*spec.EntityDescriptor{},
		},
	}
	m := testMapping(t, &spec.EntityReturn{Alias: "p", Entity: payment})

	rewritten, table, err := NewResolver(m).Resolve("SELECT {p.*} FROM payments p")
	require.NoError(t, err)
	classCol, ok := table.Column("p", "class")
	require.True(t, ok)
	require.Contains(t, rewritten, "p.payment_type as "+classCol)
}

func TestGeneratedAliasShape(t *testing.T) {
	col := generatedAlias("a", "address.city")
	require.True(t, strings.HasPrefix(col, "city_"))
	require.Len(t, col, len("city_")+8)
	require.NotEqual(t, col, generatedAlias("b", "address.city"))
}
