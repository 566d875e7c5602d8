package alias

import "fmt"

// UnresolvedAliasError reports a placeholder referencing an alias or
// property the mapping spec does not bind.
type UnresolvedAliasError struct {
	Alias       string
	Placeholder string
}

func (e *UnresolvedAliasError) Error() string {
	return fmt.Sprintf("placeholder %s references alias %q not present in the mapping spec", e.Placeholder, e.Alias)
}

// AmbiguousColumnError reports two distinct placeholders colliding on the
// same generated column alias.
type AmbiguousColumnError struct {
	Column       string
	Placeholders [2]string
}

func (e *AmbiguousColumnError) Error() string {
	return fmt.Sprintf("placeholders %s and %s both expand to column alias %q", e.Placeholders[0], e.Placeholders[1], e.Column)
}
