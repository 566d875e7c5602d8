// Package storedproc executes stored procedures through the canonical
// call form of each provider and locates the first true result set.
package storedproc

import (
	"fmt"
	"strings"
)

// BuildCall renders the provider's canonical invocation for a procedure
// with the given number of positional parameters. Callers pass the bare
// procedure name; the call syntax is never user-supplied.
func BuildCall(provider, procedure string, paramCount int) (string, error) {
	if procedure == "" {
		return "", fmt.Errorf("procedure name is required")
	}

	switch provider {
	case "mysql":
		return fmt.Sprintf("CALL %s(%s)", procedure, placeholders("?", paramCount)), nil
	case "postgresql", "postgres":
		return fmt.Sprintf("SELECT * FROM %s(%s)", procedure, numberedPlaceholders(paramCount)), nil
	case "sqlite":
		return "", ErrProceduresUnsupported
	default:
		return fmt.Sprintf("{call %s(%s)}", procedure, placeholders("?", paramCount)), nil
	}
}

// placeholders renders n repetitions of the marker, comma separated.
func placeholders(marker string, n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = marker
	}
	return strings.Join(parts, ", ")
}

// numberedPlaceholders renders $1..$n.
func numberedPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}
