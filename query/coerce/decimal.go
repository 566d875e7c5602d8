package coerce

// Decimal represents an exact decimal number carried as its wire string.
type Decimal struct {
	value string
}

// NewDecimal creates a new decimal from string
func NewDecimal(value string) Decimal {
	return Decimal{value: value}
}

// String returns the string representation
func (d Decimal) String() string {
	return d.value
}
