package coerce

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInt64Coercion(t *testing.T) {
	c := NewRegistry().Lookup("int64")

	for _, raw := range []any{int64(42), 42, int32(42), uint64(42), float64(42), []byte("42"), "42"} {
		v, err := c(raw)
		require.NoError(t, err, "raw %T", raw)
		require.Equal(t, int64(42), v)
	}

	_, err := c(float64(42.5))
	require.Error(t, err)
	_, err = c("forty-two")
	require.Error(t, err)

	v, err := c(uint64(math.MaxInt64))
	require.NoError(t, err)
	require.Equal(t, int64(math.MaxInt64), v)
	_, err = c(uint64(math.MaxInt64) + 1)
	require.Error(t, err)
}

func TestStringCoercion(t *testing.T) {
	c := NewRegistry().Lookup("string")

	v, err := c([]byte("felix"))
	require.NoError(t, err)
	require.Equal(t, "felix", v)

	v, err = c(nil)
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = c(42)
	require.Error(t, err)
}

func TestBoolCoercion(t *testing.T) {
	c := NewRegistry().Lookup("bool")

	v, err := c(int64(1))
	require.NoError(t, err)
	require.Equal(t, true, v)

	v, err = c("false")
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestTimeCoercion(t *testing.T) {
	c := NewRegistry().Lookup("time")

	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	v, err := c("2024-03-01 12:30:00")
	require.NoError(t, err)
	require.Equal(t, want, v.(time.Time).UTC())

	v, err = c("2024-03-01T12:30:00Z")
	require.NoError(t, err)
	require.True(t, want.Equal(v.(time.Time)))

	_, err = c("not a date")
	require.Error(t, err)
}

func TestDecimalCoercion(t *testing.T) {
	c := NewRegistry().Lookup("decimal")

	v, err := c([]byte("19.99"))
	require.NoError(t, err)
	require.Equal(t, "19.99", v.(Decimal).String())

	v, err = c(int64(7))
	require.NoError(t, err)
	require.Equal(t, "7", v.(Decimal).String())
}

func TestUnknownTypeFallsBackToPassthrough(t *testing.T) {
	c := NewRegistry().Lookup("geometry")

	raw := []byte{0x01, 0x02}
	v, err := c(raw)
	require.NoError(t, err)
	require.Equal(t, raw, v)
}

func TestRegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register("string", func(v any) (any, error) { return "fixed", nil })

	v, err := r.Lookup("string")("anything")
	require.NoError(t, err)
	require.Equal(t, "fixed", v)
}
