package dynproxy

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type label string

func TestCoerce_Numeric(t *testing.T) {
	t.Run("float truncates to int", func(t *testing.T) {
		var v any = 2.9
		assert.True(t, Coerce(&v, reflect.TypeOf(0)))
		assert.Equal(t, 2, v)
	})

	t.Run("negative float truncates toward zero", func(t *testing.T) {
		var v any = -3.7
		assert.True(t, CoerceTo[int64](&v))
		assert.Equal(t, int64(-3), v)
	})

	t.Run("int widens to float", func(t *testing.T) {
		var v any = 7
		assert.True(t, CoerceTo[float64](&v))
		assert.Equal(t, 7.0, v)
	})

	t.Run("unsigned to signed", func(t *testing.T) {
		var v any = uint16(42)
		assert.True(t, CoerceTo[int](&v))
		assert.Equal(t, 42, v)
	})

	t.Run("float32 to float64", func(t *testing.T) {
		var v any = float32(1.5)
		assert.True(t, CoerceTo[float64](&v))
		assert.Equal(t, 1.5, v)
	})

	t.Run("int narrows to int8", func(t *testing.T) {
		var v any = 100
		assert.True(t, CoerceTo[int8](&v))
		assert.Equal(t, int8(100), v)
	})

	t.Run("numbers become bool by being non-zero", func(t *testing.T) {
		cases := []struct {
			in   any
			want bool
		}{
			{1, true},
			{0, false},
			{uint8(2), true},
			{0.5, true},
			{0.0, false},
		}
		for _, c := range cases {
			v := c.in
			assert.True(t, CoerceTo[bool](&v), "%v", c.in)
			assert.Equal(t, c.want, v, "%v", c.in)
		}
	})

	t.Run("bool parameters accept numbers", func(t *testing.T) {
		p := MustProxy(func(flag bool) bool { return !flag })
		v, err := p.Call(1)
		require.NoError(t, err)
		assert.Equal(t, false, v)

		v, err = p.Call(0.0)
		require.NoError(t, err)
		assert.Equal(t, true, v)
	})
}

func TestCoerce_String(t *testing.T) {
	t.Run("byte slice to string", func(t *testing.T) {
		var v any = []byte("hello")
		assert.True(t, CoerceTo[string](&v))
		assert.Equal(t, "hello", v)
	})

	t.Run("rune slice to string", func(t *testing.T) {
		var v any = []rune("héllo")
		assert.True(t, CoerceTo[string](&v))
		assert.Equal(t, "héllo", v)
	})

	t.Run("named string kind to string", func(t *testing.T) {
		var v any = label("x")
		assert.True(t, CoerceTo[string](&v))
		assert.Equal(t, "x", v)
	})

	t.Run("string to named string kind", func(t *testing.T) {
		var v any = "y"
		assert.True(t, CoerceTo[label](&v))
		assert.Equal(t, label("y"), v)
	})
}

func TestCoerce_Failures(t *testing.T) {
	t.Run("string does not become int", func(t *testing.T) {
		var v any = "12"
		assert.False(t, CoerceTo[int](&v))
		assert.Equal(t, "12", v)
	})

	t.Run("int does not become string", func(t *testing.T) {
		var v any = 65
		assert.False(t, CoerceTo[string](&v))
		assert.Equal(t, 65, v)
	})

	t.Run("bool does not become int", func(t *testing.T) {
		var v any = true
		assert.False(t, CoerceTo[int](&v))
	})

	t.Run("slices are not converted", func(t *testing.T) {
		var v any = []int{1, 2}
		assert.False(t, CoerceTo[[]float64](&v))
		assert.Equal(t, []int{1, 2}, v)
	})

	t.Run("nil value is not coerced", func(t *testing.T) {
		var v any
		assert.False(t, CoerceTo[int](&v))
		assert.Nil(t, v)
	})

	t.Run("nil pointer and nil target", func(t *testing.T) {
		assert.False(t, Coerce(nil, reflect.TypeOf(0)))
		var v any = 1
		assert.False(t, Coerce(&v, nil))
	})

	t.Run("same type reports no conversion", func(t *testing.T) {
		var v any = 5
		assert.False(t, CoerceTo[int](&v))
		assert.Equal(t, 5, v)
	})
}

func TestCast(t *testing.T) {
	t.Run("exact type succeeds", func(t *testing.T) {
		n, err := Cast[int](5)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("never converts", func(t *testing.T) {
		_, err := Cast[int](5.0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Contains(t, err.Error(), "float64")
	})

	t.Run("nil casts to nillable types", func(t *testing.T) {
		s, err := Cast[[]int](nil)
		require.NoError(t, err)
		assert.Nil(t, s)

		_, err = Cast[int](nil)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Contains(t, err.Error(), VoidTypeName)
	})

	t.Run("interface targets accept implementations", func(t *testing.T) {
		v, err := Cast[any](3)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})
}

func TestCastOrCoerce(t *testing.T) {
	t.Run("exact type leaves source untouched", func(t *testing.T) {
		var v any = 5
		n, err := CastOrCoerce[int](&v)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, 5, v)
	})

	t.Run("coercion rewrites the source", func(t *testing.T) {
		var v any = 2.5
		n, err := CastOrCoerce[int](&v)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, v)
	})

	t.Run("impossible conversion is a type error", func(t *testing.T) {
		var v any = "abc"
		_, err := CastOrCoerce[float64](&v)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Equal(t, "abc", v)
	})
}
