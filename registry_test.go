package dynproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("add and call", func(t *testing.T) {
		r := NewRegistry()
		p, err := r.Add("add", func(a, b int) int { return a + b })
		require.NoError(t, err)
		assert.Equal(t, "add", p.Name())

		v, err := r.Call("add", []any{2, 3})
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("registered wrappers carry the registry name", func(t *testing.T) {
		r := NewRegistry()
		p := MustProxy(func(x int) int { return x }, WithName("orig"))
		require.NoError(t, r.Register("identity", p))
		assert.Equal(t, "orig", p.Name())

		c := Compose(p, p)
		require.NoError(t, r.Register("twice", c))

		names := []string{}
		for _, info := range r.Infos() {
			names = append(names, info.Name)
		}
		assert.Equal(t, []string{"identity", "twice"}, names)
	})

	t.Run("one wrapper under two names keeps both descriptors", func(t *testing.T) {
		r := NewRegistry()
		p := MustProxy(func(x int) int { return x * 2 })
		require.NoError(t, r.Register("a", p))
		require.NoError(t, r.Register("b", p))

		infos := r.Infos()
		require.Len(t, infos, 2)
		assert.Equal(t, "a", infos[0].Name)
		assert.Equal(t, "b", infos[1].Name)
		assert.NotEqual(t, infos[0].Hash, infos[1].Hash)

		v, err := r.Call("a", []any{4})
		require.NoError(t, err)
		assert.Equal(t, 8, v)
	})

	t.Run("renaming the original does not touch the registry", func(t *testing.T) {
		r := NewRegistry()
		p, err := r.Add("stable", func(x int) int { return x })
		require.NoError(t, err)
		p.SetName("moved")

		c, ok := r.Lookup("stable")
		require.True(t, ok)
		assert.Equal(t, "stable", c.Info().Name)
	})

	t.Run("duplicate names are rejected", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Add("f", func() {})
		require.NoError(t, err)
		_, err = r.Add("f", func() {})
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("invalid registrations are rejected", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register("", MustProxy(func() {})))
		assert.Error(t, r.Register("nil", nil))

		_, err := r.Add("bad", 42)
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.Empty(t, r.Names())
	})

	t.Run("unknown function", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Call("missing", nil)
		assert.ErrorIs(t, err, ErrFunctionNotFound)
	})

	t.Run("unregister", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Add("f", func() {})
		require.NoError(t, err)

		assert.True(t, r.Unregister("f"))
		assert.False(t, r.Unregister("f"))
		_, ok := r.Lookup("f")
		assert.False(t, ok)
	})

	t.Run("names and infos are sorted", func(t *testing.T) {
		r := NewRegistry()
		for _, name := range []string{"c", "a", "b"} {
			_, err := r.Add(name, func(x int) int { return x })
			require.NoError(t, err)
		}
		assert.Equal(t, []string{"a", "b", "c"}, r.Names())

		infos := r.Infos()
		require.Len(t, infos, 3)
		for i, name := range []string{"a", "b", "c"} {
			assert.Equal(t, name, infos[i].Name)
			assert.Equal(t, []string{"int"}, infos[i].ArgumentTypes)
		}
	})

	t.Run("call errors keep their kind", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Add("add", func(a, b int) int { return a + b })
		require.NoError(t, err)

		_, err = r.Call("add", []any{1})
		assert.ErrorIs(t, err, ErrArgumentCount)
	})
}
