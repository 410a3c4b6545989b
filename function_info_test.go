package dynproxy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestFunctionInfo_Collection(t *testing.T) {
	t.Run("signature is recorded", func(t *testing.T) {
		p := MustProxy(func(a int, b string) float64 { return 0 }, WithName("f"))
		info := p.Info()
		assert.Equal(t, "f", info.Name)
		assert.Equal(t, "float64", info.ReturnType)
		assert.Equal(t, []string{"int", "string"}, info.ArgumentTypes)
		assert.True(t, info.Noexcept)
		assert.NotEmpty(t, info.Hash)
	})

	t.Run("unnamed wrapper is anonymous", func(t *testing.T) {
		p := MustProxy(func(int) {})
		assert.Equal(t, AnonymousName, p.Name())
		assert.Equal(t, VoidTypeName, p.Info().ReturnType)
	})

	t.Run("error result clears noexcept", func(t *testing.T) {
		p := MustProxy(func(int) (int, error) { return 0, nil })
		info := p.Info()
		assert.False(t, info.Noexcept)
		assert.Equal(t, "int", info.ReturnType)

		p = MustProxy(func() error { return nil })
		assert.Equal(t, VoidTypeName, p.Info().ReturnType)
	})

	t.Run("method receiver is excluded from argument types", func(t *testing.T) {
		p, err := NewMethodProxy((*counter).Add)
		require.NoError(t, err)
		assert.Equal(t, []string{"int"}, p.Info().ArgumentTypes)
		assert.Equal(t, 1, p.Arity())
		assert.True(t, p.IsMethod())
	})

	t.Run("variadic parameter is marked", func(t *testing.T) {
		p := MustProxy(func(sep string, parts ...string) string { return "" })
		assert.Equal(t, []string{"string", "...string"}, p.Info().ArgumentTypes)
	})

	t.Run("wrap site is recorded", func(t *testing.T) {
		p := MustProxy(func() {})
		loc := p.Info().Location
		assert.Contains(t, loc.File, "function_info_test.go")
		assert.Greater(t, loc.Line, 0)
		assert.Equal(t, 0, loc.Column)
	})

	t.Run("parameter names", func(t *testing.T) {
		p := MustProxy(func(a, b int) int { return a + b }, WithParameterNames("x", "y"))
		info := p.Info()
		assert.Equal(t, "x", info.ParameterName(0))
		assert.Equal(t, "y", info.ParameterName(1))
		assert.Equal(t, "", info.ParameterName(2))

		p.SetParameterName(3, "w")
		info = p.Info()
		assert.Equal(t, []string{"x", "y", "", "w"}, info.ParameterNames)
	})
}

func TestFunctionInfo_Hash(t *testing.T) {
	t.Run("hash is stable for equal signatures", func(t *testing.T) {
		a := MustProxy(func(x int) int { return x }, WithName("same"))
		b := MustProxy(func(y int) int { return y * 2 }, WithName("same"))
		assert.Equal(t, a.Info().Hash, b.Info().Hash)
	})

	t.Run("renaming changes the hash", func(t *testing.T) {
		p := MustProxy(func(x int) int { return x }, WithName("before"))
		before := p.Info().Hash
		p.SetName("after")
		assert.Equal(t, "after", p.Name())
		assert.NotEqual(t, before, p.Info().Hash)
	})

	t.Run("hash stays empty without argument types", func(t *testing.T) {
		p := MustProxy(func() int { return 1 })
		assert.Empty(t, p.Info().Hash)
	})

	t.Run("content hash is deterministic", func(t *testing.T) {
		assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
		assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	})
}

func TestFunctionInfo_String(t *testing.T) {
	t.Run("renders names and types", func(t *testing.T) {
		p := MustProxy(func(a, b int) int { return a + b }, WithName("add"), WithParameterNames("x", "y"))
		assert.Equal(t, "add(x int, y int) int", p.Info().String())
	})

	t.Run("omits void result and missing names", func(t *testing.T) {
		p := MustProxy(func(string) {}, WithName("log"))
		assert.Equal(t, "log(string)", p.Info().String())
	})
}

func TestFunctionInfo_Serialization(t *testing.T) {
	info := FunctionInfo{
		Name:           "add",
		ReturnType:     "int",
		ArgumentTypes:  []string{"int", "int"},
		ParameterNames: []string{"x", "y"},
		Hash:           "h",
		Noexcept:       true,
		Location:       SourceLocation{File: "main.go", Line: 10},
	}

	t.Run("json encodes the location", func(t *testing.T) {
		data, err := json.Marshal(info)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"name": "add",
			"return_type": "int",
			"argument_types": ["int", "int"],
			"parameter_names": ["x", "y"],
			"hash": "h",
			"noexcept": true,
			"file": "main.go",
			"line": 10,
			"column": 0
		}`, string(data))
	})

	t.Run("json round trip drops only the location", func(t *testing.T) {
		data, err := json.Marshal(info)
		require.NoError(t, err)

		var decoded FunctionInfo
		require.NoError(t, json.Unmarshal(data, &decoded))

		want := info.Clone()
		want.Location = SourceLocation{}
		assert.Equal(t, want, decoded)
	})

	t.Run("msgpack round trip drops only the location", func(t *testing.T) {
		data, err := msgpack.Marshal(info)
		require.NoError(t, err)

		var decoded FunctionInfo
		require.NoError(t, msgpack.Unmarshal(data, &decoded))

		want := info.Clone()
		want.Location = SourceLocation{}
		assert.Equal(t, want, decoded)
	})

	t.Run("missing required fields fail", func(t *testing.T) {
		for _, doc := range []string{
			`{"name":"f","argument_types":[],"hash":""}`,
			`{"name":"f","return_type":"int","hash":""}`,
			`{"name":"f","return_type":"int","argument_types":[]}`,
		} {
			var decoded FunctionInfo
			err := json.Unmarshal([]byte(doc), &decoded)
			assert.ErrorIs(t, err, ErrTypeMismatch, doc)
		}
	})

	t.Run("clone is deep", func(t *testing.T) {
		c := info.Clone()
		c.ArgumentTypes[0] = "string"
		c.ParameterNames[0] = "z"
		assert.Equal(t, "int", info.ArgumentTypes[0])
		assert.Equal(t, "x", info.ParameterNames[0])
	})
}
