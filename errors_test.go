package dynproxy

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	t.Run("message joins op, detail and cause", func(t *testing.T) {
		err := &Error{Kind: KindType, Op: "call f", Detail: "bad", Cause: errors.New("root")}
		assert.Equal(t, "call f: bad: root", err.Error())
	})

	t.Run("bare error reports its kind", func(t *testing.T) {
		assert.Equal(t, "out_of_range", ErrOutOfRange.Error())
	})

	t.Run("is matches by kind", func(t *testing.T) {
		err := typeError("x")
		assert.ErrorIs(t, err, ErrTypeMismatch)
		assert.NotErrorIs(t, err, ErrArgumentCount)
		assert.NotErrorIs(t, err, ErrInvocation)
	})

	t.Run("wrap keeps a typed kind", func(t *testing.T) {
		err := wrap("op", outOfRange("idx"))
		assert.Equal(t, KindOutOfRange, KindOf(err))
		assert.Equal(t, "op: idx", err.Error())
	})

	t.Run("wrap turns foreign errors into invocation failures", func(t *testing.T) {
		root := errors.New("root")
		err := wrap("op", root)
		assert.Equal(t, KindInvocation, KindOf(err))
		assert.ErrorIs(t, err, root)
		assert.Nil(t, wrap("op", nil))
	})

	t.Run("kind survives foreign wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", argumentCountError("n"))
		assert.Equal(t, KindArgumentCount, KindOf(err))
		assert.ErrorIs(t, err, ErrArgumentCount)
	})

	t.Run("kind of untyped error is empty", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("x")))
		assert.Equal(t, Kind(""), KindOf(nil))
	})

	t.Run("panic values become invocation failures", func(t *testing.T) {
		root := errors.New("root")
		assert.ErrorIs(t, panicError(root), root)
		assert.ErrorIs(t, panicError(root), ErrInvocation)
		assert.Equal(t, "panic: 3", panicError(3).Error())
	})

	t.Run("errors as exposes the structure", func(t *testing.T) {
		_, err := MustProxy(func(int) {}, WithName("f")).Call()
		var pe *Error
		if assert.ErrorAs(t, err, &pe) {
			assert.Equal(t, KindArgumentCount, pe.Kind)
			assert.Equal(t, "call f", pe.Op)
		}
	})
}
