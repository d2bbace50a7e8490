package aghalg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrajesh2188/6lowpan-nd/internal/aghalg"
)

func TestArena_HandleLifecycle(t *testing.T) {
	a := aghalg.NewArena[int](3)
	require.Equal(t, 3, a.Cap())

	*a.At(1) = 42

	h := a.HandleFor(1)
	v, ok := a.Resolve(h)
	require.True(t, ok)
	assert.Equal(t, 42, *v)

	a.Free(1)

	_, ok = a.Resolve(h)
	assert.False(t, ok)

	// A handle for a different slot still resolves after the free.
	h0 := a.HandleFor(0)
	_, ok = a.Resolve(h0)
	assert.True(t, ok)
}

func TestArena_Range(t *testing.T) {
	a := aghalg.NewArena[int](4)
	for i := range 4 {
		*a.At(i) = i * i
	}

	var got []int
	a.Range(func(i int, v *int) (cont bool) {
		got = append(got, *v)

		return i < 1
	})

	assert.Equal(t, []int{0, 1}, got)
}

func TestNoHandle(t *testing.T) {
	assert.False(t, aghalg.NoHandle.Valid())
}
