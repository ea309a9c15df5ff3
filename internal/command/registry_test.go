package command

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_MintReplacesPrevious(t *testing.T) {
	r := NewRegistry()

	t1 := r.Mint(42)
	assert.True(t, r.IsCurrent(42, t1))

	t2 := r.Mint(42)
	assert.False(t, r.IsCurrent(42, t1))
	assert.True(t, r.IsCurrent(42, t2))
}

func TestRegistry_UsersAreIndependent(t *testing.T) {
	r := NewRegistry()

	t1 := r.Mint(1)
	t2 := r.Mint(2)

	r.Mint(2)

	assert.True(t, r.IsCurrent(1, t1))
	assert.False(t, r.IsCurrent(2, t2))
}

func TestRegistry_UnknownUser(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsCurrent(7, uuid.New()))

	_, ok := r.Current(7)
	assert.False(t, ok)
}

func TestRegistry_Current(t *testing.T) {
	r := NewRegistry()

	minted := r.Mint(9)
	cur, ok := r.Current(9)
	require.True(t, ok)
	assert.Equal(t, minted, cur)
}

func TestRegistry_ConcurrentMint(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Mint(5)
		}()
	}
	wg.Wait()

	// Exactly one token survives as current.
	cur, ok := r.Current(5)
	require.True(t, ok)
	assert.True(t, r.IsCurrent(5, cur))
}
