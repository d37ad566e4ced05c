package chat_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/mosaic-social/mosaic/internal/chat"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := chat.NewRegistry(zerolog.Nop())
	userID := uuid.New()
	s := chat.NewSession(userID, nil, nil, reg, zerolog.Nop())

	assert.Nil(t, reg.Register(s), "first registration displaces nothing")
	assert.Same(t, s, reg.Get(userID))
	assert.Equal(t, 1, reg.Len())
	assert.Nil(t, reg.Get(uuid.New()))
}

func TestRegistryDisplacement(t *testing.T) {
	reg := chat.NewRegistry(zerolog.Nop())
	userID := uuid.New()
	first := chat.NewSession(userID, nil, nil, reg, zerolog.Nop())
	second := chat.NewSession(userID, nil, nil, reg, zerolog.Nop())

	reg.Register(first)
	displaced := reg.Register(second)

	assert.Same(t, first, displaced)
	assert.Same(t, second, reg.Get(userID))
	assert.Equal(t, 1, reg.Len(), "one live session per user")
}

func TestRegistryDeregisterOnlyCurrent(t *testing.T) {
	reg := chat.NewRegistry(zerolog.Nop())
	userID := uuid.New()
	first := chat.NewSession(userID, nil, nil, reg, zerolog.Nop())
	second := chat.NewSession(userID, nil, nil, reg, zerolog.Nop())

	reg.Register(first)
	reg.Register(second)

	// The displaced session tears down later; it must not evict its
	// successor.
	assert.False(t, reg.Deregister(first))
	assert.Same(t, second, reg.Get(userID))

	assert.True(t, reg.Deregister(second))
	assert.Nil(t, reg.Get(userID))
	assert.Equal(t, 0, reg.Len())
}
