package cache

import (
	"testing"
	"time"

	"github.com/catkeep/authcore/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestUserCache_SetGet(t *testing.T) {
	c := NewUserCache(time.Minute)
	user := &models.User{ID: "u1", Username: "alice"}

	c.Set(user)

	got, ok := c.Get("u1")
	assert.True(t, ok)
	assert.Equal(t, "alice", got.Username)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestUserCache_Expiry(t *testing.T) {
	c := NewUserCache(10 * time.Millisecond)
	c.Set(&models.User{ID: "u1"})

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("u1")
	assert.False(t, ok)
}

func TestUserCache_Invalidate(t *testing.T) {
	c := NewUserCache(time.Minute)
	c.Set(&models.User{ID: "u1"})

	c.Invalidate("u1")

	_, ok := c.Get("u1")
	assert.False(t, ok)
}

func TestUserCache_Sweep(t *testing.T) {
	c := NewUserCache(10 * time.Millisecond)
	c.Set(&models.User{ID: "u1"})
	c.Set(&models.User{ID: "u2"})

	time.Sleep(20 * time.Millisecond)
	c.Set(&models.User{ID: "u3"})

	removed := c.Sweep()
	assert.Equal(t, 2, removed)

	_, ok := c.Get("u3")
	assert.True(t, ok)
}
