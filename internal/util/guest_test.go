package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGuestLogin(t *testing.T) {
	// The token the Flash client sends for every guest login.
	const guestToken = "24f380279d84e2e715f80ed14b1db063"

	assert.True(t, IsGuestLogin("john GUEST", guestToken))
	assert.False(t, IsGuestLogin("john", guestToken))
	assert.False(t, IsGuestLogin("john GUEST", "c0ffee"))
	assert.False(t, IsGuestLogin("johnGUEST", guestToken))
}
