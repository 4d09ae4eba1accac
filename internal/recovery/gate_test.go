package recovery

import (
	"testing"

	"github.com/ignite/cart-recovery/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestGateUnrestrictedAllowsEveryone(t *testing.T) {
	g := NewGate(config.RestrictedConfig{})
	assert.True(t, g.Allow("anyone@example.com"))
	assert.True(t, g.Allow(""))
}

func TestGateRestrictedAllowsOnlyListed(t *testing.T) {
	g := NewGate(config.RestrictedConfig{
		Enabled:          true,
		AllowedRecipient: "Tester@Example.com",
	})

	assert.True(t, g.Allow("tester@example.com"))
	assert.True(t, g.Allow("TESTER@EXAMPLE.COM"), "comparison must be case-insensitive")
	assert.True(t, g.Allow("  tester@example.com  "))
	assert.False(t, g.Allow("other@example.com"))
	assert.False(t, g.Allow(""))
}

func TestGateRestrictedWithEmptyAllowListBlocksAll(t *testing.T) {
	g := NewGate(config.RestrictedConfig{Enabled: true})
	assert.False(t, g.Allow("anyone@example.com"))
	assert.False(t, g.Allow(""))
}
