package recovery

import (
	"strings"

	"github.com/ignite/cart-recovery/internal/config"
)

// Gate decides whether a recipient may actually receive mail. In
// restricted mode only the single allow-listed address passes; every
// other candidate is skipped silently while the sweeps still exercise
// their full selection logic.
type Gate struct {
	restricted bool
	allowed    string
}

// NewGate builds a delivery gate from configuration.
func NewGate(cfg config.RestrictedConfig) *Gate {
	return &Gate{
		restricted: cfg.Enabled,
		allowed:    strings.ToLower(strings.TrimSpace(cfg.AllowedRecipient)),
	}
}

// Allow reports whether mail to the recipient may be sent. Comparison is
// case-insensitive; an unrestricted gate allows everyone.
func (g *Gate) Allow(recipient string) bool {
	if !g.restricted {
		return true
	}
	return strings.ToLower(strings.TrimSpace(recipient)) == g.allowed && g.allowed != ""
}
