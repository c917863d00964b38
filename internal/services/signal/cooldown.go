package signal

import (
	"time"

	"github.com/mkeller/signalgram/internal/domain"
)

// CooldownGate suppresses repeated alerts for the same instrument and
// label within a fixed window. HOLD is the default row and INFO is
// edge-triggered, so only BUY, SELL and ALERT are gated.
type CooldownGate struct {
	cooldown time.Duration
	now      func() time.Time
}

// NewCooldownGate creates a gate with the given window.
func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	return &CooldownGate{cooldown: cooldown, now: time.Now}
}

// Filter applies the gate. lastFired maps signal names to the time the
// label last fired for this instrument. The returned bool reports
// whether the signal actually fires now (and its timestamp should be
// recorded); a suppressed signal downgrades to HOLD with a cooldown
// reason.
func (g *CooldownGate) Filter(sig domain.Signal, reason string, lastFired map[string]time.Time) (domain.Signal, string, bool) {
	switch sig {
	case domain.SignalBuy, domain.SignalSell, domain.SignalAlert:
	default:
		return sig, reason, false
	}

	last, ok := lastFired[sig.String()]
	if ok && g.now().Sub(last) < g.cooldown {
		return domain.SignalHold, "cooldown: " + sig.String() + " fired recently", false
	}

	return sig, reason, true
}
