package client

import (
	"sync"
	"time"

	"github.com/nrdlngr/x402mcp"
)

// Guardrails enforces spending limits before any signing (spec §4.6).
// Checks run in order; each is fatal.
type Guardrails struct {
	// MaxPaymentPerCall, if non-zero, caps a single invocation's
	// priced amount.
	MaxPaymentPerCall float64

	// WhitelistedServers, if non-empty, restricts which payTo
	// addresses may receive a payment.
	WhitelistedServers []string

	// MaxPaymentPerDay, if non-zero, caps the sum of priced amounts
	// authorized in a rolling 24h window. This is a supplement beyond
	// spec §4.6's two required checks; it never changes their
	// ordering or error codes.
	MaxPaymentPerDay float64

	mu      sync.Mutex
	history []dailySpend
}

type dailySpend struct {
	amount float64
	at     time.Time
}

// Enforce runs the per-call cap then the recipient allowlist, then
// the optional daily cap, before any signing is permitted.
func (g *Guardrails) Enforce(amount float64, payTo string) error {
	if g.MaxPaymentPerCall > 0 && amount > g.MaxPaymentPerCall {
		return x402mcp.NewErrorf(x402mcp.CodeGuardrailViolation, "amount %v exceeds maxPaymentPerCall %v", amount, g.MaxPaymentPerCall).WithDetails(map[string]any{
			"amount":            amount,
			"maxPaymentPerCall": g.MaxPaymentPerCall,
		})
	}

	if len(g.WhitelistedServers) > 0 && !contains(g.WhitelistedServers, payTo) {
		return x402mcp.NewErrorf(x402mcp.CodeWhitelistViolation, "payTo %q is not whitelisted", payTo).WithDetails(map[string]any{
			"payTo":              payTo,
			"whitelistedServers": g.WhitelistedServers,
		})
	}

	if g.MaxPaymentPerDay > 0 {
		g.mu.Lock()
		spent := g.pruneAndSumLocked()
		if spent+amount > g.MaxPaymentPerDay {
			g.mu.Unlock()
			return x402mcp.NewErrorf(x402mcp.CodeGuardrailViolation, "amount %v would exceed maxPaymentPerDay %v (already spent %v today)", amount, g.MaxPaymentPerDay, spent).WithDetails(map[string]any{
				"amount":           amount,
				"maxPaymentPerDay": g.MaxPaymentPerDay,
				"spentToday":       spent,
			})
		}
		g.history = append(g.history, dailySpend{amount: amount, at: now()})
		g.mu.Unlock()
	}

	return nil
}

func (g *Guardrails) pruneAndSumLocked() float64 {
	cutoff := now().Add(-24 * time.Hour)
	kept := g.history[:0]
	var sum float64
	for _, s := range g.history {
		if s.at.After(cutoff) {
			kept = append(kept, s)
			sum += s.amount
		}
	}
	g.history = kept
	return sum
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
