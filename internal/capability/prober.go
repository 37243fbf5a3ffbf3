package capability

import (
	"context"
	"strings"
	"unicode"

	gateway "github.com/voxtour/ticket-gateway/internal/gateways"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

// FailurePolicy decides what a lookup failure means for reachability.
type FailurePolicy string

const (
	// FailOpen treats a failed lookup as "capable" so a vendor outage never
	// paralyzes ticket delivery. False positives surface later as per-channel
	// send failures, which the dispatcher captures.
	FailOpen FailurePolicy = "open"
	// FailClosed treats a failed lookup as "not capable".
	FailClosed FailurePolicy = "closed"
)

// LineTypeLookup is the vendor number-intelligence contract.
type LineTypeLookup interface {
	Lookup(ctx context.Context, phone string) (*gateway.LookupResponse, error)
}

// Prober decides whether a phone number can receive WhatsApp messages.
type Prober struct {
	lookup LineTypeLookup
	policy FailurePolicy
}

func NewProber(lookup LineTypeLookup, policy FailurePolicy) *Prober {
	if policy == "" {
		policy = FailOpen
	}
	return &Prober{lookup: lookup, policy: policy}
}

// Probe normalizes phone and classifies it via the lookup vendor. Only
// mobile and voip line types are considered WhatsApp capable; that is a
// heuristic, not a guarantee.
func (p *Prober) Probe(ctx context.Context, phone string) bool {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return false
	}

	resp, err := p.lookup.Lookup(ctx, normalized)
	if err != nil {
		if p.policy == FailOpen {
			logger.Warn("Capability lookup failed, assuming capable", "phone", normalized, "error", err)
			return true
		}
		logger.Warn("Capability lookup failed, assuming not capable", "phone", normalized, "error", err)
		return false
	}

	switch strings.ToLower(resp.LineType) {
	case "mobile", "voip":
		return true
	default:
		logger.Debug("Line type not whatsapp capable", "phone", normalized, "line_type", resp.LineType)
		return false
	}
}

// NormalizePhone strips formatting characters and forces a leading plus.
// It returns "" for strings that cannot be a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	// international prefix written as 00
	digits = strings.TrimPrefix(digits, "00")
	if len(digits) < 7 || len(digits) > 15 {
		return ""
	}
	return "+" + digits
}
