package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprintRule() *PricingRule {
	return &PricingRule{
		ID:       "r1",
		Name:     "Gala uplift",
		Priority: 14,
		Active:   true,
		Start:    time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 12, 7, 0, 0, 0, 0, time.UTC),
		Scope:    ScopeAll(),
		Action:   IncreasePercent{Percent: 25},
	}
}

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint(fingerprintRule())
	b := Fingerprint(fingerprintRule())

	assert.Equal(t, a, b)
	require.Len(t, a, 64, "hex-encoded SHA-256")
}

func TestFingerprint_IgnoresLifecycleMetadata(t *testing.T) {
	base := Fingerprint(fingerprintRule())

	r := fingerprintRule()
	now := time.Date(2026, 12, 6, 0, 0, 0, 0, time.UTC)
	r.ID = "another-id"
	r.Meta.SuspendedBy = "ov-1"
	r.Meta.DeactivatedAt = &now
	r.Meta.DeactivationReason = "suspended by override ov-1"

	assert.Equal(t, base, Fingerprint(r))
}

func TestFingerprint_SensitiveToPricingFields(t *testing.T) {
	base := Fingerprint(fingerprintRule())

	tests := []struct {
		name   string
		mutate func(*PricingRule)
	}{
		{"priority", func(r *PricingRule) { r.Priority = 15 }},
		{"active flag", func(r *PricingRule) { r.Active = false }},
		{"window", func(r *PricingRule) { r.End = r.End.AddDate(0, 0, 1) }},
		{"scope", func(r *PricingRule) { r.Scope = ScopeOf("suite") }},
		{"action magnitude", func(r *PricingRule) { r.Action = IncreasePercent{Percent: 30} }},
		{"action kind", func(r *PricingRule) { r.Action = DecreasePercent{Percent: 25} }},
		{"name", func(r *PricingRule) { r.Name = "Conference uplift" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fingerprintRule()
			tt.mutate(r)
			assert.NotEqual(t, base, Fingerprint(r))
		})
	}
}

func TestFingerprint_NameIsCanonicalized(t *testing.T) {
	composed := fingerprintRule()
	composed.Name = "Café  Nights"

	decomposed := fingerprintRule()
	decomposed.Name = " Café Nights "

	assert.Equal(t, Fingerprint(composed), Fingerprint(decomposed))
}

func TestFingerprint_ActionVariants(t *testing.T) {
	setRate := fingerprintRule()
	setRate.Action = SetRate{RateCents: 19900}

	block := fingerprintRule()
	block.Action = RestrictBookings{Block: true}

	minStay := fingerprintRule()
	minStay.Action = RestrictBookings{MinStayNights: 2}

	prints := map[string]bool{
		Fingerprint(setRate): true,
		Fingerprint(block):   true,
		Fingerprint(minStay): true,
	}
	assert.Len(t, prints, 3, "distinct actions produce distinct fingerprints")
}
