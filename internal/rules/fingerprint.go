package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
)

// fingerprintDomain versions the hash layout. Bump it if the canonical
// form below ever changes so old and new fingerprints cannot collide.
const fingerprintDomain = "rateguard/rule/v1"

// Fingerprint returns a stable content hash of a rule's pricing
// substance: name, window, priority, scope, action and active flag.
// Lifecycle metadata is excluded on purpose, so suspending and
// restoring a rule does not change its identity.
//
// The hash is SHA-256 over domain-separated canonical JSON: object
// keys sorted, names NFC-normalized, no HTML escaping. The null byte
// between domain and payload keeps the boundary unambiguous.
func Fingerprint(r *PricingRule) string {
	obj := map[string]any{
		"action":   actionFields(r.Action),
		"active":   r.Active,
		"end":      r.End.UTC().Format("2006-01-02"),
		"name":     CanonicalName(r.Name),
		"priority": r.Priority,
		"scope":    r.Scope.String(),
		"start":    r.Start.UTC().Format("2006-01-02"),
	}

	var buf bytes.Buffer
	writeCanonical(&buf, obj)

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write(buf.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}

// actionFields flattens an action to scalar fields. Percentages render
// as shortest-form strings so the canonical bytes never carry float
// formatting ambiguity.
func actionFields(a Action) map[string]any {
	if a == nil {
		return map[string]any{"kind": ""}
	}
	fields := map[string]any{"kind": string(a.Kind())}
	switch v := a.(type) {
	case IncreasePercent:
		fields["percent"] = strconv.FormatFloat(v.Percent, 'f', -1, 64)
	case DecreasePercent:
		fields["percent"] = strconv.FormatFloat(v.Percent, 'f', -1, 64)
	case SetRate:
		fields["rate_cents"] = v.RateCents
	case RestrictBookings:
		fields["block"] = v.Block
		fields["min_stay_nights"] = v.MinStayNights
	}
	return fields
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case string:
		writeCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	default:
		// Fingerprint only feeds the types above.
		panic("fingerprint: unsupported canonical type")
	}
}

func writeCanonicalString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		panic("fingerprint: encode string: " + err.Error())
	}
	// Encode appends a newline that is not part of the value.
	buf.Truncate(buf.Len() - 1)
}
