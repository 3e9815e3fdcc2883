// Package extract parses the structured requirement summary the model
// embeds in its finalization reply. Boundary detection and parsing are
// pure functions so they can be exercised with synthetic malformed
// input, independent of any LLM call.
package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// EndToken marks the end of the embedded summary payload.
	EndToken = "<END_OF_SPECS>"
	// FollowUpToken prefixes the optional conversational follow-up
	// line after the payload.
	FollowUpToken = "<FOLLOW_UP>"

	// NotSpecified is rendered for any absent field. Raw null-ish
	// tokens must never reach the user.
	NotSpecified = "Not specified"
)

// Recognized delivery modes. Anything else is kept verbatim.
const (
	DeliveryHome   = "Home Delivery"
	DeliveryPickup = "Pickup from Store"
)

// Summary is the structured requirement record produced at finalization.
type Summary struct {
	Product         string            `json:"product,omitempty"`
	Budget          string            `json:"budget,omitempty"`
	PreferredBrands []string          `json:"preferred_brands,omitempty"`
	Color           string            `json:"color,omitempty"`
	Size            string            `json:"size,omitempty"`
	DeliveryMode    string            `json:"delivery_mode,omitempty"`
	Extras          map[string]string `json:"extras,omitempty"`
}

// Result is the outcome of Extract: either a parsed summary with an
// optional follow-up, or the raw model text with Failed set.
type Result struct {
	Summary  *Summary
	FollowUp string
	Raw      string
	Failed   bool
}

// FindPayload locates the embedded payload in the model's reply. The
// payload runs from the first opening brace up to (not including) the
// first EndToken; the remainder after the token is returned as
// trailing text. ok is false when the token is missing or no brace
// precedes it. A literal EndToken inside a field value truncates the
// payload; that ambiguity is inherent to the sentinel protocol.
func FindPayload(text string) (payload, trailing string, ok bool) {
	end := strings.Index(text, EndToken)
	if end < 0 {
		return "", "", false
	}
	start := strings.Index(text[:end], "{")
	if start < 0 {
		return "", "", false
	}
	return text[start:end], text[end+len(EndToken):], true
}

// ParseSummary decodes a payload into a Summary. Recognized fields are
// pulled out by name; any other scalar field lands in Extras so
// open-ended specs survive the round trip.
func ParseSummary(payload string) (*Summary, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &fields); err != nil {
		return nil, fmt.Errorf("malformed summary payload: %w", err)
	}

	sum := &Summary{}
	for key, raw := range fields {
		switch normalizeKey(key) {
		case "product":
			sum.Product = decodeString(raw)
		case "budget":
			sum.Budget = decodeString(raw)
		case "preferred_brands", "brands", "brand":
			sum.PreferredBrands = decodeStringList(raw)
		case "color", "colour":
			sum.Color = decodeString(raw)
		case "size":
			sum.Size = decodeString(raw)
		case "delivery_mode", "delivery":
			sum.DeliveryMode = normalizeDelivery(decodeString(raw))
		default:
			if v := decodeString(raw); v != "" {
				if sum.Extras == nil {
					sum.Extras = make(map[string]string)
				}
				sum.Extras[key] = v
			}
		}
	}
	return sum, nil
}

// CleanFollowUp trims the trailing text after the payload, strips the
// FollowUpToken prefix, and discards known placeholder tokens the model
// sometimes emits instead of leaving the line empty.
func CleanFollowUp(trailing string) string {
	s := strings.TrimSpace(trailing)
	if idx := strings.Index(s, FollowUpToken); idx >= 0 {
		s = s[idx+len(FollowUpToken):]
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "undefined", "null", "none":
		return ""
	}
	return s
}

// Extract runs boundary detection, parsing, and follow-up cleanup over
// a finalization reply. Parse failure is recoverable: the caller gets
// the raw text back with Failed set and nothing is thrown away.
func Extract(text string) Result {
	payload, trailing, ok := FindPayload(text)
	if !ok {
		return Result{Raw: text, Failed: true}
	}
	sum, err := ParseSummary(payload)
	if err != nil {
		return Result{Raw: text, Failed: true}
	}
	return Result{
		Summary:  sum,
		FollowUp: CleanFollowUp(trailing),
		Raw:      text,
	}
}

// Render produces the user-facing Markdown list. Absent fields render
// as NotSpecified.
func (s *Summary) Render() string {
	var b strings.Builder
	b.WriteString("🧾 Requirement Summary\n")
	writeField(&b, "Product", s.Product)
	writeField(&b, "Budget", s.Budget)
	writeField(&b, "Preferred Brands", strings.Join(s.PreferredBrands, ", "))
	writeField(&b, "Color", s.Color)
	writeField(&b, "Size", s.Size)
	writeField(&b, "Delivery Mode", s.DeliveryMode)

	keys := make([]string, 0, len(s.Extras))
	for k := range s.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, titleCase(k), s.Extras[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

// ImageQuery derives the image-search phrase from product and color.
func (s *Summary) ImageQuery() string {
	if s.Product == "" {
		return ""
	}
	if s.Color == "" {
		return s.Product
	}
	return s.Product + " " + s.Color
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		value = NotSpecified
	}
	fmt.Fprintf(b, "- **%s**: %s\n", label, value)
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), " ", "_")
}

func normalizeDelivery(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "home delivery", "home", "delivery":
		return DeliveryHome
	case "pickup from store", "pickup", "store pickup", "pickup_from_store":
		return DeliveryPickup
	}
	return strings.TrimSpace(v)
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return cleanValue(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func decodeStringList(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if v = cleanValue(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	// the model sometimes emits a comma-separated string instead
	if s := decodeString(raw); s != "" {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// cleanValue drops null-ish scalar values so they render as absent.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "undefined", "null", "none", "n/a":
		return ""
	}
	return s
}

func titleCase(k string) string {
	parts := strings.FieldsFunc(k, func(r rune) bool {
		return r == '_' || r == ' '
	})
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
