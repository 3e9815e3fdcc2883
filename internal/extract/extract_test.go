package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPayload(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantPayload string
		wantTrail   string
		wantOK      bool
	}{
		{
			name:        "payload with trailing follow-up",
			text:        `Here you go: {"product":"laptop"}<END_OF_SPECS><FOLLOW_UP> Anything else?`,
			wantPayload: `{"product":"laptop"}`,
			wantTrail:   `<FOLLOW_UP> Anything else?`,
			wantOK:      true,
		},
		{
			name:        "nested braces stay inside the payload",
			text:        `{"specs":{"ram":"16GB"},"product":"laptop"}<END_OF_SPECS>`,
			wantPayload: `{"specs":{"ram":"16GB"},"product":"laptop"}`,
			wantTrail:   "",
			wantOK:      true,
		},
		{
			name:   "missing sentinel",
			text:   `{"product":"laptop"} and nothing else`,
			wantOK: false,
		},
		{
			name:   "sentinel without any brace",
			text:   `sorry, no structured data here <END_OF_SPECS>`,
			wantOK: false,
		},
		{
			name:   "empty input",
			text:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, trailing, ok := FindPayload(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPayload, payload)
				assert.Equal(t, tt.wantTrail, trailing)
			}
		})
	}
}

// A literal end token inside a field value truncates the payload and
// the parse falls back. Documented limitation of the sentinel protocol.
func TestFindPayloadSentinelInsideValue(t *testing.T) {
	text := `{"product":"poster saying <END_OF_SPECS>"}<END_OF_SPECS>`
	payload, _, ok := FindPayload(text)
	require.True(t, ok)
	assert.Equal(t, `{"product":"poster saying `, payload)

	_, err := ParseSummary(payload)
	assert.Error(t, err)
}

func TestParseSummaryAllFields(t *testing.T) {
	sum, err := ParseSummary(`{
		"product": "gaming laptop",
		"budget": "₹80,000",
		"preferred_brands": ["Asus", "Lenovo"],
		"color": "black",
		"size": "15.6 inch",
		"delivery_mode": "Home Delivery",
		"warranty": "2 years"
	}`)
	require.NoError(t, err)

	assert.Equal(t, "gaming laptop", sum.Product)
	assert.Equal(t, "₹80,000", sum.Budget)
	assert.Equal(t, []string{"Asus", "Lenovo"}, sum.PreferredBrands)
	assert.Equal(t, "black", sum.Color)
	assert.Equal(t, "15.6 inch", sum.Size)
	assert.Equal(t, DeliveryHome, sum.DeliveryMode)
	assert.Equal(t, map[string]string{"warranty": "2 years"}, sum.Extras)
}

func TestParseSummaryBrandsAsCommaString(t *testing.T) {
	sum, err := ParseSummary(`{"preferred_brands": "Asus, Lenovo , HP"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Asus", "Lenovo", "HP"}, sum.PreferredBrands)
}

func TestParseSummaryDeliveryNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"home delivery", DeliveryHome},
		{"HOME", DeliveryHome},
		{"pickup", DeliveryPickup},
		{"Store Pickup", DeliveryPickup},
		{"drone drop", "drone drop"},
	}
	for _, tt := range tests {
		sum, err := ParseSummary(`{"delivery_mode": "` + tt.in + `"}`)
		require.NoError(t, err)
		assert.Equal(t, tt.want, sum.DeliveryMode, "input %q", tt.in)
	}
}

func TestParseSummaryNullishValuesDropped(t *testing.T) {
	sum, err := ParseSummary(`{"product":"phone","color":"undefined","size":"N/A","notes":"null"}`)
	require.NoError(t, err)
	assert.Equal(t, "phone", sum.Product)
	assert.Empty(t, sum.Color)
	assert.Empty(t, sum.Size)
	assert.Empty(t, sum.Extras)
}

func TestParseSummaryMalformed(t *testing.T) {
	_, err := ParseSummary(`{"product": laptop}`)
	assert.Error(t, err)
}

func TestCleanFollowUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<FOLLOW_UP> Want me to refine the budget?", "Want me to refine the budget?"},
		{"  <FOLLOW_UP>  spaced out  ", "spaced out"},
		{"no token, still shown", "no token, still shown"},
		{"<FOLLOW_UP> undefined", ""},
		{"<FOLLOW_UP>null", ""},
		{"NONE", ""},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanFollowUp(tt.in), "input %q", tt.in)
	}
}

func TestExtractSuccess(t *testing.T) {
	text := `{"product":"sofa","budget":"₹30,000","color":"grey"}<END_OF_SPECS><FOLLOW_UP> Shall I note the fabric too?`
	res := Extract(text)

	require.False(t, res.Failed)
	require.NotNil(t, res.Summary)
	assert.Equal(t, "sofa", res.Summary.Product)
	assert.Equal(t, "Shall I note the fabric too?", res.FollowUp)
	assert.Equal(t, text, res.Raw)
}

func TestExtractFallbackOnMissingSentinel(t *testing.T) {
	text := "I could not produce a summary, sorry."
	res := Extract(text)

	assert.True(t, res.Failed)
	assert.Nil(t, res.Summary)
	assert.Equal(t, text, res.Raw)
}

func TestExtractFallbackOnMalformedPayload(t *testing.T) {
	res := Extract(`{not json at all<END_OF_SPECS>`)
	assert.True(t, res.Failed)
	assert.Nil(t, res.Summary)
}

// Degenerate finalization: an empty conversation yields an empty
// payload, which still parses and renders with placeholders only.
func TestExtractEmptyObject(t *testing.T) {
	res := Extract(`{}<END_OF_SPECS>`)
	require.False(t, res.Failed)

	rendered := res.Summary.Render()
	assert.Contains(t, rendered, NotSpecified)
	assert.NotContains(t, rendered, "null")
	assert.NotContains(t, rendered, "undefined")
}

func TestRenderPlaceholders(t *testing.T) {
	sum := &Summary{Product: "desk lamp", Color: "white"}
	rendered := sum.Render()

	assert.Contains(t, rendered, "- **Product**: desk lamp")
	assert.Contains(t, rendered, "- **Color**: white")
	assert.Contains(t, rendered, "- **Budget**: "+NotSpecified)
	assert.Contains(t, rendered, "- **Delivery Mode**: "+NotSpecified)
}

func TestRenderExtrasSortedAndTitled(t *testing.T) {
	sum := &Summary{
		Product: "phone",
		Extras:  map[string]string{"storage_capacity": "256GB", "battery": "5000mAh"},
	}
	rendered := sum.Render()

	assert.Contains(t, rendered, "- **Battery**: 5000mAh")
	assert.Contains(t, rendered, "- **Storage Capacity**: 256GB")
	assert.Less(t, strings.Index(rendered, "Battery"), strings.Index(rendered, "Storage Capacity"))
}

func TestImageQuery(t *testing.T) {
	assert.Equal(t, "laptop black", (&Summary{Product: "laptop", Color: "black"}).ImageQuery())
	assert.Equal(t, "laptop", (&Summary{Product: "laptop"}).ImageQuery())
	assert.Equal(t, "", (&Summary{Color: "black"}).ImageQuery())
}
