package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskJSON(t *testing.T) {
	out := MaskJSON(map[string]any{
		"contact_email": "owner@acme.test",
		"rate":          "12.5",
		"nested":        map[string]any{"phone": "+15550100"},
		"":              "dropped",
	})

	assert.Equal(t, "****test", out["contact_email"])
	assert.Equal(t, "12.5", out["rate"])
	assert.Equal(t, map[string]any{"phone": "****0100"}, out["nested"])
	assert.NotContains(t, out, "")
}

func TestMaskSecretShortValue(t *testing.T) {
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "", MaskSecret("  "))
}
