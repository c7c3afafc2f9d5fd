package optional

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patch struct {
	Name  Value[string] `json:"name"`
	Phone Value[string] `json:"phone"`
	Age   Value[int]    `json:"age"`
}

func TestUnmarshalTracksPresence(t *testing.T) {
	var p patch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Acme","phone":null}`), &p))

	assert.True(t, p.Name.Set)
	assert.Equal(t, "Acme", p.Name.Val)
	assert.True(t, p.Phone.Set)
	assert.Equal(t, "", p.Phone.Val)
	assert.False(t, p.Age.Set)
}

func TestColumnsSkipsUnset(t *testing.T) {
	p := patch{Name: Of("Acme")}
	cols := Columns(map[string]Field{
		"name":  p.Name,
		"phone": p.Phone,
		"age":   p.Age,
	})
	assert.Equal(t, map[string]any{"name": "Acme"}, cols)
}
