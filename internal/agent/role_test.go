package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleRoundTrip(t *testing.T) {
	for _, r := range Roles() {
		t.Run(r.String(), func(t *testing.T) {
			got, err := ParseRole(r.String())
			require.NoError(t, err)
			assert.Equal(t, r, got)
		})
	}

	_, err := ParseRole("designer")
	assert.Error(t, err)
}

func TestRoleJSON(t *testing.T) {
	d := Delegation{Role: RoleCSS, Description: "tweak", FileIDs: []string{"assets/a.css"}}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"role":"css"`)

	var back Delegation
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, RoleCSS, back.Role)

	var bad Delegation
	assert.Error(t, json.Unmarshal([]byte(`{"role":"nope"}`), &bad))

	_, err = json.Marshal(Delegation{})
	assert.Error(t, err)
}

func TestRoleForFile(t *testing.T) {
	tests := map[string]Role{
		"sections/header.liquid": RoleLiquid,
		"assets/base.CSS":        RoleCSS,
		"assets/cart.js":         RoleJavaScript,
		"config/settings.json":   RoleJSON,
		"README.md":              RoleGeneral,
	}
	for name, want := range tests {
		assert.Equal(t, want, RoleForFile(name), name)
	}
}

func TestSpecialist(t *testing.T) {
	assert.True(t, RoleLiquid.Specialist())
	assert.False(t, RoleProjectManager.Specialist())
	assert.False(t, RoleReview.Specialist())
	assert.False(t, Role(0).Valid())
}
