package agent

import (
	"fmt"
	"path"
	"strings"
)

// Role is the closed set of worker kinds. Adding a role means adding a
// constant here and a case to every exhaustive switch over Role.
type Role uint8

const (
	RoleProjectManager Role = iota + 1
	RoleLiquid
	RoleCSS
	RoleJavaScript
	RoleJSON
	RoleReview
	RoleGeneral
)

// Roles lists every role in declaration order.
func Roles() []Role {
	return []Role{RoleProjectManager, RoleLiquid, RoleCSS, RoleJavaScript, RoleJSON, RoleReview, RoleGeneral}
}

func (r Role) String() string {
	switch r {
	case RoleProjectManager:
		return "project_manager"
	case RoleLiquid:
		return "liquid"
	case RoleCSS:
		return "css"
	case RoleJavaScript:
		return "javascript"
	case RoleJSON:
		return "json"
	case RoleReview:
		return "review"
	case RoleGeneral:
		return "general"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RoleProjectManager && r <= RoleGeneral
}

// ParseRole maps a role name back to its Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, r := range Roles() {
		if r.String() == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Specialist reports whether the role edits files.
func (r Role) Specialist() bool {
	switch r {
	case RoleLiquid, RoleCSS, RoleJavaScript, RoleJSON, RoleGeneral:
		return true
	case RoleProjectManager, RoleReview:
		return false
	default:
		return false
	}
}

// RoleForFile picks the specialist responsible for a file by extension.
func RoleForFile(name string) Role {
	switch strings.ToLower(path.Ext(name)) {
	case ".liquid":
		return RoleLiquid
	case ".css", ".scss", ".sass", ".less":
		return RoleCSS
	case ".js", ".mjs", ".cjs", ".ts", ".jsx", ".tsx":
		return RoleJavaScript
	case ".json":
		return RoleJSON
	default:
		return RoleGeneral
	}
}
