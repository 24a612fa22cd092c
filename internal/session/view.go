package session

import (
	"context"
	"strings"
)

// View is one screen of the app.
type View int

const (
	ViewLogin View = iota
	ViewDashboard
	ViewScan
	ViewPlanner
	ViewAllergens
	ViewChat
	ViewProfile
	ViewSettings
)

var viewNames = map[View]string{
	ViewLogin:     "login",
	ViewDashboard: "dashboard",
	ViewScan:      "scan",
	ViewPlanner:   "planner",
	ViewAllergens: "allergens",
	ViewChat:      "chat",
	ViewProfile:   "profile",
	ViewSettings:  "settings",
}

func (v View) String() string {
	if s, ok := viewNames[v]; ok {
		return s
	}
	return "dashboard"
}

// MarshalText renders the view by name.
func (v View) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseView maps a tab id to its view. Unknown ids, and "login" which is never
// selected directly, fall back to the dashboard.
func ParseView(id string) View {
	id = strings.ToLower(strings.TrimSpace(id))
	for v, name := range viewNames {
		if name == id && v != ViewLogin {
			return v
		}
	}
	return ViewDashboard
}

// gated reports whether v needs a completed profile.
func (v View) gated() bool {
	switch v {
	case ViewDashboard, ViewScan, ViewPlanner, ViewAllergens, ViewChat:
		return true
	}
	return false
}

// Renderer produces the payload of a view for a signed-in user. s is nil
// for the login view.
type Renderer func(ctx context.Context, s *Session) (any, error)

// Table maps each view to its renderer.
type Table map[View]Renderer
