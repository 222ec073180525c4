// Package session resolves who is browsing and guards signed-in views.
package session

import (
	"github.com/utafrali/storefront-sync/internal/domain"
)

// DefaultSignInPath is where unauthenticated actors are sent.
const DefaultSignInPath = "/login"

// Verdict is the guard's answer.
type Verdict int

const (
	Render Verdict = iota
	Redirect
)

func (v Verdict) String() string {
	if v == Render {
		return "render"
	}
	return "redirect"
}

// Decision is the result of admitting a navigation.
type Decision[V any] struct {
	Verdict Verdict
	// View and Params are set for Render.
	View   V
	Params map[string]string
	// Location and Resume are set for Redirect.
	Location string
	Resume   *domain.Location
}

// Guard admits signed-in, non-guest actors to V.
type Guard[V any] struct {
	SignInPath string
}

// NewGuard returns a guard redirecting to signInPath, or DefaultSignInPath when empty.
func NewGuard[V any](signInPath string) Guard[V] {
	if signInPath == "" {
		signInPath = DefaultSignInPath
	}
	return Guard[V]{SignInPath: signInPath}
}

// Admit renders view iff state is signed in; otherwise redirects to the
// sign-in path carrying the origin as resume state. It has no side effects.
func (g Guard[V]) Admit(state domain.SessionState, intent domain.NavigationIntent, view V) Decision[V] {
	if state.SignedIn() {
		return Decision[V]{Verdict: Render, View: view, Params: intent.Params}
	}
	path := g.SignInPath
	if path == "" {
		path = DefaultSignInPath
	}
	return Decision[V]{Verdict: Redirect, Location: path, Resume: intent.From}
}
