package domain

import "net/url"

// SessionState describes who is on the other end of the request.
type SessionState struct {
	UserID        string `json:"user_id,omitempty"`
	Authenticated bool   `json:"authenticated"`
	IsGuest       bool   `json:"is_guest"`
}

// SignedIn is true only for a fully authenticated, non-guest actor.
func (s SessionState) SignedIn() bool {
	return s.Authenticated && !s.IsGuest
}

// Location is a path plus raw query within the storefront.
type Location struct {
	Path     string `json:"path"`
	RawQuery string `json:"query,omitempty"`
}

// String renders the location as a relative URL.
func (l Location) String() string {
	if l.RawQuery == "" {
		return l.Path
	}
	return l.Path + "?" + l.RawQuery
}

// LocationFromURL captures the path and query of u.
func LocationFromURL(u *url.URL) Location {
	return Location{Path: u.Path, RawQuery: u.RawQuery}
}

// NavigationIntent is an attempt to open a view.
type NavigationIntent struct {
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
	// From is where to send the actor once a redirect round-trip completes.
	From *Location `json:"from,omitempty"`
}
