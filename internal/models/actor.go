package models

// Actor is the authenticated identity attached to a request. Anonymous
// requests carry a nil *Actor. Identity comparison uses ID only.
type Actor struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Same reports whether a and other are the same identity.
func (a *Actor) Same(other *Actor) bool {
	return a != nil && other != nil && a.ID != "" && a.ID == other.ID
}
