package sessions

import (
	"time"

	"github.com/notekeeper/notekeeper/internal/models"
)

// Session is a browser login. ID is the opaque value of the session cookie.
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	Sub       string    `bson:"sub" json:"sub"`
	Username  string    `bson:"username" json:"username"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) Actor() *models.Actor {
	return &models.Actor{ID: s.Sub, Username: s.Username}
}
