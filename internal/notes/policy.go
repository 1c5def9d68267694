package notes

import "github.com/notekeeper/notekeeper/internal/models"

// Notes are private to their author. There is no role-based override.

// CanViewDetail reports whether actor may read n.
func CanViewDetail(actor *models.Actor, n *Note) bool { return owns(actor, n) }

// CanEdit reports whether actor may change n's title and text.
func CanEdit(actor *models.Actor, n *Note) bool { return owns(actor, n) }

// CanDelete reports whether actor may remove n.
func CanDelete(actor *models.Actor, n *Note) bool { return owns(actor, n) }

func owns(actor *models.Actor, n *Note) bool {
	return actor != nil && n != nil && actor.ID != "" && actor.ID == n.Author
}
