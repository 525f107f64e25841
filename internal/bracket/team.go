package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TeamStatus string

const (
	TeamPending  TeamStatus = "pending"
	TeamApproved TeamStatus = "approved"
	TeamRejected TeamStatus = "rejected"
)

type Team struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	Name         string     `db:"name" json:"name"`
	Status       TeamStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (t *Team) Approved() bool {
	return t.Status == TeamApproved
}
