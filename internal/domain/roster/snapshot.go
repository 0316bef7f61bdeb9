package roster

import (
	"context"
	"time"
)

// Row is one persisted roster entry, unique per (UserID, PlayerID).
type Row struct {
	UserID    string
	PlayerID  string
	IsCaptain bool
}

// Profile holds the owner's persisted budget and status fields.
type Profile struct {
	Budget        int64
	Points        int64
	TeamCreated   bool
	LastUpdatedAt time.Time
	CaptainID     string
	Formation     string
	LastCommitID  string
}

// Snapshot is the last committed roster of a user. Exists is false when the
// user never committed.
type Snapshot struct {
	UserID  string
	Rows    []Row
	Profile Profile
	Exists  bool
}

// CommitRequest is the frozen, validated roster handed to a Gateway. Reissuing
// the same request must produce the same persisted outcome.
type CommitRequest struct {
	CommitID  string
	UserID    string
	Rows      []Row
	Budget    int64
	CaptainID string
	Formation string
	IssuedAt  time.Time
}

// Gateway loads and atomically replaces a user's persisted roster.
type Gateway interface {
	Load(ctx context.Context, userID string) (Snapshot, error)
	Commit(ctx context.Context, req CommitRequest) error
}

// CommitRequest freezes the state into the rows and profile fields to persist.
func (s State) CommitRequest(userID, commitID string, issuedAt time.Time) CommitRequest {
	rows := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		rows = append(rows, Row{
			UserID:    userID,
			PlayerID:  id,
			IsCaptain: id == s.captainID,
		})
	}

	return CommitRequest{
		CommitID:  commitID,
		UserID:    userID,
		Rows:      rows,
		Budget:    s.BudgetRemaining(),
		CaptainID: s.captainID,
		Formation: s.formation.Code(),
		IssuedAt:  issuedAt.UTC(),
	}
}
