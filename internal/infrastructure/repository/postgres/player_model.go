package postgres

import (
	"database/sql"
	"time"
)

type playerTableModel struct {
	PublicID  string         `db:"public_id"`
	Name      string         `db:"name"`
	Position  string         `db:"position_label"`
	Price     int64          `db:"price"`
	Team      sql.NullString `db:"team"`
	House     sql.NullString `db:"house"`
	UpdatedAt time.Time      `db:"updated_at"`
}

type rosterRowTableModel struct {
	UserID    string `db:"user_id"`
	PlayerID  string `db:"player_id"`
	IsCaptain bool   `db:"is_captain"`
	CommitID  string `db:"commit_id"`
}

type rosterProfileTableModel struct {
	UserID        string         `db:"user_id"`
	Budget        int64          `db:"budget"`
	Points        int64          `db:"points"`
	TeamCreated   bool           `db:"team_created"`
	CaptainID     sql.NullString `db:"captain_id"`
	Formation     sql.NullString `db:"formation"`
	LastCommitID  sql.NullString `db:"last_commit_id"`
	LastUpdatedAt sql.NullTime   `db:"last_updated_at"`
}
