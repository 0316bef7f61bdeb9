package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// RosterGateway stores rosters in a local SQLite file, with the same
// stage-then-swap commit as the postgres gateway.
type RosterGateway struct {
	db *sqlx.DB
}

func NewRosterGateway(db *sqlx.DB) *RosterGateway {
	return &RosterGateway{db: db}
}

type profileRow struct {
	Budget        int64          `db:"budget"`
	Points        int64          `db:"points"`
	TeamCreated   bool           `db:"team_created"`
	CaptainID     sql.NullString `db:"captain_id"`
	Formation     sql.NullString `db:"formation"`
	LastCommitID  sql.NullString `db:"last_commit_id"`
	LastUpdatedAt sql.NullInt64  `db:"last_updated_at"`
}

type playerRow struct {
	PlayerID  string `db:"player_id"`
	IsCaptain bool   `db:"is_captain"`
}

func (g *RosterGateway) Load(ctx context.Context, userID string) (roster.Snapshot, error) {
	query, args, err := qb.Select("budget", "points", "team_created", "captain_id", "formation", "last_commit_id", "last_updated_at").
		Format(qb.Question).
		From("roster_profiles").
		Where(qb.Eq("user_id", userID)).
		ToSQL()
	if err != nil {
		return roster.Snapshot{}, fmt.Errorf("build select roster profile query: %w", err)
	}

	var profile profileRow
	if err := g.db.GetContext(ctx, &profile, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return roster.Snapshot{UserID: userID}, nil
		}
		return roster.Snapshot{}, classifyError("get roster profile", err)
	}

	query, args, err = qb.Select("player_id", "is_captain").
		Format(qb.Question).
		From("roster_players").
		Where(qb.Eq("user_id", userID)).
		OrderBy("position_index", "player_id").
		ToSQL()
	if err != nil {
		return roster.Snapshot{}, fmt.Errorf("build select roster rows query: %w", err)
	}

	var rows []playerRow
	if err := g.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return roster.Snapshot{}, classifyError("select roster rows", err)
	}

	out := make([]roster.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.Row{UserID: userID, PlayerID: row.PlayerID, IsCaptain: row.IsCaptain})
	}

	return roster.Snapshot{
		UserID: userID,
		Rows:   out,
		Profile: roster.Profile{
			Budget:        profile.Budget,
			Points:        profile.Points,
			TeamCreated:   profile.TeamCreated,
			LastUpdatedAt: fromMillis(profile.LastUpdatedAt),
			CaptainID:     profile.CaptainID.String,
			Formation:     profile.Formation.String,
			LastCommitID:  profile.LastCommitID.String,
		},
		Exists: true,
	}, nil
}

func (g *RosterGateway) Commit(ctx context.Context, req roster.CommitRequest) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError("begin roster commit tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	issuedAt := toMillis(req.IssuedAt)

	if len(req.Rows) > 0 {
		ins := qb.InsertInto("roster_players").
			Format(qb.Question).
			Columns("user_id", "player_id", "is_captain", "position_index", "commit_id", "updated_at").
			OnConflict([]string{"user_id", "player_id"}, "is_captain", "position_index", "commit_id", "updated_at")
		for i, row := range req.Rows {
			ins.Values(req.UserID, row.PlayerID, row.IsCaptain, i, req.CommitID, issuedAt)
		}
		query, args, err := ins.ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert roster rows query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classifyError("upsert roster rows", err)
		}
	}

	query, args, err := qb.DeleteFrom("roster_players").
		Format(qb.Question).
		Where(qb.Eq("user_id", req.UserID), qb.NotEq("commit_id", req.CommitID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete stale roster rows query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classifyError("delete stale roster rows", err)
	}

	query, args, err = qb.InsertInto("roster_profiles").
		Format(qb.Question).
		Columns("user_id", "budget", "points", "team_created", "captain_id", "formation", "last_commit_id", "last_updated_at").
		Values(req.UserID, req.Budget, 0, true, nullString(req.CaptainID), nullString(req.Formation), req.CommitID, issuedAt).
		OnConflict([]string{"user_id"}, "budget", "team_created", "captain_id", "formation", "last_commit_id", "last_updated_at").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert roster profile query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return classifyError("upsert roster profile", err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("roster commit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return crerr.Wrapf(roster.ErrPartialWriteFailure, "commit roster tx: %v", err)
	}
	return nil
}

// SetPoints records externally computed points for a user's profile.
func (g *RosterGateway) SetPoints(ctx context.Context, userID string, points int64) error {
	if _, err := g.db.ExecContext(ctx, `UPDATE roster_profiles SET points = ? WHERE user_id = ?`, points, userID); err != nil {
		return classifyError("update roster points", err)
	}
	return nil
}

func isBusyError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
}

// classifyError maps failures before COMMIT. A busy or locked database never
// applied the transaction, so the commit may be retried.
func classifyError(op string, err error) error {
	if isBusyError(err) {
		return crerr.Wrapf(roster.ErrConnectivityFailure, "%s: %v", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
