package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

// RosterGateway persists rosters in roster_players and roster_profiles.
//
// Commit stages the new rows stamped with the commit id, removes every other
// row of the user and upserts the profile in one transaction. Reissuing the
// same request rewrites the same rows, so a retry after an unknown outcome
// converges on the requested roster.
type RosterGateway struct {
	db *sqlx.DB
}

func NewRosterGateway(db *sqlx.DB) *RosterGateway {
	return &RosterGateway{db: db}
}

func (g *RosterGateway) Load(ctx context.Context, userID string) (roster.Snapshot, error) {
	profileQuery, profileArgs, err := qb.Select(
		"user_id", "budget", "points", "team_created", "captain_id", "formation", "last_commit_id", "last_updated_at",
	).From("roster_profiles").
		Where(qb.Eq("user_id", userID)).
		ToSQL()
	if err != nil {
		return roster.Snapshot{}, fmt.Errorf("build select roster profile query: %w", err)
	}

	var profile rosterProfileTableModel
	if err := g.db.GetContext(ctx, &profile, profileQuery, profileArgs...); err != nil {
		if isNotFound(err) {
			return roster.Snapshot{UserID: userID}, nil
		}
		return roster.Snapshot{}, classifyError("get roster profile", err)
	}

	rowsQuery, rowsArgs, err := qb.Select("user_id", "player_id", "is_captain", "commit_id").
		From("roster_players").
		Where(qb.Eq("user_id", userID)).
		OrderBy("position_index", "player_id").
		ToSQL()
	if err != nil {
		return roster.Snapshot{}, fmt.Errorf("build select roster rows query: %w", err)
	}

	var rows []rosterRowTableModel
	if err := g.db.SelectContext(ctx, &rows, rowsQuery, rowsArgs...); err != nil {
		return roster.Snapshot{}, classifyError("select roster rows", err)
	}

	out := make([]roster.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, roster.Row{
			UserID:    row.UserID,
			PlayerID:  row.PlayerID,
			IsCaptain: row.IsCaptain,
		})
	}

	snap := roster.Snapshot{
		UserID: userID,
		Rows:   out,
		Profile: roster.Profile{
			Budget:       profile.Budget,
			Points:       profile.Points,
			TeamCreated:  profile.TeamCreated,
			CaptainID:    profile.CaptainID.String,
			Formation:    profile.Formation.String,
			LastCommitID: profile.LastCommitID.String,
		},
		Exists: true,
	}
	if profile.LastUpdatedAt.Valid {
		snap.Profile.LastUpdatedAt = profile.LastUpdatedAt.Time.UTC()
	}
	return snap, nil
}

func (g *RosterGateway) Commit(ctx context.Context, req roster.CommitRequest) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError("begin roster commit tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if len(req.Rows) > 0 {
		ins := qb.InsertInto("roster_players").
			Columns("user_id", "player_id", "is_captain", "position_index", "commit_id", "updated_at").
			OnConflict([]string{"user_id", "player_id"}, "is_captain", "position_index", "commit_id", "updated_at")
		for i, row := range req.Rows {
			ins.Values(req.UserID, row.PlayerID, row.IsCaptain, i, req.CommitID, req.IssuedAt)
		}
		query, args, err := ins.ToSQL()
		if err != nil {
			return fmt.Errorf("build upsert roster rows query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classifyError("upsert roster rows", err)
		}
	}

	delQuery, delArgs, err := qb.DeleteFrom("roster_players").
		Where(qb.Eq("user_id", req.UserID), qb.NotEq("commit_id", req.CommitID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete stale roster rows query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
		return classifyError("delete stale roster rows", err)
	}

	profQuery, profArgs, err := qb.InsertInto("roster_profiles").
		Columns("user_id", "budget", "points", "team_created", "captain_id", "formation", "last_commit_id", "last_updated_at").
		Values(req.UserID, req.Budget, 0, true, nullString(req.CaptainID), nullString(req.Formation), req.CommitID, req.IssuedAt).
		OnConflict([]string{"user_id"}, "budget", "team_created", "captain_id", "formation", "last_commit_id", "last_updated_at").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert roster profile query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, profQuery, profArgs...); err != nil {
		return classifyError("upsert roster profile", err)
	}

	if err := ctx.Err(); err != nil {
		return classifyError("roster commit", err)
	}
	if err := tx.Commit(); err != nil {
		return classifyCommitError("commit roster tx", err)
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
