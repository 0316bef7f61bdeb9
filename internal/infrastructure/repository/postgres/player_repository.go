package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/catalog"
	qb "github.com/riskibarqy/fantasy-roster/internal/platform/querybuilder"
)

// PlayerRepository reads the player catalog. Stored position labels are free
// text and pass through the catalog loader, so unknown labels are quarantined
// the same way as in the feed.
type PlayerRepository struct {
	db     *sqlx.DB
	loader *catalog.Loader
}

var playerSelectColumns = []string{
	"public_id",
	"name",
	"position_label",
	"price",
	"team",
	"house",
	"updated_at",
}

func NewPlayerRepository(db *sqlx.DB, loader *catalog.Loader) *PlayerRepository {
	if loader == nil {
		loader = catalog.NewLoader(false, nil)
	}
	return &PlayerRepository{db: db, loader: loader}
}

func (r *PlayerRepository) List(ctx context.Context) ([]player.Player, error) {
	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(qb.IsNull("deleted_at")).
		OrderBy("public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players query: %w", err)
	}

	return r.selectPlayers(ctx, query, args)
}

func (r *PlayerRepository) GetByID(ctx context.Context, playerID string) (player.Player, error) {
	items, err := r.GetByIDs(ctx, []string{playerID})
	if err != nil {
		return player.Player{}, err
	}
	if len(items) == 0 {
		return player.Player{}, fmt.Errorf("%w: %s", player.ErrPlayerNotFound, playerID)
	}
	return items[0], nil
}

func (r *PlayerRepository) GetByIDs(ctx context.Context, playerIDs []string) ([]player.Player, error) {
	if len(playerIDs) == 0 {
		return []player.Player{}, nil
	}

	query, args, err := qb.Select(playerSelectColumns...).From("players").
		Where(
			qb.In("public_id", qb.Strings(playerIDs)),
			qb.IsNull("deleted_at"),
		).
		OrderBy("public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select players by ids query: %w", err)
	}

	return r.selectPlayers(ctx, query, args)
}

// Upsert writes catalog records, reviving soft-deleted players.
func (r *PlayerRepository) Upsert(ctx context.Context, records []catalog.Record) error {
	if len(records) == 0 {
		return nil
	}

	ins := qb.InsertInto("players").
		Columns("public_id", "name", "position_label", "price", "team", "house", "deleted_at").
		OnConflict([]string{"public_id"}, "name", "position_label", "price", "team", "house", "deleted_at")
	for _, rec := range records {
		ins.Values(rec.ID, rec.Name, rec.Position, rec.Price, rec.Team, rec.House, nil)
	}

	query, args, err := ins.ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert players query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return classifyError("upsert players", err)
	}
	return nil
}

func (r *PlayerRepository) selectPlayers(ctx context.Context, query string, args []any) ([]player.Player, error) {
	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classifyError("select players", err)
	}

	records := make([]catalog.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, catalog.Record{
			ID:       row.PublicID,
			Name:     row.Name,
			Position: row.Position,
			Price:    row.Price,
			Team:     row.Team.String,
			House:    row.House.String,
		})
	}

	res, err := r.loader.Admit(records)
	if err != nil {
		return nil, fmt.Errorf("normalize players: %w", err)
	}

	return res.Players, nil
}
