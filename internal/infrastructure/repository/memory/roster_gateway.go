package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
)

// RosterGateway keeps committed rosters in memory. Commit swaps the user's
// rows and profile under a single lock, so readers never see a partial roster.
type RosterGateway struct {
	mu      sync.RWMutex
	rows    map[string][]roster.Row
	profile map[string]roster.Profile
}

func NewRosterGateway() *RosterGateway {
	return &RosterGateway{
		rows:    make(map[string][]roster.Row),
		profile: make(map[string]roster.Profile),
	}
}

func (g *RosterGateway) Load(ctx context.Context, userID string) (roster.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return roster.Snapshot{}, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	profile, ok := g.profile[userID]
	if !ok {
		return roster.Snapshot{UserID: userID}, nil
	}

	return roster.Snapshot{
		UserID:  userID,
		Rows:    cloneRows(g.rows[userID]),
		Profile: profile,
		Exists:  true,
	}, nil
}

func (g *RosterGateway) Commit(ctx context.Context, req roster.CommitRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.profile[req.UserID]
	g.rows[req.UserID] = cloneRows(req.Rows)
	g.profile[req.UserID] = roster.Profile{
		Budget:        req.Budget,
		Points:        prev.Points,
		TeamCreated:   true,
		LastUpdatedAt: req.IssuedAt,
		CaptainID:     req.CaptainID,
		Formation:     req.Formation,
		LastCommitID:  req.CommitID,
	}
	return nil
}

// SetPoints records externally computed points for a user's profile.
func (g *RosterGateway) SetPoints(userID string, points int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	profile := g.profile[userID]
	profile.Points = points
	g.profile[userID] = profile
}

func cloneRows(rows []roster.Row) []roster.Row {
	return append([]roster.Row(nil), rows...)
}
