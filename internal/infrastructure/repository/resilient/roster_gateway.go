package resilient

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
)

// RosterGateway guards a roster.Gateway with a circuit breaker. Only
// connectivity failures count against the breaker; an open breaker fails
// fast with roster.ErrConnectivityFailure, which callers may retry.
type RosterGateway struct {
	next    roster.Gateway
	breaker *resilience.CircuitBreaker
}

func NewRosterGateway(next roster.Gateway, breaker *resilience.CircuitBreaker, logger *logging.Logger) *RosterGateway {
	if logger == nil {
		logger = logging.Default()
	}
	breaker.OnStateChange(func(from, to resilience.CircuitState) {
		logger.Warn("roster gateway circuit state changed", "from", string(from), "to", string(to))
	})
	return &RosterGateway{next: next, breaker: breaker}
}

func (g *RosterGateway) Load(ctx context.Context, userID string) (roster.Snapshot, error) {
	var snap roster.Snapshot
	err := g.breaker.Execute(func() error {
		var loadErr error
		snap, loadErr = g.next.Load(ctx, userID)
		return loadErr
	}, isConnectivity)
	return snap, translate(err)
}

func (g *RosterGateway) Commit(ctx context.Context, req roster.CommitRequest) error {
	err := g.breaker.Execute(func() error {
		return g.next.Commit(ctx, req)
	}, isConnectivity)
	return translate(err)
}

func (g *RosterGateway) State() resilience.CircuitState {
	return g.breaker.State()
}

func isConnectivity(err error) bool {
	return errors.Is(err, roster.ErrConnectivityFailure)
}

func translate(err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", roster.ErrConnectivityFailure, err)
	}
	return err
}
