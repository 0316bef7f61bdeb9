package resilient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	rostermock "github.com/riskibarqy/fantasy-roster/internal/mocks/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/platform/resilience"
)

func TestRosterGateway_OpensOnConnectivityFailures(t *testing.T) {
	next := rostermock.NewGateway(t)
	gw := NewRosterGateway(next, resilience.NewCircuitBreaker(2, time.Minute, 1), nil)
	req := roster.CommitRequest{CommitID: "c1", UserID: "u1"}

	next.On("Commit", mock.Anything, req).Return(roster.ErrConnectivityFailure).Twice()

	for i := 0; i < 2; i++ {
		if err := gw.Commit(context.Background(), req); !errors.Is(err, roster.ErrConnectivityFailure) {
			t.Fatalf("attempt %d: expected ErrConnectivityFailure, got %v", i, err)
		}
	}
	if gw.State() != resilience.CircuitStateOpen {
		t.Fatalf("expected open circuit, got %s", gw.State())
	}

	// Fails fast without reaching the wrapped gateway.
	err := gw.Commit(context.Background(), req)
	if !errors.Is(err, roster.ErrConnectivityFailure) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected fast connectivity failure, got %v", err)
	}
	next.AssertNumberOfCalls(t, "Commit", 2)
}

func TestRosterGateway_PartialWriteDoesNotTripBreaker(t *testing.T) {
	next := rostermock.NewGateway(t)
	gw := NewRosterGateway(next, resilience.NewCircuitBreaker(1, time.Minute, 1), nil)

	next.On("Commit", mock.Anything, mock.Anything).Return(roster.ErrPartialWriteFailure).Once()
	next.On("Load", mock.Anything, "u1").Return(roster.Snapshot{UserID: "u1"}, nil).Once()

	if err := gw.Commit(context.Background(), roster.CommitRequest{UserID: "u1"}); !errors.Is(err, roster.ErrPartialWriteFailure) {
		t.Fatalf("expected ErrPartialWriteFailure, got %v", err)
	}
	if gw.State() != resilience.CircuitStateClosed {
		t.Fatalf("partial writes must not open the circuit")
	}
	if _, err := gw.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestRosterGateway_NilBreakerPassesThrough(t *testing.T) {
	next := rostermock.NewGateway(t)
	gw := NewRosterGateway(next, nil, nil)

	next.On("Load", mock.Anything, "u1").Return(roster.Snapshot{UserID: "u1", Exists: true}, nil).Once()

	snap, err := gw.Load(context.Background(), "u1")
	if err != nil || !snap.Exists {
		t.Fatalf("unexpected load result: %+v %v", snap, err)
	}
}
