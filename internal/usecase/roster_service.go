package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	idgen "github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

// RosterConfig holds the roster rules shared by every session.
type RosterConfig struct {
	InitialBudget    int64
	DefaultFormation string
	CommitTimeout    time.Duration
	LoadTimeout      time.Duration
}

func DefaultRosterConfig() RosterConfig {
	return RosterConfig{
		InitialBudget:    1000,
		DefaultFormation: "3-4-3",
		CommitTimeout:    10 * time.Second,
		LoadTimeout:      10 * time.Second,
	}
}

// CommitOutcome is the result of the most recent commit of a session.
type CommitOutcome string

const (
	CommitOutcomeNone      CommitOutcome = ""
	CommitOutcomePending   CommitOutcome = "pending"
	CommitOutcomeCommitted CommitOutcome = "committed"
	CommitOutcomeRetryable CommitOutcome = "failed_retryable"
	CommitOutcomeUnknown   CommitOutcome = "unknown"
)

// CommitStatus describes the last commit issued by a session.
type CommitStatus struct {
	CommitID    string
	Outcome     CommitOutcome
	Error       string
	IssuedAt    time.Time
	CompletedAt time.Time
	// Stale is set when the roster was edited while the commit was in flight,
	// so the committed snapshot is older than the local state.
	Stale bool
}

// RosterView is the read model of a session's roster.
type RosterView struct {
	UserID          string
	Formation       string
	Quotas          map[player.Position]int
	Counts          map[player.Position]int
	InitialBudget   int64
	Spent           int64
	BudgetRemaining int64
	CaptainID       string
	Entries         []roster.Entry
	Composition     roster.Composition
	Saved           bool
	Points          int64
	TeamCreated     bool
	LastUpdatedAt   time.Time
	CommitInFlight  bool
	NeedsReconcile  bool
	LastCommit      CommitStatus
	Violations      []*roster.ValidationError
	Version         uint64
}

// OperationInput is a transport-neutral roster operation.
type OperationInput struct {
	Type      string
	PlayerID  string
	Formation string
}

const (
	OperationAddPlayer       = "add_player"
	OperationRemovePlayer    = "remove_player"
	OperationSetCaptain      = "set_captain"
	OperationChangeFormation = "change_formation"
)

type rosterSession struct {
	mu sync.Mutex

	userID         string
	state          roster.State
	profile        roster.Profile
	version        uint64
	committing     bool
	done           chan struct{}
	needsReconcile bool
	retry          *commitTicket
	lastCommit     CommitStatus
}

type commitTicket struct {
	version uint64
	req     roster.CommitRequest
}

// RosterService owns per-user roster sessions and runs the commit protocol
// against the persistence gateway. Mutations are serialized per session and
// never wait on an in-flight commit.
type RosterService struct {
	catalog player.Repository
	gateway roster.Gateway
	policy  formation.Policy
	cfg     RosterConfig
	idGen   idgen.Generator
	workers *ants.Pool
	logger  *logging.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*rosterSession
	loads    singleflight.Group
}

func NewRosterService(
	catalog player.Repository,
	gateway roster.Gateway,
	policy formation.Policy,
	cfg RosterConfig,
	idGen idgen.Generator,
	workers *ants.Pool,
	logger *logging.Logger,
) *RosterService {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = idgen.NewUUIDGenerator()
	}
	defaults := DefaultRosterConfig()
	if cfg.DefaultFormation == "" {
		cfg.DefaultFormation = defaults.DefaultFormation
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = defaults.CommitTimeout
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = defaults.LoadTimeout
	}

	return &RosterService{
		catalog:  catalog,
		gateway:  gateway,
		policy:   policy,
		cfg:      cfg,
		idGen:    idGen,
		workers:  workers,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*rosterSession),
	}
}

// StartSession seeds a session from the catalog and the last committed
// snapshot. An existing session is returned untouched.
func (s *RosterService) StartSession(ctx context.Context, userID string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.StartSession")
	defer span.End()

	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return RosterView{}, err
	}
	return s.view(sess), nil
}

// Reload replaces the session state with a fresh load, discarding local edits
// and clearing any pending reconciliation.
func (s *RosterService) Reload(ctx context.Context, userID string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.Reload")
	defer span.End()

	userID, err := normalizeUserID(userID)
	if err != nil {
		return RosterView{}, err
	}

	s.mu.Lock()
	sess, exists := s.sessions[userID]
	s.mu.Unlock()
	if exists {
		sess.mu.Lock()
		busy := sess.committing
		sess.mu.Unlock()
		if busy {
			return RosterView{}, roster.ErrCommitInProgress
		}
	}

	state, profile, err := s.load(ctx, userID)
	if err != nil {
		return RosterView{}, err
	}

	if !exists {
		sess = s.register(userID, state, profile)
		return s.view(sess), nil
	}

	sess.mu.Lock()
	if sess.committing {
		sess.mu.Unlock()
		return RosterView{}, roster.ErrCommitInProgress
	}
	sess.state = state
	sess.profile = profile
	sess.version++
	sess.needsReconcile = false
	sess.retry = nil
	sess.mu.Unlock()

	s.logger.InfoContext(ctx, "roster session reloaded", "user_id", userID)
	return s.view(sess), nil
}

// EndSession discards the session and any uncommitted changes.
func (s *RosterService) EndSession(ctx context.Context, userID string) error {
	_, span := startUsecaseSpan(ctx, "usecase.RosterService.EndSession")
	defer span.End()

	userID, err := normalizeUserID(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		return fmt.Errorf("%w: roster session user=%s", ErrNotFound, userID)
	}
	delete(s.sessions, userID)
	return nil
}

func (s *RosterService) View(ctx context.Context, userID string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.View")
	defer span.End()

	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return RosterView{}, err
	}
	return s.view(sess), nil
}

// Validate returns every rule the current roster violates for commit.
func (s *RosterService) Validate(ctx context.Context, userID string) ([]*roster.ValidationError, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.Validate")
	defer span.End()

	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state.SaveViolations(), nil
}

func (s *RosterService) AddPlayer(ctx context.Context, userID, playerID string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.AddPlayer")
	defer span.End()

	p, err := s.resolvePlayer(ctx, playerID)
	if err != nil {
		return RosterView{}, err
	}
	return s.mutate(ctx, userID, roster.AddPlayer{Player: p})
}

func (s *RosterService) RemovePlayer(ctx context.Context, userID, playerID string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.RemovePlayer")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return RosterView{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	return s.mutate(ctx, userID, roster.RemovePlayer{PlayerID: playerID})
}

func (s *RosterService) SetCaptain(ctx context.Context, userID, playerID string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.SetCaptain")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return RosterView{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	return s.mutate(ctx, userID, roster.SetCaptain{PlayerID: playerID})
}

func (s *RosterService) ChangeFormation(ctx context.Context, userID, code string) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.ChangeFormation")
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		return RosterView{}, fmt.Errorf("%w: formation is required", ErrInvalidInput)
	}
	return s.mutate(ctx, userID, roster.ChangeFormation{Code: code})
}

// ApplyOperations runs a batch of operations atomically.
func (s *RosterService) ApplyOperations(ctx context.Context, userID string, inputs []OperationInput) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.ApplyOperations")
	defer span.End()

	if len(inputs) == 0 {
		return RosterView{}, fmt.Errorf("%w: operations are required", ErrInvalidInput)
	}

	addIDs := make([]string, 0, len(inputs))
	for i, in := range inputs {
		switch in.Type {
		case OperationAddPlayer:
			if strings.TrimSpace(in.PlayerID) == "" {
				return RosterView{}, fmt.Errorf("%w: operation %d: player id is required", ErrInvalidInput, i)
			}
			addIDs = append(addIDs, strings.TrimSpace(in.PlayerID))
		case OperationRemovePlayer, OperationSetCaptain, OperationChangeFormation:
		default:
			return RosterView{}, fmt.Errorf("%w: operation %d: unknown type %q", ErrInvalidInput, i, in.Type)
		}
	}

	players := make(map[string]player.Player, len(addIDs))
	if len(addIDs) > 0 {
		items, err := s.catalog.GetByIDs(ctx, addIDs)
		if err != nil {
			return RosterView{}, fmt.Errorf("get players by ids: %w", err)
		}
		for _, item := range items {
			players[item.ID] = item
		}
	}

	ops := make([]roster.Operation, 0, len(inputs))
	for i, in := range inputs {
		switch in.Type {
		case OperationAddPlayer:
			p, ok := players[strings.TrimSpace(in.PlayerID)]
			if !ok {
				return RosterView{}, fmt.Errorf("%w: operation %d: player=%s", ErrNotFound, i, in.PlayerID)
			}
			ops = append(ops, roster.AddPlayer{Player: p})
		case OperationRemovePlayer:
			ops = append(ops, roster.RemovePlayer{PlayerID: strings.TrimSpace(in.PlayerID)})
		case OperationSetCaptain:
			ops = append(ops, roster.SetCaptain{PlayerID: strings.TrimSpace(in.PlayerID)})
		case OperationChangeFormation:
			ops = append(ops, roster.ChangeFormation{Code: strings.TrimSpace(in.Formation)})
		}
	}

	return s.mutate(ctx, userID, ops...)
}

// Commit validates the current roster and hands it to the gateway as one
// atomic unit. The gateway is never called for an invalid roster.
func (s *RosterService) Commit(ctx context.Context, userID string) (CommitStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.Commit")
	defer span.End()

	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return CommitStatus{}, err
	}

	ticket, err := s.beginCommit(sess)
	if err != nil {
		return CommitStatus{}, err
	}

	commitErr := s.runCommit(ctx, ticket)
	status := s.finishCommit(ctx, sess, ticket, commitErr)
	if commitErr != nil {
		return status, s.classifyCommitError(commitErr)
	}
	return status, nil
}

// CommitAsync starts a commit and returns once the roster has been validated
// and frozen. The write runs on the worker pool; WaitCommit observes it.
func (s *RosterService) CommitAsync(ctx context.Context, userID string) (CommitStatus, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.CommitAsync")
	defer span.End()

	if s.workers == nil {
		return CommitStatus{}, fmt.Errorf("%w: commit workers not configured", ErrDependencyUnavailable)
	}

	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return CommitStatus{}, err
	}

	ticket, err := s.beginCommit(sess)
	if err != nil {
		return CommitStatus{}, err
	}

	bgCtx := context.WithoutCancel(ctx)
	submitErr := s.workers.Submit(func() {
		commitErr := s.runCommit(bgCtx, ticket)
		s.finishCommit(bgCtx, sess, ticket, commitErr)
	})
	if submitErr != nil {
		s.abortCommit(sess, ticket)
		return CommitStatus{}, fmt.Errorf("%w: submit commit: %v", ErrDependencyUnavailable, submitErr)
	}

	return CommitStatus{
		CommitID: ticket.req.CommitID,
		Outcome:  CommitOutcomePending,
		IssuedAt: ticket.req.IssuedAt,
	}, nil
}

// WaitCommit blocks until the session has no commit in flight and returns the
// last commit status.
func (s *RosterService) WaitCommit(ctx context.Context, userID string) (CommitStatus, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return CommitStatus{}, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return CommitStatus{}, fmt.Errorf("%w: roster session user=%s", ErrNotFound, userID)
	}

	sess.mu.Lock()
	done := sess.done
	committing := sess.committing
	sess.mu.Unlock()

	if committing && done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return CommitStatus{}, ctx.Err()
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastCommit, nil
}

func (s *RosterService) beginCommit(sess *rosterSession) (commitTicket, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.needsReconcile {
		return commitTicket{}, roster.ErrReconcileRequired
	}
	if sess.committing {
		return commitTicket{}, roster.ErrCommitInProgress
	}
	if err := sess.state.ValidateForSave(); err != nil {
		return commitTicket{}, err
	}

	var ticket commitTicket
	if sess.retry != nil && sess.retry.version == sess.version {
		ticket = *sess.retry
	} else {
		commitID, err := s.idGen.NewID()
		if err != nil {
			return commitTicket{}, fmt.Errorf("generate commit id: %w", err)
		}
		ticket = commitTicket{
			version: sess.version,
			req:     sess.state.CommitRequest(sess.userID, commitID, s.now()),
		}
	}

	sess.committing = true
	sess.done = make(chan struct{})
	sess.lastCommit = CommitStatus{
		CommitID: ticket.req.CommitID,
		Outcome:  CommitOutcomePending,
		IssuedAt: ticket.req.IssuedAt,
	}
	return ticket, nil
}

func (s *RosterService) runCommit(ctx context.Context, ticket commitTicket) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()

	return s.gateway.Commit(ctx, ticket.req)
}

func (s *RosterService) finishCommit(ctx context.Context, sess *rosterSession, ticket commitTicket, commitErr error) CommitStatus {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.committing = false
	if sess.done != nil {
		close(sess.done)
		sess.done = nil
	}

	status := CommitStatus{
		CommitID:    ticket.req.CommitID,
		IssuedAt:    ticket.req.IssuedAt,
		CompletedAt: s.now(),
	}

	switch {
	case commitErr == nil:
		status.Outcome = CommitOutcomeCommitted
		sess.retry = nil
		sess.profile.Budget = ticket.req.Budget
		sess.profile.TeamCreated = true
		sess.profile.LastUpdatedAt = ticket.req.IssuedAt
		sess.profile.CaptainID = ticket.req.CaptainID
		sess.profile.Formation = ticket.req.Formation
		sess.profile.LastCommitID = ticket.req.CommitID
		if sess.version == ticket.version {
			sess.state = sess.state.MarkSaved()
		} else {
			status.Stale = true
		}
		s.logger.InfoContext(ctx, "roster committed",
			"user_id", sess.userID,
			"commit_id", ticket.req.CommitID,
			"player_count", len(ticket.req.Rows),
			"stale", status.Stale,
		)
	case errors.Is(commitErr, roster.ErrConnectivityFailure):
		status.Outcome = CommitOutcomeRetryable
		status.Error = commitErr.Error()
		t := ticket
		sess.retry = &t
		s.logger.WarnContext(ctx, "roster commit failed, retryable",
			"user_id", sess.userID,
			"commit_id", ticket.req.CommitID,
			"error", commitErr,
		)
	default:
		status.Outcome = CommitOutcomeUnknown
		status.Error = commitErr.Error()
		sess.retry = nil
		sess.needsReconcile = true
		s.logger.ErrorContext(ctx, "roster commit outcome unknown, reload required",
			"user_id", sess.userID,
			"commit_id", ticket.req.CommitID,
			"error", commitErr,
		)
	}

	sess.lastCommit = status
	return status
}

// abortCommit releases a commit that never reached the gateway.
func (s *RosterService) abortCommit(sess *rosterSession, ticket commitTicket) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.committing = false
	if sess.done != nil {
		close(sess.done)
		sess.done = nil
	}
	t := ticket
	sess.retry = &t
	sess.lastCommit = CommitStatus{}
}

// classifyCommitError keeps persistence sentinels matchable and maps an
// interrupted write to an unknown outcome.
func (s *RosterService) classifyCommitError(err error) error {
	switch {
	case errors.Is(err, roster.ErrConnectivityFailure), errors.Is(err, roster.ErrPartialWriteFailure):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: commit interrupted: %v", roster.ErrPartialWriteFailure, err)
	default:
		return err
	}
}

func (s *RosterService) mutate(ctx context.Context, userID string, ops ...roster.Operation) (RosterView, error) {
	sess, err := s.ensureSession(ctx, userID)
	if err != nil {
		return RosterView{}, err
	}

	sess.mu.Lock()
	next, err := roster.Apply(sess.state, ops...)
	if err != nil {
		sess.mu.Unlock()
		if len(ops) == 1 {
			var opErr *roster.OperationError
			if errors.As(err, &opErr) {
				return RosterView{}, opErr.Err
			}
		}
		return RosterView{}, err
	}
	sess.state = next
	sess.version++
	sess.mu.Unlock()

	return s.view(sess), nil
}

func (s *RosterService) resolvePlayer(ctx context.Context, playerID string) (player.Player, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return player.Player{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	p, err := s.catalog.GetByID(ctx, playerID)
	if errors.Is(err, player.ErrPlayerNotFound) {
		return player.Player{}, fmt.Errorf("%w: player=%s", ErrNotFound, playerID)
	}
	if err != nil {
		return player.Player{}, fmt.Errorf("get player by id: %w", err)
	}
	return p, nil
}

func (s *RosterService) ensureSession(ctx context.Context, userID string) (*rosterSession, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := s.loads.DoChan(userID, func() (any, error) {
		s.mu.Lock()
		existing, ok := s.sessions[userID]
		s.mu.Unlock()
		if ok {
			return existing, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoadTimeout)
		defer cancel()

		state, profile, loadErr := s.load(loadCtx, userID)
		if loadErr != nil {
			return nil, loadErr
		}
		return s.register(userID, state, profile), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*rosterSession), nil
	}
}

func (s *RosterService) register(userID string, state roster.State, profile roster.Profile) *rosterSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[userID]; ok {
		return existing
	}
	sess := &rosterSession{
		userID:  userID,
		state:   state,
		profile: profile,
	}
	s.sessions[userID] = sess
	return sess
}

// load fetches the catalog and the snapshot concurrently and restores state.
func (s *RosterService) load(ctx context.Context, userID string) (roster.State, roster.Profile, error) {
	var (
		players  []player.Player
		snapshot roster.Snapshot
	)

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		items, err := s.catalog.List(ctx)
		if err != nil {
			return fmt.Errorf("list catalog players: %w", err)
		}
		players = items
		return nil
	})
	p.Go(func(ctx context.Context) error {
		snap, err := s.gateway.Load(ctx, userID)
		if err != nil {
			return fmt.Errorf("load roster snapshot: %w", err)
		}
		snapshot = snap
		return nil
	})
	if err := p.Wait(); err != nil {
		return roster.State{}, roster.Profile{}, err
	}

	catalog := make(map[string]player.Player, len(players))
	for _, item := range players {
		catalog[item.ID] = item
	}

	state, report, err := roster.Restore(roster.RestoreOptions{
		Policy:         s.policy,
		InitialBudget:  s.cfg.InitialBudget,
		DefaultCode:    s.cfg.DefaultFormation,
		Snapshot:       snapshot,
		CatalogPlayers: catalog,
	})
	if err != nil {
		return roster.State{}, roster.Profile{}, fmt.Errorf("restore roster: %w", err)
	}

	for _, skipped := range report.Skipped {
		s.logger.WarnContext(ctx, "persisted roster row dropped on restore",
			"user_id", userID,
			"player_id", skipped.PlayerID,
			"error", skipped.Err,
		)
	}
	if snapshot.Exists && report.BudgetDrift != 0 {
		s.logger.WarnContext(ctx, "persisted budget differs from derived ledger",
			"user_id", userID,
			"stored_budget", snapshot.Profile.Budget,
			"derived_budget", state.BudgetRemaining(),
		)
	}

	return state, snapshot.Profile, nil
}

func (s *RosterService) view(sess *rosterSession) RosterView {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	state := sess.state
	captainID, _ := state.CaptainID()
	f := state.Formation()

	return RosterView{
		UserID:          sess.userID,
		Formation:       f.Code(),
		Quotas:          f.Quotas(),
		Counts:          state.Counts(),
		InitialBudget:   state.InitialBudget(),
		Spent:           state.Spent(),
		BudgetRemaining: state.BudgetRemaining(),
		CaptainID:       captainID,
		Entries:         state.Entries(),
		Composition:     state.Composition(),
		Saved:           state.Saved(),
		Points:          sess.profile.Points,
		TeamCreated:     sess.profile.TeamCreated,
		LastUpdatedAt:   sess.profile.LastUpdatedAt,
		CommitInFlight:  sess.committing,
		NeedsReconcile:  sess.needsReconcile,
		LastCommit:      sess.lastCommit,
		Violations:      state.SaveViolations(),
		Version:         sess.version,
	}
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return userID, nil
}
