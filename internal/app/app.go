package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/panjf2000/ants/v2"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/fantasy-roster/internal/config"
	"github.com/riskibarqy/fantasy-roster/internal/domain/formation"
	"github.com/riskibarqy/fantasy-roster/internal/domain/player"
	"github.com/riskibarqy/fantasy-roster/internal/domain/roster"
	"github.com/riskibarqy/fantasy-roster/internal/domain/user"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/account/anubis"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/account/devtoken"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/catalog"
	cacherepo "github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/resilient"
	"github.com/riskibarqy/fantasy-roster/internal/infrastructure/repository/sqlite"
	"github.com/riskibarqy/fantasy-roster/internal/interfaces/httpapi"
	basecache "github.com/riskibarqy/fantasy-roster/internal/platform/cache"
	idgen "github.com/riskibarqy/fantasy-roster/internal/platform/id"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

// Server is the assembled HTTP service together with the resources it owns.
type Server struct {
	HTTP    *http.Server
	closers []func() error
}

// Close releases the store connections and the commit worker pool.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type store struct {
	players player.Repository
	gateway roster.Gateway
}

func NewServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	srv := &Server{}
	fail := func(err error) (*Server, error) {
		_ = srv.Close()
		return nil, err
	}

	policy, err := formation.NewPolicy(cfg.RosterFormations...)
	if err != nil {
		return nil, fmt.Errorf("build formation policy: %w", err)
	}

	loader := catalog.NewLoader(cfg.CatalogStrict, logger)
	st, err := openStore(ctx, cfg, loader, logger, srv)
	if err != nil {
		return fail(err)
	}

	players := st.players
	if cfg.CacheEnabled {
		players = cacherepo.NewPlayerRepository(players, basecache.NewStore(cfg.CacheTTL))
	}
	gateway := resilient.NewRosterGateway(st.gateway, cfg.GatewayCircuitBreaker().Build(), logger)

	var workers *ants.Pool
	if cfg.CommitWorkers > 0 {
		workers, err = ants.NewPool(cfg.CommitWorkers)
		if err != nil {
			return fail(fmt.Errorf("create commit worker pool: %w", err))
		}
		srv.closers = append(srv.closers, func() error {
			workers.Release()
			return nil
		})
	}

	rosterSvc := usecase.NewRosterService(
		players,
		gateway,
		policy,
		usecase.RosterConfig{
			InitialBudget:    cfg.RosterInitialBudget,
			DefaultFormation: cfg.RosterDefaultFormation,
			CommitTimeout:    cfg.CommitTimeout,
			LoadTimeout:      cfg.SessionLoadTimeout,
		},
		idgen.NewUUIDGenerator(),
		workers,
		logger,
	)
	catalogSvc := usecase.NewCatalogService(players, policy)

	handler := httpapi.NewHandler(rosterSvc, catalogSvc, logger)
	router := httpapi.NewRouter(handler, newVerifier(cfg, logger), logger, cfg.CORSAllowedOrigins)

	srv.HTTP = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("roster service assembled",
		"store", cfg.StoreDriver,
		"auth_mode", cfg.AuthMode,
		"formations", policy.Codes(),
		"commit_workers", cfg.CommitWorkers,
		"cache_enabled", cfg.CacheEnabled,
	)
	return srv, nil
}

func openStore(ctx context.Context, cfg config.Config, loader *catalog.Loader, logger *logging.Logger, srv *Server) (store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return store{}, err
		}
		srv.closers = append(srv.closers, db.Close)

		repo := postgres.NewPlayerRepository(db, loader)
		if cfg.CatalogSyncOnStart {
			records, err := readCatalogRecords(cfg.CatalogFeedPath)
			if err != nil {
				return store{}, err
			}
			if err := repo.Upsert(ctx, records); err != nil {
				return store{}, fmt.Errorf("sync catalog: %w", err)
			}
			logger.Info("catalog synced", "records", len(records))
		}
		return store{players: repo, gateway: postgres.NewRosterGateway(db)}, nil

	case config.StoreSQLite:
		players, err := loadMemoryCatalog(cfg, loader, logger)
		if err != nil {
			return store{}, err
		}
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return store{}, fmt.Errorf("open sqlite store: %w", err)
		}
		srv.closers = append(srv.closers, db.Close)
		return store{players: players, gateway: sqlite.NewRosterGateway(db)}, nil

	case config.StoreMemory, "":
		players, err := loadMemoryCatalog(cfg, loader, logger)
		if err != nil {
			return store{}, err
		}
		return store{players: players, gateway: memory.NewRosterGateway()}, nil

	default:
		return store{}, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	target := resolvePostgresTarget(cfg.DBURL, cfg.DBDisablePreparedBinary)
	db, err := otelsqlx.Open("postgres", target.DSN,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(target.Name),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", target.Redacted, err)
	}
	return db, nil
}

func loadMemoryCatalog(cfg config.Config, loader *catalog.Loader, logger *logging.Logger) (*memory.PlayerRepository, error) {
	result, err := loader.LoadFile(cfg.CatalogFeedPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded",
		"players", len(result.Players),
		"quarantined", len(result.Quarantined),
		"feed", cfg.CatalogFeedPath,
	)
	return memory.NewPlayerRepository(result.Players), nil
}

func readCatalogRecords(path string) ([]catalog.Record, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return catalog.Seed()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog feed: %w", err)
	}
	defer f.Close()
	return catalog.Decode(f)
}

func newVerifier(cfg config.Config, logger *logging.Logger) user.TokenVerifier {
	if cfg.AuthMode != config.AuthModeAnubis {
		logger.Warn("dev token auth enabled, bearer token is trusted as user id")
		return devtoken.NewVerifier()
	}

	return anubis.NewClient(
		&http.Client{
			Timeout:   cfg.AnubisTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg.AnubisBaseURL,
		cfg.AnubisIntrospectURL,
		cfg.AnubisAdminKey,
		cfg.AnubisCircuitBreaker(),
		cfg.AnubisCacheTTL,
		logger,
	)
}
