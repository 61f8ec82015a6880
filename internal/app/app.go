// Package app wires repositories, services and the HTTP surface together
// for the api server and slactl.
package app

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/activity"
	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/identifier"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/sla"
)

// Repositories is one storage backend.
type Repositories struct {
	Tenants    repository.TenantRepository
	Policies   repository.SLAPolicyRepository
	Agents     repository.AgentRepository
	Tickets    repository.TicketRepository
	Activities repository.TicketActivityRepository
	Comments   repository.TicketCommentRepository
}

// PostgresRepositories builds pgx-backed repositories.
func PostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Tenants:    repository.NewTenantRepository(pool),
		Policies:   repository.NewSLAPolicyRepository(pool),
		Agents:     repository.NewAgentRepository(pool),
		Tickets:    repository.NewTicketRepository(pool),
		Activities: repository.NewTicketActivityRepository(pool),
		Comments:   repository.NewTicketCommentRepository(pool),
	}
}

// MemoryRepositories builds repositories over an in-process store.
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Tenants:    store.Tenants(),
		Policies:   store.SLAPolicies(),
		Agents:     store.Agents(),
		Tickets:    store.Tickets(),
		Activities: store.Activities(),
		Comments:   store.Comments(),
	}
}

// Options configures NewServices. Clock and Locker default to the system
// clock and an in-process locker.
type Options struct {
	Config     *config.Config
	Repos      Repositories
	Dispatcher events.Dispatcher
	Clock      sla.Clock
	Locker     identifier.Locker
	Logger     *zap.Logger
}

// Services holds the application services.
type Services struct {
	Tickets       *service.TicketService
	Policies      *service.SLAPolicyService
	Agents        *service.AgentService
	Tenants       *service.TenantService
	Auth          *service.AuthService
	Notifications *service.NotificationService
	Dispatcher    events.Dispatcher
}

// NewServices builds the engine and the services around it.
func NewServices(opts Options) (*Services, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	triggers, err := lifecycle.ParseTriggers(cfg.SLA.FirstResponseTriggers)
	if err != nil {
		return nil, fmt.Errorf("first response triggers: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = sla.SystemClock{}
	}
	locker := opts.Locker
	if locker == nil {
		locker = identifier.NewLocalLocker()
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher(events.WithErrorHandler(func(e events.Event, err error) {
			logger.Warn("event handler failed", zap.String("event_type", string(e.Type)), zap.Error(err))
		}))
	}

	repos := opts.Repos
	calculator := sla.NewCalculator(sla.NewPolicyStore(repos.Policies))
	agents := service.NewAgentService(repos.Agents, cfg.Auth.BcryptCost)

	return &Services{
		Tickets: service.NewTicketService(service.TicketDependencies{
			TicketRepo:  repos.Tickets,
			CommentRepo: repos.Comments,
			AgentRepo:   repos.Agents,
			Activities:  activity.NewLog(repos.Activities),
			Identifiers: identifier.NewGenerator(repos.Tenants, repos.Tickets,
				identifier.WithLocker(locker),
				identifier.WithMaxAttempts(cfg.Identifier.MaxAttempts)),
			Machine:    lifecycle.NewMachine(calculator, clock, triggers),
			Dispatcher: dispatcher,
			Logger:     logger.Named("tickets"),
		}),
		Policies: service.NewSLAPolicyService(repos.Policies, logger.Named("sla")),
		Agents:   agents,
		Tenants: service.NewTenantService(service.TenantDependencies{
			TenantRepo:   repos.Tenants,
			PolicyRepo:   repos.Policies,
			AgentRepo:    repos.Agents,
			TicketRepo:   repos.Tickets,
			CommentRepo:  repos.Comments,
			ActivityRepo: repos.Activities,
			Agents:       agents,
			Logger:       logger.Named("tenants"),
		}),
		Auth:          service.NewAuthService(*cfg, repos.Agents),
		Notifications: service.NewNotificationService(dispatcher, logger.Named("notify"), cfg.Notification),
		Dispatcher:    dispatcher,
	}, nil
}

// HTTPOptions configures NewHTTPApp. Postgres and Redis may be nil.
type HTTPOptions struct {
	Config   *config.Config
	Services *Services
	Agents   repository.AgentRepository
	Metrics  *observability.Metrics
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Logger   *zap.Logger
}

// NewHTTPApp builds the fiber app with middlewares and routes.
func NewHTTPApp(opts HTTPOptions) *fiber.App {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := opts.Services

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, opts.Metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, opts.Postgres, opts.Redis),
		Metrics:        handlers.NewMetricsHandler(opts.Metrics),
		Auth:           handlers.NewAuthHandler(svc.Auth, svc.Tenants),
		Agents:         handlers.NewAgentsHandler(svc.Agents),
		SLA:            handlers.NewSLAHandler(svc.Policies, svc.Tickets),
		Tickets:        handlers.NewTicketsHandler(svc.Tickets),
		AuthMiddleware: auth.NewAuthMiddleware(svc.Auth.TokenManager(), opts.Agents),
	})
	return app
}
