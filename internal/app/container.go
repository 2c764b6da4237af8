// Package app wires the application dependencies for the API server, the
// worker, and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coachdesk/coachdesk/internal/catalog"
	engagementQueries "github.com/coachdesk/coachdesk/internal/engagement/application/queries"
	engagementDomain "github.com/coachdesk/coachdesk/internal/engagement/domain"
	engagementInfra "github.com/coachdesk/coachdesk/internal/engagement/infrastructure"
	"github.com/coachdesk/coachdesk/internal/notification"
	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/coachdesk/coachdesk/internal/shared/infrastructure/persistence"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/application/queries"
	"github.com/coachdesk/coachdesk/internal/subscription/application/services"
	subscriptionDomain "github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/coachdesk/coachdesk/internal/subscription/infrastructure/persistence"
	"github.com/coachdesk/coachdesk/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Database
	DB     *pgxpool.Pool
	SQLite *persistence.SQLiteRepository

	// Redis
	RedisClient *redis.Client

	// Repositories
	SubscriptionRepo subscriptionDomain.Repository
	OutboxRepo       outbox.Repository
	HistoryProvider  engagementDomain.HistoryProvider
	HistoryStore     *engagementInfra.MemoryHistoryStore

	// Shared infrastructure
	UnitOfWork sharedApplication.UnitOfWork
	Locks      *locking.KeyedMutex
	Catalog    catalog.Catalog
	Sender     notification.Sender
	Reminders  notification.ReminderLog

	// Command handlers
	CreateSubscriptionHandler *commands.CreateSubscriptionHandler
	ConvertTrialHandler       *commands.ConvertTrialHandler
	FreezeHandler             *commands.FreezeSubscriptionHandler
	UnfreezeHandler           *commands.UnfreezeSubscriptionHandler
	CancelHandler             *commands.CancelSubscriptionHandler
	ChangePlanHandler         *commands.ChangePlanHandler
	AdjustSessionsHandler     *commands.AdjustSessionsHandler
	AddBonusSessionsHandler   *commands.AddBonusSessionsHandler
	TransferSessionsHandler   *commands.TransferSessionsHandler
	ApplyTransfersHandler     *commands.ApplyPendingTransfersHandler
	RecordUsageHandler        *commands.RecordUsageHandler
	ApplyDiscountHandler      *commands.ApplyDiscountHandler
	RemoveDiscountHandler     *commands.RemoveDiscountHandler
	UpdateMetadataHandler     *commands.UpdateMetadataHandler
	CreateGroupHandler        *commands.CreateGroupHandler
	AddGroupMemberHandler     *commands.AddGroupMemberHandler
	RemoveGroupMemberHandler  *commands.RemoveGroupMemberHandler
	RenewHandler              *commands.RenewSubscriptionHandler
	ExpireHandler             *commands.ExpireSubscriptionHandler

	// Query handlers
	GetSubscriptionHandler        *queries.GetSubscriptionHandler
	ListSubscriptionsHandler      *queries.ListSubscriptionsHandler
	GetHistoryHandler             *queries.GetHistoryHandler
	ComputeEngagementHandler      *engagementQueries.ComputeEngagementHandler
	ComputeEngagementBatchHandler *engagementQueries.ComputeEngagementBatchHandler

	// Sweep services
	AutoResumeService     *services.AutoResumeService
	DiscountExpiryService *services.DiscountExpiryService
	RenewalService        *services.RenewalService
	TrialExpiryService    *services.TrialExpiryService
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := c.initRedis(); err != nil {
		c.Close()
		return nil, err
	}

	c.Locks = locking.NewKeyedMutex()
	c.Catalog = catalog.DefaultCatalog()
	c.Sender = notification.NewBreakerSender(notification.NewLogSender(logger), logger)

	history := engagementInfra.NewMemoryHistoryStore()
	c.HistoryStore = history
	c.HistoryProvider = history

	c.initHandlers()
	c.initServices()

	return c, nil
}

func (c *Container) initStorage(ctx context.Context) error {
	switch c.Config.StorageDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, c.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		c.DB = pool
		c.SubscriptionRepo = persistence.NewPostgresRepository(pool)
		c.OutboxRepo = outbox.NewPostgresRepository(pool)
		c.UnitOfWork = sharedPersistence.NewPostgresUnitOfWork(pool)
		c.Logger.Info("connected to database")

	case "sqlite":
		repo, err := persistence.OpenSQLite(c.Config.SQLitePath)
		if err != nil {
			return err
		}
		c.SQLite = repo
		c.SubscriptionRepo = repo
		// Single-writer SQLite statements are atomic on their own; the
		// outbox stays in memory since events are only published locally.
		c.OutboxRepo = outbox.NewMemoryRepository()
		c.UnitOfWork = sharedApplication.NoopUnitOfWork{}
		c.Logger.Info("opened sqlite database", "path", c.Config.SQLitePath)

	case "memory":
		c.SubscriptionRepo = persistence.NewMemoryRepository()
		c.OutboxRepo = outbox.NewMemoryRepository()
		c.UnitOfWork = sharedApplication.NoopUnitOfWork{}
		c.Logger.Info("using in-memory storage")

	default:
		return fmt.Errorf("unknown storage driver %q", c.Config.StorageDriver)
	}
	return nil
}

func (c *Container) initRedis() error {
	if c.Config.RedisURL == "" {
		c.Reminders = notification.NewMemoryReminderLog()
		return nil
	}

	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, reminder dedupe will use in-memory fallback", "error", err)
		c.Reminders = notification.NewMemoryReminderLog()
		return nil
	}

	c.RedisClient = redis.NewClient(opt)
	c.Reminders = notification.NewRedisReminderLog(c.RedisClient)
	return nil
}

func (c *Container) initHandlers() {
	repo := c.SubscriptionRepo
	ob := c.OutboxRepo
	uow := c.UnitOfWork
	locks := c.Locks

	c.CreateSubscriptionHandler = commands.NewCreateSubscriptionHandler(repo, c.Catalog, ob, uow)
	c.ConvertTrialHandler = commands.NewConvertTrialHandler(repo, c.Catalog, ob, uow, locks)
	c.FreezeHandler = commands.NewFreezeSubscriptionHandler(repo, ob, uow, locks)
	c.UnfreezeHandler = commands.NewUnfreezeSubscriptionHandler(repo, ob, uow, locks)
	c.CancelHandler = commands.NewCancelSubscriptionHandler(repo, ob, uow, locks)
	c.ChangePlanHandler = commands.NewChangePlanHandler(repo, c.Catalog, ob, uow, locks)
	c.AdjustSessionsHandler = commands.NewAdjustSessionsHandler(repo, ob, uow, locks)
	c.AddBonusSessionsHandler = commands.NewAddBonusSessionsHandler(repo, ob, uow, locks)
	c.TransferSessionsHandler = commands.NewTransferSessionsHandler(repo, ob, uow, locks, c.Config.MaxTransferableSessions)
	c.ApplyTransfersHandler = commands.NewApplyPendingTransfersHandler(repo, ob, uow, locks)
	c.RecordUsageHandler = commands.NewRecordUsageHandler(repo, ob, uow, locks)
	c.ApplyDiscountHandler = commands.NewApplyDiscountHandler(repo, ob, uow, locks)
	c.RemoveDiscountHandler = commands.NewRemoveDiscountHandler(repo, ob, uow, locks)
	c.UpdateMetadataHandler = commands.NewUpdateMetadataHandler(repo, ob, uow, locks)
	c.CreateGroupHandler = commands.NewCreateGroupHandler(repo, c.Catalog, ob, uow)
	c.AddGroupMemberHandler = commands.NewAddGroupMemberHandler(repo, c.Catalog, ob, uow, locks, c.Config.RetroactiveRepricing)
	c.RemoveGroupMemberHandler = commands.NewRemoveGroupMemberHandler(repo, ob, uow, locks, c.Config.RetroactiveRepricing)
	c.RenewHandler = commands.NewRenewSubscriptionHandler(repo, ob, uow, locks)
	c.ExpireHandler = commands.NewExpireSubscriptionHandler(repo, ob, uow, locks)

	c.GetSubscriptionHandler = queries.NewGetSubscriptionHandler(repo)
	c.ListSubscriptionsHandler = queries.NewListSubscriptionsHandler(repo)
	c.GetHistoryHandler = queries.NewGetHistoryHandler(repo)
	c.ComputeEngagementHandler = engagementQueries.NewComputeEngagementHandler(repo, c.HistoryProvider)
	c.ComputeEngagementBatchHandler = engagementQueries.NewComputeEngagementBatchHandler(repo, c.HistoryProvider)
}

func (c *Container) initServices() {
	c.AutoResumeService = services.NewAutoResumeService(c.SubscriptionRepo, c.UnfreezeHandler, c.Logger)
	c.DiscountExpiryService = services.NewDiscountExpiryService(c.SubscriptionRepo, c.RemoveDiscountHandler, c.Logger)
	c.RenewalService = services.NewRenewalService(c.SubscriptionRepo, c.RenewHandler, c.Sender, c.Reminders, c.Config.RenewalReminderLeadDays, c.Logger)
	c.TrialExpiryService = services.NewTrialExpiryService(c.SubscriptionRepo, c.ExpireHandler, c.Sender, c.Reminders, c.Logger)
}

// Close releases all held resources.
func (c *Container) Close() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Error("failed to close redis client", "error", err)
		}
	}
	if c.SQLite != nil {
		if err := c.SQLite.Close(); err != nil {
			c.Logger.Error("failed to close sqlite database", "error", err)
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
