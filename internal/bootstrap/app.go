package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"studio-backend/internal/account"
	"studio-backend/internal/assistant"
	openaiassistant "studio-backend/internal/assistant/openai"
	"studio-backend/internal/attachments"
	googleauth "studio-backend/internal/auth"
	"studio-backend/internal/balance"
	"studio-backend/internal/catalog"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/queue"
	"studio-backend/internal/session"
	"studio-backend/internal/shared/config"
	"studio-backend/internal/shared/server"
	"studio-backend/internal/shared/storage/db"
	"studio-backend/internal/users"
)

// App holds shared dependencies wired from configuration.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Queue  queue.Client

	CatalogRepo    catalog.Repo
	RunsRepo       dispatch.RunsRepo
	SessionStore   session.Store
	UsersRepo      users.Repo
	CatalogService *catalog.Service
	BalanceService *balance.Service
	SessionService *session.Service
	Dispatcher     *dispatch.Dispatcher
	Assistant      assistant.Client
	Pipeline       *attachments.Pipeline
	UsersService   *users.Service
	GoogleAuth     *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb := buildRedis(cfg)

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  rdb,
		Queue:  queueClient,
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		CatalogHandler: catalog.NewHandler(app.CatalogService),
		SessionHandler: session.NewHandler(app.SessionService),
		BalanceHandler: balance.NewHandler(app.BalanceService),
		RunsHandler:    dispatch.NewHandler(app.RunsRepo),
		UsersHandler:   users.NewHandler(app.UsersService, app.BalanceService),
		AccountHandler: account.NewHandler(account.NewService(app.SessionStore, app.RunsRepo)),
		GoogleAuth:     app.GoogleAuth,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildRedis(cfg config.Config) *redis.Client {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("bootstrap: invalid REDIS_URL, catalog cache disabled: %v", err)
		return nil
	}
	return redis.NewClient(opts)
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.ExecQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config

	var catalogRepo catalog.Repo
	var runsRepo dispatch.RunsRepo
	var sessionStore session.Store
	var userRepo users.Repo
	var balanceSvc *balance.Service

	if app.DB != nil {
		pgCatalog := &catalog.PGRepo{DB: app.DB}
		if err := catalog.SeedDefaults(ctx, pgCatalog); err != nil {
			log.Printf("bootstrap: module seed failed: %v", err)
		}
		catalogRepo = pgCatalog
		runsRepo = &dispatch.PGRepo{DB: app.DB}
		sessionStore = &session.PGStore{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
		balanceSvc = balance.NewPostgresService(balance.NewPGStore(app.DB))
	} else {
		catalogRepo = catalog.NewMemoryRepo(catalog.DefaultModules()...)
		runsRepo = dispatch.NewMemoryRepo()
		sessionStore = session.NewMemoryStore()
		userRepo = users.NewMemoryRepo()
		balanceSvc = balance.NewService()
	}

	if app.Redis != nil {
		catalogRepo = catalog.NewCachedRepo(catalogRepo, app.Redis)
	}

	assistantClient := assistant.Client(assistant.PlaceholderClient{})
	if cfg.AssistantProvider == "openai" && strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "" {
		client, err := openaiassistant.NewClient(os.Getenv("OPENAI_API_KEY"), cfg.AssistantModel)
		if err != nil {
			return err
		}
		assistantClient = client
	}

	var issuer attachments.TargetIssuer
	if strings.TrimSpace(cfg.UploadsBucket) != "" {
		s3Issuer, err := attachments.NewS3IssuerFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("uploads issuer: %w", err)
		}
		issuer = s3Issuer
	} else {
		issuer = attachments.NewLocalIssuer(cfg.LocalStoreDir)
	}
	pipeline := attachments.NewPipeline(issuer)

	catalogSvc := catalog.NewService(catalogRepo)
	dispatcher := &dispatch.Dispatcher{
		Balance: balanceSvc,
		Queue:   app.Queue,
		Runs:    runsRepo,
	}
	if app.Queue == nil {
		dispatcher.Queue = queue.NopClient{}
	}

	sessionSvc := session.NewService(sessionStore, catalogSvc, balanceSvc, assistantClient, pipeline, dispatcher)

	usersSvc := users.NewService(userRepo)
	googleAuth := googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		usersSvc,
	)

	app.CatalogRepo = catalogRepo
	app.RunsRepo = runsRepo
	app.SessionStore = sessionStore
	app.UsersRepo = userRepo
	app.CatalogService = catalogSvc
	app.BalanceService = balanceSvc
	app.SessionService = sessionSvc
	app.Dispatcher = dispatcher
	app.Assistant = assistantClient
	app.Pipeline = pipeline
	app.UsersService = usersSvc
	app.GoogleAuth = googleAuth

	return nil
}
