package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/civic-budget/internal/ai"
	"github.com/iliyamo/civic-budget/internal/config"
	"github.com/iliyamo/civic-budget/internal/database"
	"github.com/iliyamo/civic-budget/internal/handler"
	"github.com/iliyamo/civic-budget/internal/logging"
	"github.com/iliyamo/civic-budget/internal/middleware"
	"github.com/iliyamo/civic-budget/internal/notify"
	"github.com/iliyamo/civic-budget/internal/queue"
	"github.com/iliyamo/civic-budget/internal/repository"
	"github.com/iliyamo/civic-budget/internal/router"
	"github.com/iliyamo/civic-budget/internal/service"
)

func main() {
	cfg := config.Load()
	log, closer := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Error("database unavailable", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := database.Migrate(db); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	// ---- Repositories ----
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	projects := repository.NewProjectRepo(db, users)
	votes := repository.NewVoteRepo(db, users, projects)
	periods := repository.NewPeriodRepo(db)
	comments := repository.NewCommentRepo(db, users)
	tickets := repository.NewSupportRepo(db)

	// ---- Collaborators ----
	aiCfg := config.LoadAIConfig()
	var advisor service.Advisor
	if aiCfg.APIKey != "" {
		client, err := ai.NewClient(aiCfg)
		if err != nil {
			log.Warn("ai client disabled", "err", err)
		} else {
			advisor = client
		}
	} else {
		log.Info("GEMINI_API_KEY not set; AI features disabled")
	}

	var events service.EventPublisher
	amqpCfg := config.LoadAMQPConfig()
	if amqpCfg.Enabled {
		pub := queue.NewPublisher(amqpCfg.URL, amqpCfg.Queue, log)
		defer pub.Close()
		events = pub

		consumer := &queue.Consumer{
			URL:         amqpCfg.URL,
			Queue:       amqpCfg.Queue,
			ActivityLog: amqpCfg.ActivityLog,
			Log:         log,
		}
		if mailer := notify.NewMailer(config.LoadMailConfig()); mailer != nil {
			consumer.Notifier = &notify.AuthorNotifier{
				Mailer: mailer,
				Email: func(ctx context.Context, id uint64) (string, error) {
					u, err := users.GetByID(ctx, id)
					return u.Email, err
				},
			}
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("activity consumer stopped", "err", err)
			}
		}()
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable; using in-process rate limiting and no response cache", "err", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	// ---- Services ----
	accounts := service.NewAccountService(users, cfg.BcryptCost)
	registry := service.NewPeriodRegistry(periods)
	projectSvc := service.NewProjectService(projects, users, comments, registry, events, log)
	voting := service.NewVotingEngine(users, projects, votes, events, log)
	moderation := service.NewModerationWorkflow(projects, comments, advisor, aiCfg.Timeout, events, log)
	commentSvc := service.NewCommentService(comments, projects, advisor, aiCfg.Timeout, log)
	support := service.NewSupportService(tickets, users, advisor, aiCfg.Timeout, log)

	// ---- HTTP ----
	handler.SetRequestTimeout(cfg.RequestTimeout)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.CORS())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(c.Request().Context(), level, "request",
				slog.String("id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	router.Register(e, db, router.Handlers{
		Auth:       handler.NewAuthHandler(cfg, accounts, users, tokens, log),
		Periods:    &handler.PeriodHandler{Periods: registry, Log: log},
		Projects:   &handler.ProjectHandler{Projects: projectSvc, Voting: voting, Comments: commentSvc, Moderation: moderation, Log: log},
		Moderation: &handler.ModerationHandler{Moderation: moderation, Comments: commentSvc, Log: log},
		Account:    &handler.AccountHandler{Accounts: accounts, Projects: projectSvc, Log: log},
		Support:    &handler.SupportHandler{Support: support, Log: log},
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Limit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
