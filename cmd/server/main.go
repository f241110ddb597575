package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/poppy-relay/internal/ai"
	"github.com/suPer8Hu/poppy-relay/internal/chat"
	"github.com/suPer8Hu/poppy-relay/internal/config"
	"github.com/suPer8Hu/poppy-relay/internal/db"
	"github.com/suPer8Hu/poppy-relay/internal/handoff"
	"github.com/suPer8Hu/poppy-relay/internal/httpapi"
	"github.com/suPer8Hu/poppy-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/poppy-relay/internal/notify"
	"github.com/suPer8Hu/poppy-relay/internal/platform/logger"
	"github.com/suPer8Hu/poppy-relay/internal/refdata"
	"github.com/suPer8Hu/poppy-relay/internal/store/gormstore"
	"github.com/suPer8Hu/poppy-relay/internal/store/rabbitmq"
	"github.com/suPer8Hu/poppy-relay/internal/store/redisstore"
	"github.com/suPer8Hu/poppy-relay/internal/store/supabase"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.AllowedLinksInvalid {
		log.Warn("ALLOWED_LINKS is not a JSON array of strings; link filtering disabled")
	}
	if strings.Contains(strings.ToLower(cfg.LogMode), "prod") {
		gin.SetMode(gin.ReleaseMode)
	}

	// Provider registry (AI_PROVIDER picks one)
	reg := ai.NewRegistry()
	reg.Register("openai", func(model string) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, model, cfg.OpenAITemperature, cfg.OpenAIMaxTokens), nil
	})
	reg.Register("ollama", func(model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model, cfg.OpenAITemperature, cfg.OpenAIMaxTokens), nil
	})
	model := cfg.OpenAIModel
	if cfg.AIProvider == "ollama" {
		model = cfg.OllamaModel
	}
	provider, err := reg.Get(cfg.AIProvider, model)
	if err != nil {
		log.Fatal("ai provider", "err", err)
	}
	moderator := ai.NewOpenAIModerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ModerationModel)

	slack := notify.NewSlack(log, notify.Config{
		BotToken:      cfg.SlackBotToken,
		AlertsChannel: cfg.SlackAlertsChannel,
		TestChannel:   cfg.SlackTestChannel,
		APIURL:        cfg.SlackAPIURL,
	})

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("store", "backend", cfg.StoreBackend, "err", err)
	}
	defer closeStore()

	var events handoff.EventPublisher
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			// events are optional; handoffs still work without the broker
			log.Warn("rabbitmq unavailable, handoff events disabled", "err", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	refs := refdata.NewLoader(log, cfg.AssetsBaseURL)
	chatSvc := chat.NewService(log, provider, moderator, refs, slack, chat.Options{
		SystemPrompt: cfg.SystemPrompt,
		AllowedLinks: cfg.AllowedLinks,
	})
	handoffSvc := handoff.NewService(log, store, slack, events)

	h := handlers.NewHandler(log, chatSvc, handoffSvc, slack)
	r := httpapi.NewRouter(cfg, log, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", "addr", srv.Addr, "ai_provider", cfg.AIProvider, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}

// openStore builds the handoff row store for STORE_BACKEND. Missing
// credentials return a nil store so handoff requests answer 500 instead of
// the process refusing to start.
func openStore(cfg config.Config, log *logger.Logger) (handoff.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case "supabase":
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			log.Warn("supabase not configured; handoff endpoints disabled")
			return nil, noop, nil
		}
		return supabase.New(cfg.SupabaseURL, cfg.SupabaseServiceKey), noop, nil

	case "mysql", "sqlite":
		if cfg.StoreBackend == "mysql" && cfg.DBDSN == "" {
			log.Warn("DB_DSN not set; handoff endpoints disabled")
			return nil, noop, nil
		}
		gdb, err := db.Connect(cfg.StoreBackend, cfg.DBDSN)
		if err != nil {
			return nil, noop, err
		}
		s := gormstore.New(gdb)
		if err := s.Migrate(); err != nil {
			return nil, noop, err
		}
		closeDB := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return s, closeDB, nil

	case "redis":
		if cfg.RedisAddr == "" {
			log.Warn("REDIS_ADDR not set; handoff endpoints disabled")
			return nil, noop, nil
		}
		s, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, noop, errors.New("unsupported STORE_BACKEND " + cfg.StoreBackend)
	}
}
