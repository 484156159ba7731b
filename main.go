package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/noeguerin/bistro-concierge/agent/executor"
	"github.com/noeguerin/bistro-concierge/agent/llm"
	"github.com/noeguerin/bistro-concierge/agent/orchestrator"
	promptx "github.com/noeguerin/bistro-concierge/agent/prompt"
	"github.com/noeguerin/bistro-concierge/agent/session"
	"github.com/noeguerin/bistro-concierge/agent/tool"
	configx "github.com/noeguerin/bistro-concierge/pkg/config"
	logx "github.com/noeguerin/bistro-concierge/pkg/logger"
	openrouterx "github.com/noeguerin/bistro-concierge/pkg/openrouter"
	"github.com/noeguerin/bistro-concierge/pkg/translate"
	dbx "github.com/noeguerin/bistro-concierge/restaurant/db"
	"github.com/noeguerin/bistro-concierge/restaurant/events"
	"github.com/noeguerin/bistro-concierge/restaurant/inquiry"
	"github.com/noeguerin/bistro-concierge/restaurant/order"
	"github.com/noeguerin/bistro-concierge/restaurant/reservation"
	"github.com/noeguerin/bistro-concierge/server"
)

type AppConfig struct {
	InitSchema bool `envconfig:"DB_INIT_SCHEMA" split_words:"true" default:"true"`
}

func main() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")

	database, err := dbx.NewPostgres(*configx.MustNew[dbx.Config]("DATABASE"))
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()
	if appCfg.InitSchema {
		if err := dbx.InitSchema(ctx, database); err != nil {
			log.Fatal().Err(err).Msg("init schema")
		}
	}

	pub := events.New(*configx.MustNew[events.Config]("KAFKA"))
	defer pub.Close()

	reservations := reservation.NewManager(database, pub)
	orders := order.NewManager(database, pub)

	retriever, err := inquiry.NewKeywordRetriever()
	if err != nil {
		log.Fatal().Err(err).Msg("load knowledge base")
	}

	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	client := openrouterx.NewClient(llmCfg.ClassifierConfig())
	if client == nil {
		log.Fatal().Msg("openrouter client could not be initialized")
	}

	prompts := promptx.Load()
	classifier, err := llm.NewClassifier(client, llmCfg.ClassifierConfig(), prompts.Classifier)
	if err != nil {
		log.Fatal().Err(err).Msg("build classifier")
	}
	reasoner, err := llm.NewReasoner(client, *llmCfg, prompts)
	if err != nil {
		log.Fatal().Err(err).Msg("build reasoner")
	}

	store := sessionStore()
	registry := tool.NewSet(reservations, orders, retriever)
	exec := executor.New(reasoner, *configx.MustNew[executor.Config]("AGENT"))

	orch, err := orchestrator.New(classifier, registry, exec, store, translate.Passthrough{}, *configx.MustNew[orchestrator.Config]("AGENT"))
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	srv := server.New(orch, reservations, orders, *configx.MustNew[server.Config]("SERVER"))
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server")
	}
	log.Info().Msg("shutdown complete")
}

// sessionStore uses Redis when an address is configured and falls back to
// process memory otherwise.
func sessionStore() session.Store {
	cfg := configx.MustNew[session.RedisConfig]("REDIS")
	if strings.TrimSpace(cfg.Addr) == "" {
		log.Info().Msg("no redis configured, using in-memory session store")
		return session.NewMemoryStore()
	}

	store, err := session.NewRedisStoreFromConfig(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect session store")
	}
	return store
}
