package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	actionx "github.com/witbridge/nestbot/bot/action"
	contractx "github.com/witbridge/nestbot/bot/contract"
	enginex "github.com/witbridge/nestbot/bot/engine"
	fetchx "github.com/witbridge/nestbot/bot/fetch"
	gatewayx "github.com/witbridge/nestbot/bot/gateway"
	statex "github.com/witbridge/nestbot/bot/state"
	turnx "github.com/witbridge/nestbot/bot/turn"
	configx "github.com/witbridge/nestbot/pkg/config"
	_ "github.com/witbridge/nestbot/pkg/logger/autoload"
	messengerx "github.com/witbridge/nestbot/pkg/messenger"
)

type AppConfig struct {
	Engine        string        `envconfig:"ENGINE" default:"wit"`
	NewsSourceTTL time.Duration `envconfig:"NEWS_SOURCE_TTL" split_words:"true" default:"24h"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("nestbot exited")
	}
}

func run() error {
	appCfg := configx.MustNew[AppConfig]("")
	serverCfg := configx.MustNew[gatewayx.ServerConfig]("")
	messengerCfg := configx.MustNew[messengerx.Config]("FB")
	weatherCfg := configx.MustNew[fetchx.WeatherConfig]("OPEN_WEATHER")
	newsCfg := configx.MustNew[fetchx.NewsConfig]("NEWS")
	hackerNewsCfg := configx.MustNew[fetchx.HackerNewsConfig]("HACKER_NEWS")
	postgresCfg := configx.MustNew[statex.PostgresConfig]("SESSION_POSTGRES")

	messengerClient := messengerx.MustNew(*messengerCfg)

	weather, err := fetchx.NewWeatherClient(*weatherCfg)
	if err != nil {
		return fmt.Errorf("weather client: %w", err)
	}
	headlines, err := fetchx.NewHackerNewsClient(*hackerNewsCfg)
	if err != nil {
		return fmt.Errorf("hackernews client: %w", err)
	}
	news, err := fetchx.NewNewsClient(*newsCfg)
	if err != nil {
		return fmt.Errorf("news client: %w", err)
	}
	cachedNews := fetchx.NewSourceCache(news, appCfg.NewsSourceTTL)

	ctx := context.Background()

	var store statex.Store
	if postgresCfg.DSN != "" {
		pg, err := statex.NewPostgresStore(ctx, *postgresCfg)
		if err != nil {
			return fmt.Errorf("postgres session store: %w", err)
		}
		defer pg.Close()
		store = pg
	} else {
		store = statex.NewMemoryStore()
	}

	registry := actionx.NewRegistry()
	actions, err := actionx.NewSet(store, messengerClient, weather, headlines, cachedNews)
	if err != nil {
		return fmt.Errorf("action set: %w", err)
	}
	if err := actions.Register(registry); err != nil {
		return fmt.Errorf("register actions: %w", err)
	}

	var engine contractx.Engine
	switch appCfg.Engine {
	case "openai":
		openAICfg := configx.MustNew[enginex.OpenAIConfig]("OPENAI")
		engine, err = enginex.NewOpenAI(*openAICfg, registry)
	default:
		witCfg := configx.MustNew[enginex.WitConfig]("WIT")
		engine, err = enginex.NewWit(*witCfg, registry)
	}
	if err != nil {
		return fmt.Errorf("dialogue engine: %w", err)
	}

	turns, err := turnx.New(store, engine)
	if err != nil {
		return fmt.Errorf("turn service: %w", err)
	}

	handler, err := gatewayx.NewHandler(messengerClient, turns, messengerClient)
	if err != nil {
		return fmt.Errorf("webhook handler: %w", err)
	}
	server := gatewayx.NewServer(*serverCfg, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
