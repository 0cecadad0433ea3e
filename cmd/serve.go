package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/api"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/bot"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/config"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/conversation"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/database"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/jobqueue"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/logging"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/media"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/nextcloud"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/reasoning"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/taskbinding"
)

// ServeCommand returns the CLI command for starting the webhook server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Talk webhook server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the webhook server (overrides server.port)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if port := c.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	logCloser, err := logging.Setup(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.Run(ctx)
}

// app is the assembled bot service.
type app struct {
	db     *sql.DB
	queue  jobqueue.Queue
	server *api.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, dialect, err := database.Open(ctx, database.ResolveURL(cfg.Tasks.DatabaseURL))
	if err != nil {
		return nil, err
	}
	bindings := taskbinding.NewStore(db, dialect)
	if err := bindings.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate task bindings: %w", err)
	}

	store, err := conversation.Open(conversation.Options{
		Window:           cfg.Store.Window,
		MaxMessageLength: cfg.Store.MaxMessageLength,
		MaxFacts:         cfg.Store.MaxFacts,
		HistoryPath:      cfg.Store.HistoryPath(),
		FactsPath:        cfg.Store.FactsPath(),
		ConfirmationTTL:  cfg.Store.ConfirmationTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	registry, err := newRegistry(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	reasoner, err := newReasoner(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	queue, err := jobqueue.New(ctx, cfg.Jobs, registry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create job queue: %w", err)
	}

	o := bot.NewOrchestrator(bot.Deps{
		Registry:    registry,
		Store:       store,
		Bindings:    bindings,
		Reasoner:    reasoner,
		Transcriber: media.NewWhisperTranscriber(cfg.Transcription.Whisper),
		Extractor:   media.NewExtractor(cfg.Preview),
		Closer:      queue,
	}, bot.Options{
		Organization:         cfg.Organization,
		ReasoningTimeout:     cfg.Reasoning.Timeout,
		TranscriptionTimeout: cfg.Transcription.Timeout,
		CloseDelay:           cfg.Tasks.CloseDelay,
	})

	stats := store.Stats()
	log.Info().
		Strs("bots", registry.Names()).
		Str("reasoning", reasoner.Name()).
		Str("database", string(dialect)).
		Int("conversations", stats.Conversations).
		Int("messages", stats.TotalMessages).
		Msg("Talk bot initialized")

	return &app{db: db, queue: queue, server: api.NewServer(o, cfg.Server)}, nil
}

func newRegistry(cfg *config.Config) (*bot.Registry, error) {
	bots := make([]*bot.Bot, 0, len(cfg.Bots))
	for _, name := range cfg.BotNames() {
		id := cfg.Bots[name]
		bots = append(bots, &bot.Bot{
			Identity: id,
			Platform: nextcloud.New(nextcloud.Options{
				BaseURL:   cfg.Nextcloud.URL,
				User:      id.NextcloudUser,
				Password:  id.NextcloudPassword,
				Secret:    id.Secret,
				Timeout:   cfg.Nextcloud.Timeout,
				RateLimit: cfg.Nextcloud.RateLimit,
				RateBurst: cfg.Nextcloud.RateBurst,
				Retry:     cfg.Nextcloud.Retry,
			}),
		})
	}
	registry, err := bot.NewRegistry(bots, cfg.DefaultBot)
	if err != nil {
		return nil, fmt.Errorf("invalid bot configuration: %w", err)
	}
	return registry, nil
}

func newReasoner(ctx context.Context, cfg *config.Config) (reasoning.Backend, error) {
	prompts := reasoning.PromptOptions{
		Organization:   cfg.Organization,
		DefaultBoardID: cfg.Reasoning.DefaultBoardID,
		DefaultStackID: cfg.Reasoning.DefaultStackID,
	}
	switch cfg.Reasoning.Backend {
	case "", "cli":
		return reasoning.NewCLIBackend(cfg.Reasoning.CLI, prompts), nil
	case "langchain":
		b, err := reasoning.NewLangChainBackend(ctx, cfg.Reasoning.LangChain, prompts)
		if err != nil {
			return nil, fmt.Errorf("failed to create langchain backend: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown reasoning backend %q", cfg.Reasoning.Backend)
	}
}

// Run serves webhooks until ctx is cancelled, then drains the server and the queue.
func (a *app) Run(ctx context.Context) error {
	if err := a.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx := context.WithoutCancel(gctx)
		err := a.server.Shutdown(shutdownCtx)
		if qerr := a.queue.Stop(shutdownCtx); qerr != nil && err == nil {
			err = qerr
		}
		return err
	})
	return g.Wait()
}

// Close releases the task database.
func (a *app) Close() error {
	return a.db.Close()
}
