package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/soyeahso/pulsestage/internal/config"
	"github.com/soyeahso/pulsestage/internal/logging"
	"github.com/soyeahso/pulsestage/internal/question"
	"github.com/soyeahso/pulsestage/internal/realtime"
	"github.com/soyeahso/pulsestage/internal/services"
	"github.com/soyeahso/pulsestage/internal/store"
	"github.com/soyeahso/pulsestage/internal/tools"
	"github.com/soyeahso/pulsestage/internal/ui"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		campaign       string
		uiPort         int
		sessionContext string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a live session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if campaign != "" {
				cfg.Realtime.CampaignID = campaign
			}
			if uiPort != 0 {
				cfg.UI.Port = uiPort
			}
			if sessionContext != "" {
				cfg.Realtime.Context = sessionContext
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			level := logLevel
			if level == "" {
				level = cfg.Logging.Level
			}
			logger := logging.NewStyled(cfg.Logging.ConsoleStyle, level)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			bus := ui.NewBus(logger)
			if cfg.UI.Port > 0 {
				broadcaster := ui.NewBroadcaster(cfg.UI.Port, cfg.UI.AllowedOrigins, bus, logger)
				go func() {
					if err := broadcaster.Start(ctx); err != nil {
						logger.Error().Err(err).Msg("event broadcaster stopped")
					}
				}()
				logger.Info().Int("port", cfg.UI.Port).Msg("renderer event endpoint up")
			}

			qm := question.NewManager(cfg.Realtime.CampaignID, st, bus, logger)
			if err := qm.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("live result mirroring unavailable")
			}

			var searcher tools.Searcher
			if cfg.Services.Search.Endpoint != "" {
				searcher = services.NewSearchClient(cfg.Services.Search.Endpoint, cfg.Services.Search.APIKey, logger)
			}
			var images tools.ImageGenerator
			if cfg.Services.Image.Endpoint != "" {
				images = services.NewImageClient(cfg.Services.Image.Endpoint, cfg.Services.Image.APIKey, logger)
			}

			tokens := realtime.NewTokenClient(cfg.Realtime.TokenURL)
			orch := realtime.NewOrchestrator(cfg.Realtime, tokens, realtime.WebSocketDialer{},
				realtime.NoopAudioSource{}, nil, bus, logger)
			dispatcher := tools.NewDispatcher(cfg.Realtime.CampaignID, st, qm, searcher, images, orch, bus, logger)
			orch.SetDispatcher(dispatcher)

			if err := orch.Connect(ctx, cfg.Realtime.Context); err != nil {
				return err
			}
			defer orch.Disconnect()

			logger.Info().
				Str("campaign", cfg.Realtime.CampaignID).
				Str("session", orch.SessionID()).
				Msg("session running, press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&campaign, "campaign", "", "override campaign id")
	cmd.Flags().IntVar(&uiPort, "ui-port", 0, "override renderer event port")
	cmd.Flags().StringVar(&sessionContext, "context", "", "free-text event context for the agent")

	return cmd
}

// openStore selects the question store backend from config.
func openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		st, err := store.OpenRedis(ctx, cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB, logger)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		logger.Info().Str("addr", cfg.Store.Redis.Addr).Msg("using redis question store")
		return st, nil
	case "memory":
		logger.Info().Msg("using in-memory question store")
		return store.NewMemoryStore(), nil
	default:
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(paths.Data, "pulsestage.db")
		}
		st, err := store.OpenSQLite(path, logger)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Info().Str("path", path).Msg("using SQLite question store")
		return st, nil
	}
}
