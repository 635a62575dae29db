package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/pulsestage/internal/config"
	"github.com/soyeahso/pulsestage/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show PulseStage status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("PulseStage %s (commit %s)\n\n", version.Version, version.Commit)

			// Show paths
			fmt.Printf("Config:   %s\n", paths.Config)
			fmt.Printf("Data:     %s\n", paths.Data)
			fmt.Printf("Logs:     %s\n", paths.Logs)
			fmt.Println()

			// Load config
			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:   not found (using defaults)")
				} else {
					fmt.Printf("Config:   error loading: %v\n", err)
				}
				return nil
			}

			fmt.Printf("Campaign: %s\n", cfg.Realtime.CampaignID)
			fmt.Printf("Realtime: model=%s voice=%s\n", cfg.Realtime.Model, cfg.Realtime.Voice)
			if cfg.Realtime.TokenURL != "" {
				fmt.Printf("Token:    %s\n", cfg.Realtime.TokenURL)
			} else {
				fmt.Println("Token:    (not configured)")
			}

			switch cfg.Store.Backend {
			case "redis":
				fmt.Printf("Store:    redis addr=%s db=%d\n", cfg.Store.Redis.Addr, cfg.Store.Redis.DB)
			case "memory":
				fmt.Println("Store:    memory (nothing persists)")
			default:
				fmt.Printf("Store:    sqlite path=%s\n", cfg.Store.Path)
			}

			fmt.Printf("Search:   %s\n", configuredOr(cfg.Services.Search.Endpoint))
			fmt.Printf("Image:    %s\n", configuredOr(cfg.Services.Image.Endpoint))

			if cfg.UI.Port > 0 {
				fmt.Printf("Renderer: port=%d\n", cfg.UI.Port)
			} else {
				fmt.Println("Renderer: disabled")
			}

			// Validation
			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func configuredOr(endpoint string) string {
	if endpoint == "" {
		return "(not configured)"
	}
	return endpoint
}
