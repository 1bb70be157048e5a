package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cascade/internal/config"
	"github.com/ShayCichocki/cascade/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Long: `Print the configuration after merging defaults, the user config
file, any project .cascade.yaml, and environment variables.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	heading := color.New(color.Bold)

	heading.Println("anthropic")
	fmt.Printf("  model:            %s\n", orUnset(cfg.Anthropic.Model))
	key, _ := config.APIKey(cfg)
	fmt.Printf("  api_key:          %s\n", config.MaskAPIKey(key))
	fmt.Printf("  use_aws_bedrock:  %t\n", cfg.Anthropic.UseAWSBedrock)
	if cfg.Anthropic.UseAWSBedrock {
		fmt.Printf("  aws_region:       %s\n", orUnset(cfg.Anthropic.AWSRegion))
		fmt.Printf("  aws_profile:      %s\n", orUnset(cfg.Anthropic.AWSProfile))
	}

	heading.Println("defaults")
	fmt.Printf("  actor:                %s\n", orUnset(cfg.Defaults.Actor))
	fmt.Printf("  use_default_timeouts: %t\n", cfg.Defaults.UseDefaultTimeouts)
	fmt.Printf("  total_timeout:        %s\n", cfg.Defaults.TotalTimeout)

	heading.Println("timeouts")
	if cfg.Defaults.UseDefaultTimeouts {
		for _, tier := range models.TierOrder {
			fmt.Printf("  %-11s %s\n", string(tier)+":", models.DefaultTierTimeouts[tier])
		}
	} else {
		fmt.Printf("  code:       %s\n", cfg.Timeouts.Code)
		fmt.Printf("  generative: %s\n", cfg.Timeouts.Generative)
		fmt.Printf("  agentic:    %s\n", cfg.Timeouts.Agentic)
		fmt.Printf("  human:      %s\n", cfg.Timeouts.Human)
	}

	heading.Println("retry")
	fmt.Printf("  max_retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("  base_delay:  %s\n", cfg.Retry.BaseDelay)

	heading.Println("review")
	fmt.Printf("  dir: %s\n", cfg.Review.Dir)

	heading.Println("durable")
	fmt.Printf("  db_path: %s\n", cfg.Durable.DBPath)

	heading.Println("gateway")
	fmt.Printf("  id:         %s\n", orUnset(cfg.Gateway.ID))
	fmt.Printf("  account_id: %s\n", orUnset(cfg.Gateway.AccountID))
	fmt.Printf("  cache_ttl:  %d\n", cfg.Gateway.CacheTTL)
	fmt.Printf("  skip_cache: %t\n", cfg.Gateway.SkipCache)

	fmt.Printf("\nUser config file: %s\n", config.GetUserConfigPath())
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return color.New(color.Faint).Sprint("(unset)")
	}
	return s
}
