package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/cascade/internal/config"
	"github.com/ShayCichocki/cascade/internal/durable/sqlitestep"
)

var (
	stepsDBPath    string
	stepsRunID     string
	stepsOlderThan time.Duration
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Inspect durable step checkpoints",
	Long: `Inspect and maintain the durable checkpoint database.

Durable cascades persist each completed step keyed by run and step
name. Listing the checkpoints for a run shows how far it progressed;
purging removes checkpoints from old runs.

Examples:
  cascade steps list
  cascade steps list --run order-cascade
  cascade steps purge --older-than 720h`,
}

var stepsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted step checkpoints",
	RunE:  runStepsList,
}

var stepsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old step checkpoints",
	RunE:  runStepsPurge,
}

func init() {
	stepsCmd.PersistentFlags().StringVar(&stepsDBPath, "db", "", "Checkpoint database path (defaults to config)")
	stepsListCmd.Flags().StringVar(&stepsRunID, "run", "", "Only list steps for this run")
	stepsPurgeCmd.Flags().DurationVar(&stepsOlderThan, "older-than", 30*24*time.Hour, "Delete checkpoints older than this")

	stepsCmd.AddCommand(stepsListCmd)
	stepsCmd.AddCommand(stepsPurgeCmd)
}

// openStepDB resolves the checkpoint database path and opens it.
func openStepDB() (*sqlitestep.DB, error) {
	path := stepsDBPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Durable.DBPath
	}
	return sqlitestep.Open(path)
}

func runStepsList(cmd *cobra.Command, args []string) error {
	db, err := openStepDB()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListSteps(stepsRunID)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No step checkpoints.")
		return nil
	}

	fmt.Printf("Step checkpoints in %s:\n\n", db.Path())
	for _, rec := range records {
		fmt.Printf("  %s  %s  %s  (%d bytes)\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			color.CyanString(rec.RunID),
			rec.Name,
			len(rec.Result))
	}
	fmt.Printf("\n%d checkpoint(s)\n", len(records))
	return nil
}

func runStepsPurge(cmd *cobra.Command, args []string) error {
	db, err := openStepDB()
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := db.PurgeOldSteps(stepsOlderThan)
	if err != nil {
		return err
	}

	fmt.Printf("%s Purged %d checkpoint(s) older than %s\n", color.GreenString("✓"), count, stepsOlderThan)
	return nil
}
