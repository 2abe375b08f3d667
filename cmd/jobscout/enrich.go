package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/ai"
	"github.com/amishk599/jobscout/internal/canon"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/enrich"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/notify"
	"github.com/amishk599/jobscout/internal/store"
)

var enrichDryRun bool

var enrichCmd = &cobra.Command{
	Use:   "enrich <process|monitor|job_link> <dsn>",
	Short: "Resolve derived fields for stored postings",
	Long: "process drains every pending posting and exits. monitor drains, then waits for " +
		"new-posting notifications. Any other first argument is a job link to resolve on its own.",
	Args: cobra.ExactArgs(2),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().BoolVarP(&enrichDryRun, "dry-run", "n", false, "print store mutations instead of executing them")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()
	logger := setupLogger(debug)
	mode, dsn := args[0], args[1]

	cfg, err := config.LoadResolved(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	st, err := openStore(ctx, dsn, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer st.Close()

	var fs model.FieldStore = st
	if enrichDryRun {
		logger.Info("dry-run mode enabled, no fields will be written")
		fs = store.NewDryRunStore(st, os.Stdout)
	}

	provider, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		logger.Error("failed to set up ai provider", "error", err)
		return err
	}
	logger.Info("ai provider configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)

	q := enrich.NewQueue(fs, provider, cfg.Enrich.Fields, cfg.Enrich.QueueConfig(), logger)
	q.Progress = enrich.NewBarProgress(os.Stderr)
	q.Metrics = setupMetrics(ctx, cfg, logger)

	switch mode {
	case "process":
		return q.ProcessAll(ctx)
	case "monitor":
		url := cfg.Notify.ListenURL
		if url == "" {
			if !store.IsPostgres(dsn) {
				return fmt.Errorf("monitor needs notify.listen_url or a postgres dsn")
			}
			url = dsn
		}
		l, err := notify.Open(ctx, url, cfg.Notify.Channel, logger)
		if err != nil {
			logger.Error("failed to open notification channel", "error", err)
			return err
		}
		defer l.Close()
		return q.Monitor(ctx, l)
	default:
		return q.ProcessOne(ctx, canon.Canonicalize(mode))
	}
}
