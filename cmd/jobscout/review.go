package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/ai"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/enrich"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/review"
	"github.com/amishk599/jobscout/internal/store"
)

// reviewLimit caps how many failed postings one review screen loads.
const reviewLimit = 500

var reviewCmd = &cobra.Command{
	Use:   "review <dsn>",
	Short: "Browse postings whose derived fields failed (TUI)",
	Long:  "Shows the field picker, then a list/detail view of failed postings where c clears a failure and r retries it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, err := config.LoadResolved(cfgPath)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, args[0], cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// Any log output corrupts the alt screen.
	silent := discardLogger()
	var reproc review.Reprocessor
	if provider, err := ai.NewProvider(ctx, cfg.AI); err == nil {
		reproc = enrich.NewQueue(st, provider, cfg.Enrich.Fields, cfg.Enrich.QueueConfig(), silent)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "retry disabled: %v\n", err)
	}

	for {
		summaries, err := summarize(ctx, st, cfg.Enrich.Fields)
		if err != nil {
			return err
		}
		choice, err := review.RunFieldPicker(summaries)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if choice < 0 {
			return nil
		}
		f := summaries[choice].Field

		items, err := review.RunLoader(f.Name, func(ctx context.Context) ([]model.FailedItem, error) {
			return st.ListFailed(ctx, f, reviewLimit)
		})
		if errors.Is(err, review.ErrCancelled) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error loading failed postings: %v\n", err)
			continue
		}

		wantQuit, err := review.RunReviewTUI(ctx, f, st, reproc, items, reviewLimit)
		if err != nil {
			return fmt.Errorf("review: %w", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}

func summarize(ctx context.Context, st store.Store, fields []model.FieldDescriptor) ([]review.FieldSummary, error) {
	out := make([]review.FieldSummary, 0, len(fields))
	for _, f := range fields {
		pending, err := st.CountPending(ctx, f)
		if err != nil {
			return nil, err
		}
		failed, err := st.CountFailed(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, review.FieldSummary{Field: f, Pending: pending, Failed: failed})
	}
	return out, nil
}
