package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/canon"
	"github.com/amishk599/jobscout/internal/config"
	"github.com/amishk599/jobscout/internal/enrich"
	"github.com/amishk599/jobscout/internal/model"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields <dsn>",
	Short: "Show pending and failed counts per derived field",
	Args:  cobra.ExactArgs(1),
	RunE:  runFields,
}

var fieldsClearCmd = &cobra.Command{
	Use:   "clear <dsn> <field> [link]",
	Short: "Clear failure tags so the field is retried",
	Long:  "Clears the failure tag of one posting, or of every posting when no link is given.",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runFieldsClear,
}

func init() {
	fieldsCmd.AddCommand(fieldsClearCmd)
	rootCmd.AddCommand(fieldsCmd)
}

func runFields(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-25s %-10s %10s %10s\n", "Field", "Type", "Pending", "Failed")
	fmt.Fprintln(out, strings.Repeat("─", 58))
	for _, f := range cfg.Enrich.Fields {
		pending, err := st.CountPending(ctx, f)
		if err != nil {
			return err
		}
		failed, err := st.CountFailed(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-25s %-10s %10d %10d\n", f.Name, f.Type, pending, failed)
	}
	return nil
}

func runFieldsClear(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	cfg, err := config.LoadResolved(cfgPath)
	if err != nil {
		return err
	}
	f, ok := enrich.FindField(cfg.Enrich.Fields, args[1])
	if !ok {
		return fmt.Errorf("unknown field %q", args[1])
	}
	var link model.JobLink
	if len(args) == 3 {
		link = canon.Canonicalize(args[2])
	}

	st, err := openStore(ctx, args[0], cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ClearFailed(ctx, f, link)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d failure tag(s) for %s\n", n, f.Name)
	return nil
}
