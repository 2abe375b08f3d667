package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobscout/internal/canon"
	"github.com/amishk599/jobscout/internal/config"
)

var unsetApplied bool

var showCmd = &cobra.Command{
	Use:   "show <dsn> <link>",
	Short: "Print a stored posting with its derived fields",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

var appliedCmd = &cobra.Command{
	Use:   "applied <dsn> <link>",
	Short: "Mark a stored posting as applied to",
	Args:  cobra.ExactArgs(2),
	RunE:  runApplied,
}

func init() {
	appliedCmd.Flags().BoolVar(&unsetApplied, "unset", false, "clear the applied flag instead")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(appliedCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	link := canon.Canonicalize(args[1])
	p, found, err := st.Get(ctx, link, cfg.Enrich.Fields...)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no posting stored for %s", link)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-18s %s\n", "link", p.Link)
	fmt.Fprintf(out, "%-18s %s\n", "title", p.Title)
	fmt.Fprintf(out, "%-18s %s\n", "organization", p.Organization)
	fmt.Fprintf(out, "%-18s %s\n", "location", p.Location)
	fmt.Fprintf(out, "%-18s %t\n", "applied", p.Applied)

	keys := make([]string, 0, len(p.Criteria))
	for k := range p.Criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-18s %s\n", k, p.Criteria[k])
	}
	for _, f := range cfg.Enrich.Fields {
		v, ok := p.Derived[f.Name]
		if !ok {
			fmt.Fprintf(out, "%-18s (pending or failed)\n", f.Column())
			continue
		}
		fmt.Fprintf(out, "%-18s %v\n", f.Column(), v)
	}
	return nil
}

func runApplied(cmd *cobra.Command, args []string) error {
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

	link := canon.Canonicalize(args[1])
	found, err := st.SetApplied(ctx, link, !unsetApplied)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no posting stored for %s", link)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s applied=%t\n", link, !unsetApplied)
	return nil
}
