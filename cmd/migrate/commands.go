package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gacha-bot/internal/migrate"
)

var upCmd = &cobra.Command{
	Use:   "up [target]",
	Short: "Upgrade to target, or to head when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := migrate.Head
		if len(args) == 1 {
			target = args[0]
		}
		return withRunner(cmd.Context(), func(r *migrate.Runner) error {
			return r.Upgrade(cmd.Context(), target)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down <target>",
	Short: "Downgrade to target; use \"base\" to drop everything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(r *migrate.Runner) error {
			return r.Downgrade(cmd.Context(), args[0])
		})
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the applied revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(r *migrate.Runner) error {
			rev, err := r.Current(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), revisionLabel(rev))
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List revisions from base to head",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(cmd.Context(), func(r *migrate.Runner) error {
			entries, err := r.History(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				mark := " "
				switch {
				case e.Current:
					mark = "*"
				case e.Applied:
					mark = "+"
				}
				fmt.Fprintf(out, "%s %s <- %s  %s\n", mark, e.Step.Revision, revisionLabel(e.Step.DownRevision), e.Step.Description)
			}
			return nil
		})
	},
}

func revisionLabel(rev string) string {
	if rev == "" {
		return migrate.Base
	}
	return rev
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, currentCmd, historyCmd)
}
