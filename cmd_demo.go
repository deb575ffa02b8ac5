package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "reset",
			Short: "Reset the running service to its seed data",
			RunE:  runReset,
		},
		&cobra.Command{
			Use:   "add-items",
			Short: "Create the demo items that are missing",
			RunE:  runAddItems,
		},
		&cobra.Command{
			Use:   "delete-random",
			Short: "Delete one item chosen at random",
			RunE:  runDeleteRandom,
		},
		&cobra.Command{
			Use:   "report",
			Short: "Print a summary of the catalog",
			RunE:  runReport,
		},
		&cobra.Command{
			Use:   "regression",
			Short: "Exercise every item endpoint against a running service",
			RunE:  runRegressionCmd,
		},
	)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := newClient().Reset(cmd.Context()); err != nil {
		return fmt.Errorf("reset-db failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Database reset via API (204).")
	return nil
}

func runAddItems(cmd *cobra.Command, args []string) error {
	if _, err := addDemoItems(cmd.Context(), newClient(), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("add-items failed: %w", err)
	}
	return nil
}

func runDeleteRandom(cmd *cobra.Command, args []string) error {
	if err := deleteRandomItem(cmd.Context(), newClient(), cmd.OutOrStdout(), randomIndex); err != nil {
		return fmt.Errorf("delete-random failed: %w", err)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := writeReport(cmd.Context(), newClient(), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to build item report: %w", err)
	}
	return nil
}

func runRegressionCmd(cmd *cobra.Command, args []string) error {
	return runRegression(cmd.Context(), newClient(), cmd.OutOrStdout())
}
