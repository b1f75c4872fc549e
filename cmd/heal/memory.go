package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/0xSaurabhSharma/code-correction-agent/core/memory"
	"github.com/0xSaurabhSharma/code-correction-agent/services"
	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the bug report memory",
	}
	cmd.AddCommand(
		newMemorySearchCmd(),
		newMemoryResetCmd(),
	)
	return cmd
}

func newMemoryResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored bug report memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete every memory without --yes")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := services.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			r, ok := rt.Memory.(memory.Resetter)
			if !ok {
				return errors.New("memory store is not available")
			}
			if err := r.Reset(); err != nil {
				return fmt.Errorf("reset memory: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "memory cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting every memory")

	return cmd
}

func newMemorySearchCmd() *cobra.Command {
	var (
		k          int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find the memories closest to a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			rt, err := services.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if rt.Memory == nil {
				return errors.New("memory store is not available")
			}

			matches, err := rt.Memory.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}

			if jsonOutput {
				b, err := json.MarshalIndent(matches, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal json: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			for _, m := range matches {
				marker := " "
				if m.Distance < cfg.Memory.DistanceThreshold {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %.4f  %s  %s\n", marker, m.Distance, m.ID, m.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", memory.DefaultSearchLimit, "Number of matches")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output matches as JSON")

	return cmd
}
