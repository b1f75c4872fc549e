package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/core/guard"
	"github.com/0xSaurabhSharma/code-correction-agent/core/history"
	"github.com/0xSaurabhSharma/code-correction-agent/core/types"
	"github.com/0xSaurabhSharma/code-correction-agent/pkg/client"
	"github.com/0xSaurabhSharma/code-correction-agent/services"
	"github.com/spf13/cobra"
)

var errNotHealthy = errors.New("function is not healthy")

func newRunCmd() *cobra.Command {
	var (
		file    string
		rawArgs string
		name    string
		server  string
		apiKey  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Go function from a file and repair it if it fails",
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read function: %w", err)
			}

			var args []any
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return fmt.Errorf("parse --args as a JSON array: %w", err)
			}

			ctx := cmd.Context()
			if server != "" {
				c := client.NewClient(server, apiKey, 0)
				state, runErr := c.RunAgent(ctx, string(source), args)
				if state != nil {
					if err := printState(cmd, state); err != nil {
						return err
					}
				}
				if runErr != nil {
					return runErr
				}
				if state.Status != types.StatusHealthy {
					return errNotHealthy
				}
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			rt, err := services.New(ctx, cfg)
			if err != nil {
				return err
			}

			if err := rt.Guard.Check(ctx, string(source)); err != nil {
				if errors.Is(err, guard.ErrUnsafe) {
					return fmt.Errorf("refusing to run %s: %w", file, err)
				}
				return err
			}

			var impl types.Implementation
			if name != "" {
				impl, err = rt.Sandbox.CompileNamed(ctx, string(source), name)
			} else {
				impl, err = rt.Sandbox.Compile(ctx, string(source))
			}
			if err != nil {
				return fmt.Errorf("compile %s: %w", file, err)
			}

			started := time.Now()
			state, runErr := rt.Workflow.Run(ctx, impl, string(source), args)
			if err := rt.History.Save(history.NewRecord(state, string(source), started)); err != nil {
				return err
			}

			if err := printState(cmd, state); err != nil {
				return err
			}

			if runErr != nil {
				return runErr
			}
			if state.Status != types.StatusHealthy {
				return errNotHealthy
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Go source file holding the function")
	cmd.Flags().StringVarP(&rawArgs, "args", "a", "[]", "Arguments as a JSON array")
	cmd.Flags().StringVarP(&name, "func", "n", "", "Function to run (defaults to the first one in the file)")
	cmd.Flags().StringVar(&server, "server", "", "Submit the run to a heal server at this URL instead of running locally")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("HEAL_API_KEY"), "API key for --server")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func printState(cmd *cobra.Command, state *types.RepairState) error {
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
