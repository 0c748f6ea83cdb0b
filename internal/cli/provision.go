package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/legacyid/internal/config"
)

// ProvisionOptions holds flags for the provision command.
type ProvisionOptions struct {
	*RootOptions
	Name      string
	Start     int64
	BlockSize int64
}

// ProvisionResult reports what provisioning did for one sequence.
type ProvisionResult struct {
	Name      string `json:"name"`
	Start     int64  `json:"start"`
	BlockSize int64  `json:"block_size"`
	Created   bool   `json:"created"`
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProvisionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create counter rows for configured sequences",
		Long: `Create the counter table and one counter row per configured sequence.

Existing rows are left untouched: provisioning is safe to re-run and never
moves a sequence backwards. Use --name to provision a single sequence
without a config file.

Example:
  legacyid provision --config sequences.yaml
  legacyid provision --db ./legacy.db --name review_id_seq --start 500 --block-size 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "provision only this sequence")
	cmd.Flags().Int64Var(&opts.Start, "start", 1, "first identifier of the sequence (with --name)")
	cmd.Flags().Int64Var(&opts.BlockSize, "block-size", 100, "identifiers reserved per refill (with --name)")

	return cmd
}

func runProvision(opts *ProvisionOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	seeds := cfg.Sequences
	if opts.Name != "" {
		single := &config.Config{
			Store:     cfg.Store,
			Sequences: []config.SequenceConfig{{Name: opts.Name, Start: opts.Start, BlockSize: opts.BlockSize}},
		}
		if err := single.Validate(); err != nil {
			return WrapExitError(ExitCommandError, "invalid sequence", err)
		}
		seeds = single.Sequences
	}
	if len(seeds) == 0 {
		return NewExitError(ExitCommandError, "no sequences to provision: use --config or --name")
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to create counter table", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]ProvisionResult, 0, len(seeds))
	for _, seed := range seeds {
		created, err := st.Provision(ctx, seed.Counter())
		if err != nil {
			return WrapExitError(ExitFailure, "provisioning failed", err)
		}
		slog.Info("sequence provisioned", "sequence", seed.Name, "created", created)
		if !created {
			formatter.VerboseLog("%s: row already present, seed start %d left unapplied", seed.Name, seed.Start)
		}
		results = append(results, ProvisionResult{
			Name:      seed.Name,
			Start:     seed.Start,
			BlockSize: seed.BlockSize,
			Created:   created,
		})
	}

	if opts.Format == "json" {
		return formatter.Success(results)
	}
	for _, r := range results {
		status := "exists"
		if r.Created {
			status = "created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Name, status)
	}
	return nil
}
