package cli

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/legacyid/internal/config"
	"github.com/roach88/legacyid/internal/sequence"
)

// NextOptions holds flags for the next command.
type NextOptions struct {
	*RootOptions
	Count   int
	Retries uint64
	Workers int
}

// NextResult is the JSON payload of the next command.
type NextResult struct {
	Sequence string  `json:"sequence"`
	IDs      []int64 `json:"ids"`
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NextOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "next <sequence>",
		Short: "Allocate identifiers from a sequence",
		Long: `Allocate identifiers from a provisioned sequence and print them.

Identifiers are taken through one allocator, so --count N reserves at most
ceil(N / block_size) blocks. With --workers the requests are issued
concurrently; the printed identifiers are sorted.

Example:
  legacyid next review_id_seq --db ./legacy.db
  legacyid next review_id_seq --count 50 --workers 4 --retries 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(opts, config.NormalizeName(args[0]), cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of identifiers to allocate")
	cmd.Flags().Uint64Var(&opts.Retries, "retries", 0, "retries per identifier after a failed refill transaction")
	cmd.Flags().IntVar(&opts.Workers, "workers", 1, "concurrent callers")

	return cmd
}

func runNext(opts *NextOptions, name string, cmd *cobra.Command) error {
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--count must be >= 1, got %d", opts.Count))
	}
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--workers must be >= 1, got %d", opts.Workers))
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
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

	registry := sequence.NewRegistry(st)
	alloc := registry.Allocator(name)
	ids, err := allocate(ctx, alloc, opts.Count, opts.Workers, opts.Retries)
	if err != nil {
		return WrapAllocationError(fmt.Sprintf("allocation from %q failed", name), err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	next, available := alloc.State()
	formatter.VerboseLog("%s: next id %d, %d left in held block (forfeited on exit)", name, next, available)
	if opts.Format == "json" {
		return formatter.Success(NextResult{Sequence: name, IDs: ids})
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

// allocate draws count identifiers from src using workers concurrent
// callers and returns them sorted.
func allocate(ctx context.Context, src sequence.IDSource, count, workers int, retries uint64) ([]int64, error) {
	if workers > count {
		workers = count
	}

	var (
		mu  sync.Mutex
		ids = make([]int64, 0, count)
	)
	jobs := make(chan struct{}, count)
	for i := 0; i < count; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for range jobs {
				id, err := sequence.NextIDWithRetry(ctx, src, sequence.NewRetryPolicy(retries))
				if err != nil {
					return err
				}
				mu.Lock()
				ids = append(ids, id)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
