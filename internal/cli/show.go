package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/legacyid/internal/config"
	"github.com/roach88/legacyid/internal/sequence"
	"github.com/roach88/legacyid/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
}

// CounterView is the JSON form of a counter row.
type CounterView struct {
	Name           string `json:"name"`
	NextBlockStart int64  `json:"next_block_start"`
	BlockSize      int64  `json:"block_size"`
	Reservations   int64  `json:"reservations"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [sequence]",
		Short: "Show counter rows",
		Long: `Show the committed counter rows: the next unreserved identifier, the
block size and how many blocks have been reserved so far.

Example:
  legacyid show --db ./legacy.db
  legacyid show review_id_seq --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = config.NormalizeName(args[0])
			}
			return runShow(opts, name, cmd)
		},
	}

	return cmd
}

func runShow(opts *ShowOptions, name string, cmd *cobra.Command) error {
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

	var rows []store.CounterRow
	if name != "" {
		row, err := st.Get(ctx, name)
		if errors.Is(err, sequence.ErrSequenceNotFound) {
			return WrapExitError(ExitConfigError, fmt.Sprintf("cannot show %q", name), &sequence.Error{
				Code:     sequence.ErrCodeNotProvisioned,
				Sequence: name,
				Message:  "no counter row for sequence",
				Err:      err,
			})
		}
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("cannot show %q", name), err)
		}
		rows = []store.CounterRow{row}
	} else {
		rows, err = st.List(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to list counters", err)
		}
	}

	views := make([]CounterView, 0, len(rows))
	for _, r := range rows {
		views = append(views, CounterView{
			Name:           r.Name,
			NextBlockStart: r.NextBlockStart,
			BlockSize:      r.BlockSize,
			Reservations:   r.Advances,
		})
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(views)
	}
	return writeCounterTable(cmd.OutOrStdout(), views)
}

func writeCounterTable(w io.Writer, views []CounterView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNEXT_BLOCK_START\tBLOCK_SIZE\tRESERVATIONS")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", v.Name, v.NextBlockStart, v.BlockSize, v.Reservations)
	}
	return tw.Flush()
}
