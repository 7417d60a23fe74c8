package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coursedesk/internal/importer"
)

func importCmd() *cobra.Command {
	var (
		flags mappingFlags
		tick  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a roster CSV and run the simulated import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, _, errs, err := check(args[0], cfg.Import.MaxFileSize, &flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(errs) > 0 {
				printErrors(out, errs)
				return errInvalid
			}

			if tick <= 0 {
				tick = cfg.Import.TickInterval
			}
			outcome := importer.Outcome(importer.AlwaysSucceed)
			if cfg.Import.FailEvery > 0 {
				outcome = importer.EveryNth(cfg.Import.FailEvery)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("import started", "file", args[0], "rows", len(doc.Rows))
			run := importer.StartRun(ctx, doc.Rows, tick, outcome)
			for st := range run.Subscribe() {
				printProgress(out, st)
			}

			// Snapshots can be dropped; the final state is authoritative.
			final, _ := run.Wait(context.Background())
			printProgress(out, final)
			fmt.Fprintf(out, "\n%s\n", final.Summary())
			slog.Info("import finished", "state", final.State, "succeeded", final.Succeeded, "failed", final.Failed)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&tick, "tick", 0, "delay between rows (default IMPORT_TICK_INTERVAL)")
	return cmd
}

func printProgress(w io.Writer, st importer.RunState) {
	fmt.Fprintf(w, "\r%3d%% (%d/%d)", st.Percent(), st.Processed, st.Total)
}
