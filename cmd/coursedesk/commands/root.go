package commands

import (
	"errors"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coursedesk/internal/config"
	"github.com/JonMunkholm/coursedesk/internal/logging"
)

// errInvalid is returned after the validation errors have been printed.
var errInvalid = errors.New("csv is invalid")

// cfg is loaded before any subcommand runs.
var cfg *config.Config

// Execute runs the root command against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coursedesk",
		Short:        "Course roster and CSV import tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; the environment still applies.
			_ = godotenv.Load()

			c, err := config.Load()
			if err != nil {
				return err
			}
			cfg = c
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))
			return nil
		},
	}

	root.AddCommand(validateCmd(), importCmd(), exportCmd(), migrateCmd())
	return root
}
