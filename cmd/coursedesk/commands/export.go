package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coursedesk/internal/roster"
)

func exportCmd() *cobra.Command {
	var (
		ids []string
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the roster as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := roster.Open(cfg.Roster)
			if err != nil {
				return err
			}
			students, err := src.Students(cmd.Context())
			if err != nil {
				return fmt.Errorf("load roster: %w", err)
			}

			panel := roster.NewPanel(students)
			for _, id := range ids {
				if _, err := panel.Toggle(id); err != nil {
					return fmt.Errorf("%w: %s", err, id)
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			_, err = io.WriteString(w, panel.Export()+"\n")
			return err
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "student ids to export (default all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
