package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/coursedesk/internal/importer"
)

// mappingFlags override the auto-mapped headers.
type mappingFlags struct {
	name, email, course string
}

func (f *mappingFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "header holding the student name")
	cmd.Flags().StringVar(&f.email, "email", "", "header holding the email")
	cmd.Flags().StringVar(&f.course, "course", "", "header holding the course")
}

func (f *mappingFlags) apply(m importer.Mapping) importer.Mapping {
	if f.name != "" {
		m.Name = f.name
	}
	if f.email != "" {
		m.Email = f.email
	}
	if f.course != "" {
		m.Course = f.course
	}
	return m
}

func validateCmd() *cobra.Command {
	var flags mappingFlags
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a roster CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, mapping, errs, err := check(args[0], cfg.Import.MaxFileSize, &flags)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printMapping(out, mapping)
			if len(errs) > 0 {
				printErrors(out, errs)
				return errInvalid
			}
			fmt.Fprintf(out, "Ready to import %d rows\n", len(doc.Rows))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// check parses path, maps its headers and validates. An empty file is not
// an error: it comes back as the single "Empty CSV file" message.
func check(path string, maxBytes int64, flags *mappingFlags) (*importer.Document, importer.Mapping, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, importer.Mapping{}, nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	doc, err := importer.ParseReader(f, maxBytes)
	if errors.Is(err, importer.ErrEmptyDocument) {
		return nil, importer.Mapping{}, []string{importer.MsgEmptyFile}, nil
	}
	if err != nil {
		return nil, importer.Mapping{}, nil, err
	}

	mapping := flags.apply(importer.AutoMap(doc.Headers))
	return doc, mapping, importer.Check(doc, mapping), nil
}

func printMapping(w io.Writer, m importer.Mapping) {
	for _, f := range importer.Fields {
		fmt.Fprintf(w, "%-7s -> %s\n", f.Label(), m.Get(f))
	}
}

func printErrors(w io.Writer, errs []string) {
	fmt.Fprintf(w, "%d problem(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
