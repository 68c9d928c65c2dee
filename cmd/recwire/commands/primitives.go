package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newPrimitivesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "primitives <file>",
		Short: "List recorder actions and conditions used by automations",
		Long: `Compile a document and list the recorder actions and conditions its
automations use, with the recorder each one is bound to.

Both recorder hooks and the top-level automations section are scanned.`,
		Example: `  # List primitives as a table
  recwire primitives device.yaml

  # List primitives as JSON
  recwire primitives device.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			doc, err := loadDocument(ctx, args[0])
			if err != nil {
				return err
			}

			s, err := newSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.compile(ctx, doc)
			if err != nil {
				return err
			}

			log.Debug().Int("primitives", len(res.Primitives)).Msg("Primitives built")

			if format != "" {
				out, err := formatFor(format, "")
				if err != nil {
					return err
				}
				if err := encode(os.Stdout, out, res.Primitives); err != nil {
					return err
				}
			} else {
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KIND\tCLASS\tRECORDER\tTYPE")
				for _, p := range res.Primitives {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Kind, p.Class(), p.ParentID, p.Type)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			printFailures(os.Stderr, res)
			return resultError(res)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: json or yaml (default table)")

	return cmd
}
