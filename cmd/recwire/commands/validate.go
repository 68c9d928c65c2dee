package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/recwire/pkg/compiler"
	"github.com/openfroyo/recwire/pkg/engine"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate recorder declarations",
		Long: `Validate every audio recorder declaration in a document.

This command checks:
  - Document shape (CUE schema)
  - Field types, units and ranges
  - Unknown and missing keys
  - Mutually exclusive outputs
  - Duplicate IDs

References are not resolved; use 'compile' for that.`,
		Example: `  # Validate a YAML document
  recwire validate device.yaml

  # Validate a Starlark document with debug logging
  recwire validate --log-level debug device.star`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			log.Info().Str("path", path).Msg("Validating document")

			doc, err := loadDocument(ctx, path)
			if err != nil {
				return err
			}

			c := compiler.New(compiler.Options{}, log.Logger, compiler.WithTelemetry(tel))
			res, err := c.Validate(ctx, doc)
			if err != nil {
				return err
			}

			for _, comp := range res.Components {
				if comp.State == engine.ComponentStateFailed {
					continue
				}
				fmt.Fprintf(os.Stdout, "  ✓ %s\n", comp.ID)
			}
			printFailures(os.Stdout, res)

			if err := resultError(res); err != nil {
				return err
			}
			fmt.Printf("%d recorder(s) valid\n", len(res.Components))
			return nil
		},
	}

	return cmd
}
