package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/flowkit"
)

// RoutesOptions holds flags for the routes command.
type RoutesOptions struct {
	*RootOptions
	Format string
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RoutesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List registered routes",
		Long: `List the routes of the application in registration order.

The text format prints method, pattern and operation id. The json and yaml
formats include summaries, tags, hook counts and declared schemas.

Example:
  flowkit routes --format yaml`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if !isValidFormat(opts.Format) {
				return invalidFormat(opts.Format)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listRoutes(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "text", "output format (text|json|yaml)")

	return cmd
}

func listRoutes(cmd *cobra.Command, opts *RoutesOptions) error {
	app, cleanup, err := opts.Load(cmd.Context(), opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer cleanup()

	return writeRoutes(cmd.OutOrStdout(), opts.Format, app.Routes())
}

func writeRoutes(w io.Writer, format string, routes []flowkit.RouteInfo) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(routes)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(routes); err != nil {
			return err
		}
		return enc.Close()
	}

	methodWidth, patternWidth := len("METHOD"), len("PATTERN")
	for _, r := range routes {
		methodWidth = max(methodWidth, len(r.Method))
		patternWidth = max(patternWidth, len(r.Pattern))
	}
	line := func(method, pattern, id string) error {
		_, err := fmt.Fprintf(w, "%-*s  %-*s  %s\n", methodWidth, method, patternWidth, pattern, id)
		return err
	}
	if err := line("METHOD", "PATTERN", "OPERATION"); err != nil {
		return err
	}
	for _, r := range routes {
		if err := line(r.Method, r.Pattern, r.OperationID); err != nil {
			return err
		}
	}
	return nil
}
