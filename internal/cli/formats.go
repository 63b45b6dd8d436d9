package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/semwebtools/rdfproxy/pkg/convert"
	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// newFormatsCmd creates the formats command, which inspects the format
// catalogue and the conversion graph.
func newFormatsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the supported RDF serializations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			reg, resolver := newResolver(cfg)

			fmt.Println(StyleTitle.Render("Formats"))
			for _, f := range reg.All() {
				var notes []string
				if !f.MachineReadable {
					notes = append(notes, "rendering only")
				}
				if f.Has(format.CapNativeRead | format.CapNativeWrite) {
					notes = append(notes, "native")
				}
				line := fmt.Sprintf("%-10s %-24s .%s", f.ID, f.MediaType, f.Ext())
				if len(notes) > 0 {
					line += "  " + StyleDim.Render(strings.Join(notes, ", "))
				}
				fmt.Println("  " + line)
			}

			fmt.Println()
			fmt.Println(StyleTitle.Render("Backends"))
			for _, b := range convert.DefaultBackends(convert.ToolOptions{
				Dir:     cfg.Tools.Dir,
				Timeout: cfg.Tools.Timeout.Std(),
			}) {
				status := styleMissing.Render("not found")
				if b.Available() {
					status = styleAvailable.Render("available")
				}
				fmt.Printf("  %-14s %s\n", b.Name(), status)
			}

			if err := resolver.Validate(); err != nil {
				fmt.Println()
				printWarning("%s", errors.UserMessage(err))
			}
			return nil
		},
	}

	cmd.AddCommand(newFormatsGraphCmd(configPath))
	return cmd
}

// newFormatsGraphCmd creates the "formats graph" subcommand, which
// renders the conversion graph.
func newFormatsGraphCmd(configPath *string) *cobra.Command {
	var (
		outFormat string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the conversion graph",
		Long: `Graph writes the conversion graph of the available backends as DOT or
as an SVG rendered with Graphviz. Edges are labeled with the backend and
its planning cost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			_, resolver := newResolver(cfg)

			dot := conversionDOT(resolver)

			var result []byte
			switch outFormat {
			case "dot":
				result = []byte(dot)
			case "svg":
				if result, err = renderSVG(cmd.Context(), dot); err != nil {
					return err
				}
			default:
				return errors.New(errors.ErrCodeInvalidInput, "invalid graph format %q: want dot or svg", outFormat)
			}

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(result)
				return err
			}
			if err := os.WriteFile(output, result, 0o644); err != nil {
				return err
			}
			printSuccess("wrote conversion graph")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&outFormat, "format", "dot", "output format: dot or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file ('-' for stdout)")

	return cmd
}

// conversionDOT renders the resolver's edges as a Graphviz digraph.
func conversionDOT(r *convert.Resolver) string {
	var buf bytes.Buffer
	buf.WriteString("digraph conversions {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n\n")

	seen := map[string]bool{}
	for _, e := range r.Edges() {
		for _, id := range []string{e.From, e.To} {
			if !seen[id] {
				seen[id] = true
				fmt.Fprintf(&buf, "  %q;\n", id)
			}
		}
	}
	buf.WriteString("\n")
	for _, e := range r.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q [label=\"%s (%d)\"];\n", e.From, e.To, e.Backend, e.Cost)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// renderSVG renders a DOT graph to SVG using Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "initializing graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parsing DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "rendering SVG")
	}
	return buf.Bytes(), nil
}
