package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semwebtools/rdfproxy/pkg/config"
	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/fetch"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// newConvertCmd creates the convert command for one-shot local
// conversions.
func newConvertCmd(configPath *string) *cobra.Command {
	var (
		to     string
		from   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "convert <file-or-url>",
		Short: "Convert one RDF document to another serialization",
		Long: `Convert reads a local file or downloads a URL, identifies its
serialization, and converts it through the same planner the proxy uses.
The result goes to --output or stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			reg, resolver := newResolver(cfg)

			target, err := lookupFormat(reg, to)
			if err != nil {
				return err
			}

			input := args[0]
			payload, name, declared, err := readInput(ctx, cfg, input)
			if err != nil {
				return err
			}

			var source format.Format
			if from != "" {
				if source, err = lookupFormat(reg, from); err != nil {
					return err
				}
			} else {
				var ok bool
				if source, ok = reg.Identify(payload, name, declared); !ok {
					return errors.New(errors.ErrCodeUnknownFormat,
						"cannot identify the format of %s; use --from", input)
				}
			}
			logger.Debug("identified source", "format", source.ID)

			path, err := resolver.Resolve(source, target)
			if err != nil {
				return err
			}
			logger.Debug("planned path", "path", path.String())

			sp := newSpinner(ctx, fmt.Sprintf("converting %s to %s", source.Name, target.Name))
			sp.Start()
			result, err := resolver.Execute(ctx, path, payload)
			if err != nil {
				sp.StopWithError(fmt.Sprintf("conversion failed: %s", errors.UserMessage(err)))
				return err
			}
			sp.Stop()

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(result)
				return err
			}
			if err := os.WriteFile(output, result, 0o644); err != nil {
				return err
			}
			printSuccess("converted %s (%s %s %s)", input, source.ID, iconArrow, target.ID)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", format.Turtle, "target format id or media type")
	cmd.Flags().StringVar(&from, "from", "", "source format override (skip identification)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file ('-' for stdout)")

	return cmd
}

// lookupFormat resolves a format id or media type string.
func lookupFormat(reg *format.Registry, s string) (format.Format, error) {
	if f, ok := reg.Lookup(s); ok {
		return f, nil
	}
	if f, ok := reg.ByMediaType(s); ok {
		return f, nil
	}
	var ids []string
	for _, f := range reg.All() {
		ids = append(ids, f.ID)
	}
	return format.Format{}, errors.New(errors.ErrCodeUnknownFormat,
		"unknown format %q: want one of %s", s, strings.Join(ids, ", "))
}

// readInput loads the document from a file or URL and returns the
// payload with its identification signals.
func readInput(ctx context.Context, cfg config.Config, input string) ([]byte, string, string, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		f := fetch.NewFetcher(fetch.Options{
			Attempts:    cfg.Fetch.Attempts,
			MaxBodySize: cfg.Fetch.MaxBodySize,
			UserAgent:   cfg.Fetch.UserAgent,
		})
		doc, err := f.Fetch(ctx, input, "")
		if err != nil {
			return nil, "", "", err
		}
		return doc.Body, doc.FileName, doc.MediaType, nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, "", "", errors.Wrap(errors.ErrCodeInvalidInput, err, "reading %s", input)
	}
	return data, filepath.Base(input), "", nil
}
