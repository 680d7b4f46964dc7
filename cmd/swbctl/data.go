package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	swb "github.com/haxdai/SWBPlatform-sub000"
	"github.com/haxdai/SWBPlatform-sub000/internal/platform"
	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/spf13/cobra"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <model> <file-or-dir>...",
		Short: "Import rdf files into a model",
		Long: `Import rdf files into a configured model.

Directories contribute all N-Quads (.nq), N-Triples (.nt) and Turtle (.ttl) files they contain.
Importing into the admin model reloads the ontology.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := swb.FindSources(args[1:]...)
			if err != nil {
				return err
			}

			p, err := rootOpts.open(cmd.Context(), rootOpts.status(cmd))
			if err != nil {
				return err
			}
			defer p.Close()

			total := 0
			for _, source := range sources {
				count, err := importSource(cmd.Context(), p, args[0], source)
				if err != nil {
					return err
				}
				total += count
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d statement(s) into %q\n", total, args[0])
			return nil
		},
	}
	return cmd
}

func importSource(ctx context.Context, p *platform.Platform, model string, source swb.Source) (int, error) {
	file, err := os.Open(source.Path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count, err := p.Import(ctx, model, file, source.Format)
	if err != nil {
		return count, fmt.Errorf("failed to import %q: %w", source.Path, err)
	}
	return count, nil
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var formatName, output string

	cmd := &cobra.Command{
		Use:   "export <model>",
		Short: "Export the statements of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := rdf.ParseFormat(formatName)
			if err != nil {
				return err
			}

			p, err := rootOpts.open(cmd.Context(), rootOpts.status(cmd))
			if err != nil {
				return err
			}
			defer p.Close()

			if output == "" {
				return p.Export(cmd.Context(), args[0], cmd.OutOrStdout(), format)
			}

			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := p.Export(cmd.Context(), args[0], file, format); err != nil {
				file.Close()
				return err
			}
			return file.Close()
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(rdf.NQuads), "output format (nquads|ntriples|turtle)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to the given file instead of standard output")

	return cmd
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	var lang string
	var instances string

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List the classes of the ontology",
		Long: `List the classes declared in the admin model.

With --instances, the number of (inferred) instances of each class in the given model is shown as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := rootOpts.open(ctx, rootOpts.status(cmd))
			if err != nil {
				return err
			}
			defer p.Close()

			model, ok := p.Model(instances)
			if instances != "" && !ok {
				return fmt.Errorf("%w: %q", platform.ErrUnknownModel, instances)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, class := range p.Ontology.Classes() {
				if model == nil {
					fmt.Fprintf(w, "%s\t%s\n", class.URI, class.Label(lang))
					continue
				}

				objects, err := model.Instances(ctx, class.URI, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%d\n", class.URI, class.Label(lang), len(objects))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "en", "preferred language of labels")
	cmd.Flags().StringVar(&instances, "instances", "", "count instances in the given model")

	return cmd
}
