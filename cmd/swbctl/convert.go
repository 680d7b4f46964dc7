package main

import (
	"fmt"
	"os"

	"github.com/haxdai/SWBPlatform-sub000/internal/rdf"
	"github.com/haxdai/SWBPlatform-sub000/internal/status"
	"github.com/spf13/cobra"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to, graph string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between rdf formats",
		Long: `Convert an rdf file into another format.

Formats are guessed from the file extensions unless given explicitly.
Converting into a triple format drops graph names.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inFormat, err := formatOf(from, args[0])
			if err != nil {
				return err
			}
			outFormat, err := formatOf(to, args[1])
			if err != nil {
				return err
			}

			st := rootOpts.status(cmd)

			var count int
			err = st.DoStage(status.StageConvert, func() error {
				count, err = convert(args[0], inFormat, args[1], outFormat, graph, st.Rewritable())
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "converted %d statement(s)\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "input format (nquads|ntriples|turtle)")
	cmd.Flags().StringVar(&to, "to", "", "output format (nquads|ntriples|turtle)")
	cmd.Flags().StringVar(&graph, "graph", "", "graph to place statements without a graph into")

	return cmd
}

func formatOf(name, path string) (rdf.Format, error) {
	if name != "" {
		return rdf.ParseFormat(name)
	}
	return rdf.FormatFromPath(path)
}

// convert streams statements from input to output
func convert(input string, inFormat rdf.Format, output string, outFormat rdf.Format, graph string, progress *status.Rewritable) (count int, err error) {
	in, err := os.Open(input)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	encoder, err := rdf.NewEncoder(out, outFormat)
	if err != nil {
		return 0, err
	}

	reader := &status.Reader{Reader: in, Progress: progress}
	err = rdf.Decode(reader, inFormat, graph, func(stmt rdf.Statement) error {
		count++
		return encoder.Encode(stmt)
	})
	if err != nil {
		encoder.Close()
		return count, err
	}
	return count, encoder.Close()
}
