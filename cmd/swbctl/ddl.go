package main

import (
	"fmt"
	"strings"

	"github.com/haxdai/SWBPlatform-sub000/internal/ddl"
	"github.com/spf13/cobra"
)

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	var schemaPath string
	var drop, list bool

	cmd := &cobra.Command{
		Use:   "ddl [dialect]",
		Short: "Print the statements creating the store schema",
		Long: `Print the DDL statements that create (or with --drop, remove) the tables
of a relational store in the given dialect.

The builtin schema is used unless --schema names an XML schema descriptor.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema := ddl.Default()
			if schemaPath != "" {
				var err error
				if schema, err = ddl.ParseFile(schemaPath); err != nil {
					return err
				}
			}

			gen, err := ddl.New(schema)
			if err != nil {
				return err
			}

			if list || len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(gen.Dialects(), "\n"))
				return nil
			}

			var stmts []string
			if drop {
				stmts, err = gen.Drop(args[0])
			} else {
				stmts, err = gen.Create(args[0])
			}
			if err != nil {
				return err
			}
			for _, stmt := range stmts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "path to an XML schema descriptor")
	cmd.Flags().BoolVar(&drop, "drop", false, "print statements removing the schema instead")
	cmd.Flags().BoolVar(&list, "list", false, "list known dialects")

	return cmd
}
