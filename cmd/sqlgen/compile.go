package main

import (
	"fmt"

	"github.com/asaidimu/go-sqlgate/core/compiler"
	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) compileCmd() *cobra.Command {
	var (
		trusted []string
		format  string
	)
	cmd := &cobra.Command{
		Use:   "compile [document.json|-]",
		Short: "Compile a query document",
		Long: `Compile reads a query document and prints the SQL and its parameters.
The document's filter is untrusted and must pass the configured policy.
Each --trusted filter is ANDed above it without being checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("unknown format %q", format)
			}
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			scopes := make([]query.FilterExpr, 0, len(trusted))
			for i, raw := range trusted {
				expr, err := query.ParseFilterString(raw)
				if err != nil {
					return fmt.Errorf("trusted filter %d: %w", i, err)
				}
				scopes = append(scopes, expr)
			}

			opts, err := a.cfg.CompilerOptions(a.logger)
			if err != nil {
				return err
			}
			c, err := compiler.New(opts)
			if err != nil {
				return err
			}
			res, err := c.CompileJSON(data, scopes...)
			if err != nil {
				return err
			}
			a.logger.Debug("Compiled document", zap.Int("trusted", len(scopes)))

			if format == "text" {
				fmt.Fprintln(cmd.OutOrStdout(), res.SQL)
				for i, p := range res.Params {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, p)
				}
				return nil
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().StringArrayVar(&trusted, "trusted", nil, "trusted filter document, repeatable")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or text")
	return cmd
}
