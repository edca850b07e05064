package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-sqlgate/core/security"
	"github.com/asaidimu/go-sqlgate/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries state shared by the subcommands once flags are parsed.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "sqlgen",
		Short:         "Compile JSON query documents into parameterized SQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := cfg.Logger()
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "configuration file (yaml, json or toml)")
	pf.String("dialect", "postgres", "SQL dialect: postgres or sqlite")
	pf.String("log-level", "info", "log level")
	pf.Bool("quote-identifiers", false, "quote every identifier")
	pf.String("cursor-secret", "", "secret used to sign cursor tokens")
	pf.StringSlice("allow-fields", nil, "fields user filters may reference (empty allows all)")
	pf.StringSlice("deny-operators", nil, "operators user filters may not use")
	pf.Int("max-depth", security.DefaultMaxDepth, "maximum logical nesting of user filters")

	root.AddCommand(a.compileCmd(), a.validateCmd(), a.cursorCmd())
	return root
}

// readInput returns the contents of the named file, or stdin for "" or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return data, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
