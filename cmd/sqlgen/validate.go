package main

import (
	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/asaidimu/go-sqlgate/core/security"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type validateReport struct {
	Valid  bool     `json:"valid"`
	Depth  int      `json:"depth"`
	Fields []string `json:"fields,omitempty"`
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [filter.json|-]",
		Short: "Check a user filter against the configured policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			expr, err := query.ParseFilter(data)
			if err != nil {
				return err
			}
			policy, err := security.NewFilterValidatorFromConfig(a.cfg.Policy)
			if err != nil {
				return err
			}
			if err := policy.Validate(expr); err != nil {
				a.logger.Warn("Filter rejected", zap.Error(err))
				return err
			}
			return writeJSON(cmd, validateReport{Valid: true, Depth: expr.Depth(), Fields: expr.Fields()})
		},
	}
}
