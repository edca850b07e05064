package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-sqlgate/core/query"
	"github.com/spf13/cobra"
)

func (a *app) cursorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Encode or decode pagination cursors",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encode name=value...",
		Short: "Encode sort-key values into a cursor token",
		Long: `Encode builds a cursor from name=value pairs in sort order. A value that
parses as JSON (10, 1.5, true, null, "quoted") keeps its type; anything else
is a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCursorArgs(args)
			if err != nil {
				return err
			}
			token, err := a.cfg.CursorCodec().Encode(c)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decode token",
		Short: "Decode and verify a cursor token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.cfg.CursorCodec().Decode(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, c)
		},
	})
	return cmd
}

func parseCursorArgs(args []string) (query.Cursor, error) {
	c := query.NewCursor()
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return query.Cursor{}, fmt.Errorf("expected name=value, got %q", arg)
		}
		if _, exists := c.Get(name); exists {
			return query.Cursor{}, fmt.Errorf("field %q given twice", name)
		}
		var v query.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = query.String(raw)
		}
		c = c.With(name, v)
	}
	return c, nil
}
