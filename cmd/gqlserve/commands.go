package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	persons "github.com/hanpama/gqlserve/internal/persons"
	schema "github.com/hanpama/gqlserve/internal/schema"
	server "github.com/hanpama/gqlserve/internal/server"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the served schema as SDL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), schema.Render(persons.Schema()))
			return err
		},
	}
}

func newQueryCmd() *cobra.Command {
	var variables, operation string
	cmd := &cobra.Command{
		Use:   "query <document>",
		Short: "Execute a GraphQL document without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			req, err := server.FromQueryString(url.Values{
				"query":         {args[0]},
				"variables":     {variables},
				"operationName": {operation},
			})
			if err != nil {
				return err
			}

			exec, err := newExecutor(cfg)
			if err != nil {
				return err
			}
			defer exec.Close()

			res := exec.Execute(cmd.Context(), req.Params())
			enc := json.NewEncoder(cmd.OutOrStdout())
			if cfg.Server.Pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&variables, "variables", "", "Variables as a JSON object.")
	cmd.Flags().StringVar(&operation, "operation", "", "Name of the operation to run.")
	return cmd
}
