package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/abteilung-service/internal/api/graphql"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the GraphQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return graphql.WriteSchema(cmd.OutOrStdout())
		},
	}
}
