package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/keystone/internal/presentation"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace:path>",
		Short: "Show one catalog item",
		Long: `Show one item with its labels, properties, and relations.

Examples:
  keystone get core:fire
  keystone get nature:trees/oak -o json | jq '.relations'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.load(cmd)
			if err != nil {
				return err
			}
			it, err := cat.Resolve(args[0])
			if err != nil {
				return err
			}

			formatter, err := a.formatter(cmd)
			if err != nil {
				return err
			}
			return formatter.FormatItem(presentation.FromItem(it))
		},
	}
}
