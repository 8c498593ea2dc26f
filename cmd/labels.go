package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zjrosen/keystone/internal/presentation"
)

func newLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "List labels with item counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.load(cmd)
			if err != nil {
				return err
			}
			formatter, err := a.formatter(cmd)
			if err != nil {
				return err
			}
			return formatter.FormatLabels(presentation.FromLabels(cat))
		},
	}
}
