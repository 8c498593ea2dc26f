package cmd

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/zjrosen/keystone/internal/catalog"
	"github.com/zjrosen/keystone/internal/presentation"
)

func newListCmd(a *app) *cobra.Command {
	var (
		namespace string
		labels    []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		Long: `List catalog items in load order.

Use --namespace to filter items by namespace.
Use --label to filter by labels (repeatable, AND logic).

Examples:
  # List all items
  keystone list

  # Filter by namespace
  keystone list --namespace core
  keystone list -n core

  # Filter by multiple labels (must match ALL)
  keystone list -l element -l hot

  # Combine namespace and label filters
  keystone list -n nature -l element

  # Parse specific fields with jq
  keystone list -o json | jq '.[].key'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.load(cmd)
			if err != nil {
				return err
			}

			var items []*catalog.Item
			switch {
			case cmd.Flags().Changed("namespace"):
				items = filterByLabels(cat.ByNamespace(namespace), labels)
			case len(labels) > 0:
				items = cat.ByLabels(labels...)
			default:
				items = slices.Collect(cat.Items())
			}

			formatter, err := a.formatter(cmd)
			if err != nil {
				return err
			}
			return formatter.FormatItems(presentation.FromItems(items))
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Filter by namespace (e.g., core)")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "Filter by label (can be repeated, e.g., --label element)")
	return cmd
}

// filterByLabels keeps the items carrying every label.
func filterByLabels(items []*catalog.Item, labels []string) []*catalog.Item {
	result := make([]*catalog.Item, 0, len(items))
	for _, it := range items {
		if hasAllLabels(it, labels) {
			result = append(result, it)
		}
	}
	return result
}

func hasAllLabels(it *catalog.Item, labels []string) bool {
	for _, l := range labels {
		if !it.HasLabel(l) {
			return false
		}
	}
	return true
}
