package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/zjrosen/keystone/internal/log"
	"github.com/zjrosen/keystone/internal/presentation"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the catalog",
		Long: `Load every catalog file, register all items, freeze, and verify that every
relation resolves.

All problems across all files are reported together: malformed files,
invalid keys, duplicate keys, and dangling relations. The exit status is
non-zero when anything failed.

Examples:
  keystone check
  keystone check --catalog-dir ./content
  keystone check -o json | jq '.problems[].message'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			formatter, err := a.formatter(cmd)
			if err != nil {
				return err
			}

			cat, loadErr := a.load(cmd)
			var merr *multierror.Error
			if loadErr != nil && !errors.As(loadErr, &merr) {
				// Not a catalog problem: missing directory, cancelled, etc.
				return loadErr
			}

			result := presentation.FromCheck(cat, loadErr)
			if err := formatter.FormatCheck(result); err != nil {
				return err
			}
			if !result.OK {
				log.Warn(log.CatCLI, "check failed", "problems", len(result.Problems))
				return errors.Mark(errors.Newf("catalog has %d problems", len(result.Problems)), errReported)
			}
			return nil
		},
	}
}
