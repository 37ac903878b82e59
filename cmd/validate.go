package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/errors"
	"github.com/examforge/examforge/internal/model"
	"github.com/examforge/examforge/internal/persist"
)

// validateCommand resolves every registered entity descriptor so schema
// configuration errors surface at startup instead of on first use.
func validateCommand(_ *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Resolve and validate every entity descriptor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var failed []error
			for _, prototype := range model.Prototypes() {
				desc, err := persist.DescriptorForValue(prototype)
				if err != nil {
					failed = append(failed, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s table=%s pk=%s columns=%d\n",
					desc.Type.Name(), desc.TableName, desc.PKColumn, len(desc.Columns)+1)
			}
			if len(failed) > 0 {
				return errors.Join(failed...)
			}
			return nil
		},
	}
}
