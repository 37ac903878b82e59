package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/persist"
	"github.com/examforge/examforge/internal/repository"
)

// archiveCommand moves old submissions into the archive store.
func archiveCommand(settings *conf.Settings) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive submissions older than a cutoff and soft-delete them from the primary store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cutoff, err := time.Parse(time.RFC3339, before)
			if err != nil {
				return fmt.Errorf("parsing --before: %w", err)
			}

			registry := persist.NewRegistry()
			provider, err := persist.NewProvider(&settings.Store)
			if err != nil {
				return err
			}
			store, err := persist.OpenStore(cmd.Context(), provider, registry)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			archive, err := persist.OpenArchive(settings.Archive.Path, registry)
			if err != nil {
				return err
			}
			defer func() { _ = archive.Close() }()

			submissions, err := repository.NewSubmissionRepository(store)
			if err != nil {
				return err
			}
			moved, err := submissions.ArchiveBefore(cmd.Context(), archive, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d submissions older than %s\n", moved, cutoff.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "RFC3339 cutoff; rows created before this moment are archived")
	_ = cmd.MarkFlagRequired("before")
	return cmd
}
