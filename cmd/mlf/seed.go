package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/madhesh-litfest/mlf/pkg/backend"
	"github.com/madhesh-litfest/mlf/pkg/config"
	"github.com/madhesh-litfest/mlf/pkg/content"
)

func newSeedCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample speakers and partners into the local store",
		Long: `seed inserts the sample festival speakers and partners into the local
SQLite store. Collections that already hold records are left alone unless
--force is given, in which case the samples are added again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.ResolvedDriver() != config.DriverLocal {
				return withExitCode(fmt.Errorf("seed only supports the local driver (resolved driver: %s)", cfg.ResolvedDriver()), exitConfig)
			}
			store, err := openLocalStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return runSeed(cmd.Context(), store, cmd.OutOrStdout(), force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "insert samples even when records already exist")
	return cmd
}

func runSeed(ctx context.Context, records backend.RecordStore, out io.Writer, force bool) error {
	speakers := make([]map[string]any, 0, len(content.SampleSpeakers))
	for _, in := range content.SampleSpeakers {
		speakers = append(speakers, in.Fields())
	}
	partners := make([]map[string]any, 0, len(content.SamplePartners))
	for _, in := range content.SamplePartners {
		partners = append(partners, in.Fields())
	}

	for _, set := range []struct {
		collection string
		rows       []map[string]any
	}{
		{content.CollectionSpeakers, speakers},
		{content.CollectionPartners, partners},
	} {
		existing, err := records.SelectAll(ctx, nil, set.collection, backend.NewestFirst)
		if err != nil {
			return fmt.Errorf("read %s: %w", set.collection, err)
		}
		if len(existing) > 0 && !force {
			fmt.Fprintf(out, "%s: %d records present, skipped\n", set.collection, len(existing))
			continue
		}
		for _, fields := range set.rows {
			if _, err := records.Insert(ctx, nil, set.collection, fields); err != nil {
				return fmt.Errorf("insert into %s: %w", set.collection, err)
			}
		}
		fmt.Fprintf(out, "%s: inserted %d records\n", set.collection, len(set.rows))
	}
	return nil
}
