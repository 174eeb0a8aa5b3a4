package main

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"channex_sync/internal/domain"
)

func propertyCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "property <id>",
		Short: "Sync every group, room type, tax and rate plan of a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if workers <= 0 {
				workers = d.cfg.Workers
			}
			log.Info().Str("property", args[0]).Int("workers", workers).Str("base", d.cfg.ChannexBase).Msg("syncer starting")

			rep, err := d.sync.SyncProperty(cmd.Context(), args[0], workers)
			if err != nil {
				return err
			}
			if err := printJSON(rep); err != nil {
				return err
			}
			if len(rep.Failures) > 0 {
				return fmt.Errorf("%d of %d entities failed", len(rep.Failures), len(rep.Failures)+len(rep.Results))
			}
			log.Info().Int("synced", len(rep.Results)).Msg("sync completed")
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent syncs per entity type (default SYNC_WORKERS)")
	return cmd
}

func entityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <type> <local-id>",
		Short: "Create or update one entity in Channex",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			d, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			res, err := d.sync.Sync(cmd.Context(), t, args[1])
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <type> <local-id>",
		Short: "Show the Channex entity a local entity maps to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			d, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			e, err := d.sync.Resolve(cmd.Context(), t, args[1])
			if err != nil {
				return err
			}
			if e == nil {
				fmt.Println("No Channex entity matches; a sync would create one.")
				return nil
			}
			return printJSON(e)
		},
	}
}

func mappingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mappings <type>",
		Short: "List stored local -> Channex ID mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			d, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			all, err := d.store.All(cmd.Context(), t)
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No mappings stored yet.")
				return nil
			}
			ids := make([]string, 0, len(all))
			for id := range all {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			fmt.Printf("%-36s  %-36s\n", "Local ID", "Channex ID")
			for _, id := range ids {
				fmt.Printf("%-36s  %-36s\n", id, all[id])
			}
			return nil
		},
	}
}
