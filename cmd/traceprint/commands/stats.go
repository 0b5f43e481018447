package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/traceprint/traceprint/pkg/config"
	"github.com/traceprint/traceprint/pkg/engine"
	"github.com/traceprint/traceprint/pkg/profiles"
	"github.com/traceprint/traceprint/pkg/storage"
)

// statsOutput summarizes the persistent state of a data directory.
type statsOutput struct {
	SeedProfiles   int `json:"seed_profiles"`
	StoredProfiles int `json:"stored_profiles"`
	Automation     int `json:"automation_profiles"`
}

func newStatsCommand(manager *config.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the profile registry and the persistent store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := manager.Get()

			registry, err := profiles.Load(cfg.Profiles.Paths...)
			if err != nil {
				return engine.WrapProfilesError(err)
			}

			backend, err := storage.NewBackend(ctx, &storage.Config{Path: cfg.Storage.Path})
			if err != nil {
				return engine.WrapStorageError(err)
			}
			defer backend.Close()

			stored, err := backend.ListProfiles(ctx)
			if err != nil {
				return engine.WrapStorageError(err)
			}

			out := statsOutput{
				SeedProfiles:   registry.Len(),
				StoredProfiles: len(stored),
			}
			for _, p := range registry.All() {
				if p.Automation {
					out.Automation++
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("encode stats: %w", err)
			}
			return nil
		},
	}
}
