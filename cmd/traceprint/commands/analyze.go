package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/traceprint/traceprint/pkg/cache"
	"github.com/traceprint/traceprint/pkg/capture"
	"github.com/traceprint/traceprint/pkg/config"
	"github.com/traceprint/traceprint/pkg/engine"
	"github.com/traceprint/traceprint/pkg/learn"
	"github.com/traceprint/traceprint/pkg/profiles"
	"github.com/traceprint/traceprint/pkg/storage"
)

// analyzeOutput is one JSONL line emitted per analyzed flow.
type analyzeOutput struct {
	*engine.Result
	Features engine.FeatureVector `json:"features"`
}

func newAnalyzeCommand(manager *config.Manager) *cobra.Command {
	var (
		output       string
		withFeatures bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <capture.pcap>",
		Short: "Analyze a pcap file and emit per-flow fingerprint records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var shared cache.SharedTier
			if cfg.Cache.Redis.Enabled {
				shared, err = cache.NewRedisTier(ctx, cache.RedisConfig{
					Addr:     cfg.Cache.Redis.Addr,
					Password: cfg.Cache.Redis.Password,
					DB:       cfg.Cache.Redis.DB,
				})
				if err != nil {
					return engine.WrapStorageError(err)
				}
			}
			lookupCache := cache.New(cache.Config{
				LocalCapacity: cfg.Cache.LocalCapacity,
				TTL:           cfg.Cache.TTL,
				SharedTimeout: cfg.Cache.SharedTimeout,
			}, shared, log.Logger)
			defer lookupCache.Close()

			learner := learn.NewStore(learn.Config{
				PromotionThreshold: cfg.Learner.PromotionThreshold,
				MinStability:       cfg.Learner.MinStability,
				Window:             cfg.Learner.Window,
				MaxObservations:    cfg.Learner.MaxObservations,
			}, backend, log.Logger)

			analyzer := engine.New(registry, learner, lookupCache, log.Logger)

			src, err := capture.OpenFile(args[0])
			if err != nil {
				return engine.WrapCaptureError(err)
			}
			defer src.Close()

			results, err := analyzer.AnalyzeSource(ctx, src)
			if err != nil {
				return err
			}

			out := os.Stdout
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			enc := json.NewEncoder(out)
			for _, res := range results {
				if withFeatures {
					if err := enc.Encode(analyzeOutput{
						Result:   res,
						Features: engine.Features(res.Record),
					}); err != nil {
						return fmt.Errorf("encode result: %w", err)
					}
					continue
				}
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			}

			log.Info().
				Int("flows", len(results)).
				Str("capture", args[0]).
				Msg("analysis complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "Write JSONL results to this file (- for stdout)")
	cmd.Flags().BoolVar(&withFeatures, "features", false, "Include the numeric feature vector per flow")

	return cmd
}
