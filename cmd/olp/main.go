// Copyright (C) 2024 HERE Europe B.V.
// See LICENSE for copying information.

// Command olp is a thin example CLI exercising pkg/read, mirroring
// the teacher's cmd/uplink composition over lib/uplink: every
// subcommand wires the same settings bundle into a fresh read client
// and performs one operation.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/heremaps/here-data-sdk-go/internal/task/scheduler"
	"github.com/heremaps/here-data-sdk-go/pkg/apilookup"
	"github.com/heremaps/here-data-sdk-go/pkg/auth"
	"github.com/heremaps/here-data-sdk-go/pkg/cache"
	"github.com/heremaps/here-data-sdk-go/pkg/client"
	"github.com/heremaps/here-data-sdk-go/pkg/olpclient"
	"github.com/heremaps/here-data-sdk-go/pkg/read"
	"github.com/heremaps/here-data-sdk-go/private/kvstore/boltkv"
)

var v = viper.New()

func main() {
	root := &cobra.Command{
		Use:   "olp",
		Short: "Example CLI over the HERE-style data platform client SDK",
	}

	root.PersistentFlags().String("key", "", "OAuth access key id")
	root.PersistentFlags().String("secret", "", "OAuth access key secret")
	root.PersistentFlags().String("token-endpoint", "https://account.api.here.com/oauth2/token", "OAuth token endpoint")
	root.PersistentFlags().String("lookup-endpoint", "https://api-lookup.data.api.platform.here.com", "API lookup base URL")
	root.PersistentFlags().String("catalog", "", "catalog HRN")
	root.PersistentFlags().String("cache-dir", "./olp-cache", "disk cache directory")
	root.PersistentFlags().Bool("verbose", false, "enable debug logging")
	_ = v.BindPFlags(root.PersistentFlags())

	v.SetEnvPrefix("OLP")
	v.AutomaticEnv()

	root.AddCommand(catalogCmd(), partitionCmd(), prefetchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	if !v.GetBool("verbose") {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// buildSettings assembles a read.Settings from the bound flags: a
// boltkv-backed two-tier cache, an HTTP network, a singleflight OAuth
// token provider, and an API-lookup client, the same composition every
// pkg/read client expects.
func buildSettings(ctx context.Context) (read.Settings, func(), error) {
	log := newLogger()

	cacheDir := v.GetString("cache-dir")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return read.Settings{}, func() {}, fmt.Errorf("create cache dir: %w", err)
	}

	store, err := boltkv.Open(cacheDir + "/olp.db")
	if err != nil {
		return read.Settings{}, func() {}, fmt.Errorf("open disk cache: %w", err)
	}
	closeFn := func() { _ = store.Close() }

	c, err := cache.New(ctx, store, cache.Options{
		MemoryCapacityBytes: 64 * 1024 * 1024,
		DiskCapacityBytes:   512 * 1024 * 1024,
		Logger:              log,
	})
	if err != nil {
		closeFn()
		return read.Settings{}, func() {}, fmt.Errorf("build cache: %w", err)
	}

	network := olpclient.NewHTTPNetworkFromSettings(client.DefaultNetworkSettings())

	tokens := auth.New(auth.Settings{
		Credentials: auth.AuthenticationCredentials{
			Key:    v.GetString("key"),
			Secret: v.GetString("secret"),
		},
		EndpointURL: v.GetString("token-endpoint"),
		MinValidity: 5 * time.Minute,
		Network:     network,
		Logger:      log,
	})

	lookup := apilookup.New(apilookup.Settings{
		LookupBaseURL: v.GetString("lookup-endpoint"),
		Cache:         c,
		CacheTTL:      time.Hour,
		Network:       network,
		TokenProvider: tokens.AsBearerSource(),
		Logger:        log,
	})

	return read.Settings{
		CatalogHRN:       v.GetString("catalog"),
		Lookup:           lookup,
		Cache:            c,
		Network:          network,
		Tokens:           tokens.AsBearerSource(),
		Logger:           log,
		CatalogTTL:       24 * time.Hour,
		LatestVersionTTL: time.Minute,
		LayerTTL:         24 * time.Hour,
	}, closeFn, nil
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the configured catalog's metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			settings, closeFn, err := buildSettings(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			result := read.NewCatalogClient(settings).GetCatalog(ctx, "", read.OnlineIfNotFound)
			if !result.IsSuccess() {
				return fmt.Errorf("get catalog: %s", result.Err)
			}

			fmt.Printf("%s (%s): %d layers, version %d\n", result.Value.Name, result.Value.HRN, len(result.Value.Layers), result.Value.Version)
			for _, l := range result.Value.Layers {
				fmt.Printf("  %s\t%s\n", l.ID, l.Type)
			}
			return nil
		},
	}
}

func partitionCmd() *cobra.Command {
	var layer, version string
	cmd := &cobra.Command{
		Use:   "partition <partition-id>",
		Short: "Fetch one partition's data and print its size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			settings, closeFn, err := buildSettings(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			var ver *int64
			if version != "" {
				n, convErr := strconv.ParseInt(version, 10, 64)
				if convErr != nil {
					return fmt.Errorf("invalid --version: %w", convErr)
				}
				ver = &n
			}

			layerClient := read.NewVersionedLayerClient(settings, layer)
			result := layerClient.GetData(ctx, read.DataRequest{PartitionID: args[0], Version: ver}, read.BlobRange{})
			if !result.IsSuccess() {
				return fmt.Errorf("get data: %s", result.Err)
			}

			fmt.Printf("partition %s: %d bytes\n", args[0], len(result.Value))
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer id")
	cmd.Flags().StringVar(&version, "version", "", "catalog version (defaults to latest)")
	_ = cmd.MarkFlagRequired("layer")
	return cmd
}

// parseRootKeys splits a comma-separated list of here-tile keys into
// tile roots, ignoring blank entries. It fails if none remain.
func parseRootKeys(roots string) ([]read.TileKey, error) {
	var rootKeys []read.TileKey
	for _, s := range strings.Split(roots, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key, err := read.TileKeyFromHereTile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid tile key %q: %w", s, err)
		}
		rootKeys = append(rootKeys, key)
	}
	if len(rootKeys) == 0 {
		return nil, fmt.Errorf("--roots must name at least one tile key")
	}
	return rootKeys, nil
}

func prefetchCmd() *cobra.Command {
	var layer, roots string
	var minLevel, maxLevel int
	cmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Prefetch a quadtree tile range into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			settings, closeFn, err := buildSettings(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			rootKeys, err := parseRootKeys(roots)
			if err != nil {
				return err
			}

			layerClient := read.NewVersionedLayerClient(settings, layer)
			sched := scheduler.New(4)
			defer sched.Shutdown()

			done := make(chan struct{})
			layerClient.Prefetch(ctx, read.PrefetchRequest{
				Roots:    rootKeys,
				MinLevel: minLevel,
				MaxLevel: maxLevel,
			}, sched, func(result client.Result[read.PrefetchResult]) {
				defer close(done)
				if !result.IsSuccess() {
					fmt.Fprintf(os.Stderr, "prefetch failed: %s\n", result.Err)
					return
				}
				fmt.Printf("prefetch complete: %d tiles\n", len(result.Value.Tiles))
			})
			<-done
			return nil
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "layer id")
	cmd.Flags().StringVar(&roots, "roots", "", "comma-separated root quadkeys")
	cmd.Flags().IntVar(&minLevel, "min-level", 0, "minimum tile level")
	cmd.Flags().IntVar(&maxLevel, "max-level", 4, "maximum tile level")
	_ = cmd.MarkFlagRequired("layer")
	_ = cmd.MarkFlagRequired("roots")
	return cmd
}
