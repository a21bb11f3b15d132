package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"restodash/internal/api"
	"restodash/internal/cache"
	"restodash/internal/config"
	"restodash/internal/logger"
	"restodash/internal/storage"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "restodash",
	Short: "Restaurant invoice data layer",
	Long: `restodash reads and edits the supplier invoices of a restaurant through
the backend API: invoice table and detail, totals edits, supplier
categories and merges, spreadsheet and archive exports, and a check of
stored totals against the source documents.

Configuration is read from the environment (RESTODASH_* variables, a .env
file is loaded when present).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Erreur : %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("establishment", "e", "", "Establishment id (default: RESTODASH_ESTABLISHMENT_ID)")
	rootCmd.PersistentFlags().Int("timeout", 120, "Timeout in seconds")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Write JSON output to this file")
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of a table")
}

// app holds the clients shared by the commands.
type app struct {
	cfg      *config.Config
	client   *api.Client
	cache    cache.Cache
	resolver storage.Resolver
	log      zerolog.Logger

	closers []func() error
}

func newApp(ctx context.Context, component string) (*app, error) {
	log := logger.WithComponent(component)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client, err := api.New(cfg.APIURL, api.WithToken(cfg.APIToken), api.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, client: client, cache: cache.Nop{}, log: log}

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without cache")
		} else {
			a.cache = redisCache
			a.closers = append(a.closers, redisCache.Close)
		}
	}

	if cfg.StorageURL != "" {
		resolver, err := storage.NewPublicResolver(cfg.StorageURL)
		if err != nil {
			return nil, err
		}
		a.resolver = resolver
	}

	return a, nil
}

func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to release resource")
		}
	}
}

func (a *app) establishment(cmd *cobra.Command) (string, error) {
	flag, _ := cmd.Flags().GetString("establishment")
	return a.cfg.RequireEstablishment(flag)
}

// newContext creates a context with the --timeout of cmd that is canceled on
// SIGINT and SIGTERM.
func newContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// render prints v as JSON when --json or --output is set, and with table
// otherwise.
func render(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	outputPath, _ := cmd.Flags().GetString("output")
	asJSON, _ := cmd.Flags().GetBool("json")

	if outputPath == "" && !asJSON && table != nil {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if outputPath == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Résultat écrit dans %s\n", outputPath)
	return nil
}
