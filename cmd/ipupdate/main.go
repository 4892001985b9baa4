package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/Travis-Britz/ipupdate"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "ipupdate",
	Short: "Point Cloudflare DNS records at this host's public IP",
	Long: `ipupdate looks up the public IP address of this host, compares it with the
configured Cloudflare DNS records, and updates any record that differs.
The operator is notified by email when a record changes or a run fails.

Configuration is read from $IPUPDATE_CONFIG, or config.json next to the
executable, or environment variables for a single domain.
Run it from cron or a systemd timer; each invocation performs one check.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	var mirror io.Writer
	if term.IsTerminal(int(os.Stderr.Fd())) {
		mirror = os.Stderr
	}
	logger, closeLog, err := openLog(logPath(), mirror)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, source, err := loadConfig()
	if err != nil {
		logger.WithError(err).Error("unable to load configuration")
		return fmt.Errorf("error loading configuration: %w", err)
	}
	logger.Infof("loaded configuration for %d domains from %s", len(cfg.Domains), source)

	opts, err := cfg.Options()
	if err != nil {
		logger.WithError(err).Error("unable to read configuration")
		return fmt.Errorf("error reading configuration: %w", err)
	}
	client, err := ipupdate.New(append(opts, ipupdate.WithLogger(logger))...)
	if err != nil {
		logger.WithError(err).Error("unable to create client")
		return fmt.Errorf("error creating ipupdate.Client: %w", err)
	}

	results, err := client.Run(ctx, cfg.Domains)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		printSummary(os.Stdout, results)
	}
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}

func logPath() string {
	return env("IPUPDATE_LOG", filepath.Join(os.Getenv("HOME"), "public-ip-updater.log"))
}

// loadConfig returns the configuration and a description of where it came from.
func loadConfig() (*ipupdate.Config, string, error) {
	if path, ok := os.LookupEnv("IPUPDATE_CONFIG"); ok && path != "" {
		cfg, err := ipupdate.LoadConfig(path)
		return cfg, path, err
	}
	if exe, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exe), "config.json")
		_, err := os.Stat(path)
		if err == nil {
			cfg, err := ipupdate.LoadConfig(path)
			return cfg, path, err
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, path, fmt.Errorf("error checking %s: %w", path, err)
		}
	}
	cfg, err := ipupdate.ConfigFromEnv()
	return cfg, "environment", err
}
