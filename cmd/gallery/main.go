package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vizydrop/gallery/pkg/auth"
	"github.com/vizydrop/gallery/pkg/clients"
	"github.com/vizydrop/gallery/pkg/config"
	"github.com/vizydrop/gallery/pkg/connector/core"
	"github.com/vizydrop/gallery/pkg/connector/registry"
	"github.com/vizydrop/gallery/pkg/logger"

	// Import all available connectors to register them
	_ "github.com/vizydrop/gallery/pkg/connector/sources/box"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/dropbox"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/github"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/gsheets"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/jira"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/onedrive"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/targetprocess"
	_ "github.com/vizydrop/gallery/pkg/connector/sources/trello"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string

	root := &cobra.Command{
		Use:   "gallery",
		Short: "Gallery - SaaS connector host",
		Long: `Gallery hosts the application connectors: it validates provider
accounts, enumerates filter options, and streams normalized records from
third-party services as JSON arrays.`,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to gallery configuration YAML file (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Gallery v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available Connectors:")
			for _, name := range registry.List() {
				fmt.Printf("  - %s\n", name)
			}
		},
	})

	var connectorName, accountFile string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a provider account",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := newHost(configFile)
			if err != nil {
				return err
			}
			defer host.close()

			c, account, err := host.connector(connectorName, accountFile)
			if err != nil {
				return err
			}

			ctx, cancel := operationContext(host.cfg)
			defer cancel()

			ok, reason := c.Validate(ctx, account)
			if !ok {
				return fmt.Errorf("account is not valid: %s", reason)
			}
			fmt.Printf("account is valid: %s\n", c.AccountTitle(ctx, account))
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&connectorName, "connector", "c", "", "Connector name (required)")
	validateCmd.Flags().StringVarP(&accountFile, "account", "a", "", "Path to account YAML file (required)")
	_ = validateCmd.MarkFlagRequired("connector")
	_ = validateCmd.MarkFlagRequired("account")
	root.AddCommand(validateCmd)

	var sourceName, fieldName, partialFilter string

	optionsCmd := &cobra.Command{
		Use:   "options",
		Short: "List selectable values for a source filter field",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := newHost(configFile)
			if err != nil {
				return err
			}
			defer host.close()

			c, account, err := host.connector(connectorName, accountFile)
			if err != nil {
				return err
			}
			src, ok := c.Source(sourceName)
			if !ok {
				return fmt.Errorf("connector %s has no source %s", c.Name(), sourceName)
			}

			var partial core.Filter
			if partialFilter != "" {
				if partial, err = src.ParseFilter([]byte(partialFilter)); err != nil {
					return err
				}
			}

			ctx, cancel := operationContext(host.cfg)
			defer cancel()

			options, err := src.ListOptions(ctx, account, fieldName, partial)
			if err != nil {
				return err
			}
			for _, option := range options {
				fmt.Printf("%s\t%s\n", option.Value, option.Title)
			}
			return nil
		},
	}
	optionsCmd.Flags().StringVarP(&connectorName, "connector", "c", "", "Connector name (required)")
	optionsCmd.Flags().StringVarP(&accountFile, "account", "a", "", "Path to account YAML file (required)")
	optionsCmd.Flags().StringVarP(&sourceName, "source", "s", "", "Source name (required)")
	optionsCmd.Flags().StringVarP(&fieldName, "field", "f", "", "Filter field name (required)")
	optionsCmd.Flags().StringVar(&partialFilter, "filter", "", "Partial filter JSON for dependent fields (optional)")
	_ = optionsCmd.MarkFlagRequired("connector")
	_ = optionsCmd.MarkFlagRequired("account")
	_ = optionsCmd.MarkFlagRequired("source")
	_ = optionsCmd.MarkFlagRequired("field")
	root.AddCommand(optionsCmd)

	var filterJSON string
	var limit, skip int

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Stream records from a source to stdout",
		Long: `Retrieve data from one connector source and stream the resulting
JSON array to stdout.

Example:
  gallery get -c github -a account.yaml -s commits --filter '{"repository":"owner/repo"}' --limit 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := newHost(configFile)
			if err != nil {
				return err
			}
			defer host.close()

			c, account, err := host.connector(connectorName, accountFile)
			if err != nil {
				return err
			}
			src, ok := c.Source(sourceName)
			if !ok {
				return fmt.Errorf("connector %s has no source %s", c.Name(), sourceName)
			}
			filter, err := src.ParseFilter([]byte(filterJSON))
			if err != nil {
				return err
			}

			ctx, cancel := operationContext(host.cfg)
			defer cancel()
			ctx = logger.ContextWithConnector(ctx, c.Name())
			ctx = logger.ContextWithAccount(ctx, account.ID)

			start := time.Now()
			if err := src.GetData(ctx, account, filter, limit, skip, os.Stdout); err != nil {
				return err
			}
			host.log.Info("retrieval completed",
				zap.String("connector", c.Name()),
				zap.String("source", src.Name()),
				zap.Duration("duration", time.Since(start)))
			return nil
		},
	}
	getCmd.Flags().StringVarP(&connectorName, "connector", "c", "", "Connector name (required)")
	getCmd.Flags().StringVarP(&accountFile, "account", "a", "", "Path to account YAML file (required)")
	getCmd.Flags().StringVarP(&sourceName, "source", "s", "", "Source name (required)")
	getCmd.Flags().StringVar(&filterJSON, "filter", "", "Filter JSON (optional, source-specific)")
	getCmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of records to emit")
	getCmd.Flags().IntVar(&skip, "skip", 0, "Number of records to skip before emitting")
	_ = getCmd.MarkFlagRequired("connector")
	_ = getCmd.MarkFlagRequired("account")
	_ = getCmd.MarkFlagRequired("source")
	root.AddCommand(getCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// host bundles the shared dependencies every command needs.
type host struct {
	cfg        *config.Config
	log        *zap.Logger
	httpClient *clients.HTTPClient
	deps       *core.Deps
}

func newHost(configFile string) (*host, error) {
	cfg := config.New()
	if configFile != "" {
		if err := config.Load(configFile, cfg); err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return nil, err
	}
	log := logger.Get().With(zap.String("component", "gallery-cli"))

	httpConfig := clients.DefaultHTTPConfig()
	httpConfig.RequestTimeout = cfg.Timeouts.Request
	httpConfig.DialTimeout = cfg.Timeouts.Connection
	httpConfig.IdleConnTimeout = cfg.Timeouts.Idle
	httpConfig.KeepAlive = cfg.Timeouts.KeepAlive
	httpConfig.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	httpConfig.RateLimit = float64(cfg.Reliability.RateLimitPerSec)

	httpClient := clients.NewHTTPClient(httpConfig, log)
	guard := auth.NewTokenGuard(httpClient.StdClient(), log)

	return &host{
		cfg:        cfg,
		log:        log,
		httpClient: httpClient,
		deps: &core.Deps{
			HTTPClient: httpClient,
			TokenGuard: guard,
			Config:     cfg,
			Logger:     log,
		},
	}, nil
}

func (h *host) close() {
	_ = h.httpClient.Close()
	_ = logger.Sync()
}

// connector creates the named connector and loads its account file.
func (h *host) connector(name, accountFile string) (core.Connector, *auth.Account, error) {
	c, err := registry.Create(name, h.deps)
	if err != nil {
		return nil, nil, err
	}
	account, err := loadAccount(accountFile)
	if err != nil {
		return nil, nil, err
	}
	return c, account, nil
}

func loadAccount(filename string) (*auth.Account, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("failed to read account file %s: %w", filename, err)
	}
	var account auth.Account
	if err := yaml.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse account file %s: %w", filename, err)
	}
	return &account, nil
}

func operationContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	// Outer bound well past the fetch deadline so partial results can
	// still be flushed.
	return context.WithTimeout(context.Background(), cfg.Fetch.Deadline+cfg.Timeouts.Request)
}
