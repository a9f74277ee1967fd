package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/giygas/bpc-regimens/config"
	"github.com/giygas/bpc-regimens/data"
	"github.com/giygas/bpc-regimens/handlers"
	"github.com/giygas/bpc-regimens/health"
	"github.com/giygas/bpc-regimens/logging"
	"github.com/giygas/bpc-regimens/ncitparser"
	"github.com/giygas/bpc-regimens/scheduler"
	"github.com/giygas/bpc-regimens/server"
	"github.com/giygas/bpc-regimens/synapse"
	"github.com/giygas/bpc-regimens/validation"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags and what PersistentPreRunE loads
type rootOptions struct {
	configPath string
	logDir     string
	verbose    bool

	cfg *config.Config
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "bpc-regimens",
		Short:         "Map BPC cohort drug labels to NCIT codes and abbreviate the top regimens",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				logging.Error("Invalid configuration", "error", err)
				return err
			}
			if opts.logDir != "" {
				cfg.LogDir = opts.logDir
			}
			opts.cfg = cfg

			logging.InitLogger(logging.Options{
				LogDir:        cfg.LogDir,
				ConsoleLevel:  logging.GetConsoleLogLevel(cfg.Env, cfg.LogLevel, opts.verbose),
				RetentionDays: cfg.LogRetentionDays,
				MaxFileSize:   cfg.MaxLogFileSize,
				Console:       cmd.ErrOrStderr(),
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the .synapseConfig credentials file (default ~/.synapseConfig)")
	rootCmd.PersistentFlags().StringVar(&opts.logDir, "log-dir", "", "directory for log files (overrides LOG_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to the console in the test environment")

	rootCmd.AddCommand(loginCmd(opts))
	rootCmd.AddCommand(mappingCmd(opts))
	rootCmd.AddCommand(abbreviateCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))

	return rootCmd
}

// run executes fn and logs its error, the way every command reports failure
func run(cmd *cobra.Command, fn func() error) error {
	if err := fn(); err != nil {
		logging.Error("Command failed", "command", cmd.Name(), "error", err)
		return err
	}
	return nil
}

// newSession reads the credentials and logs in to Synapse
func newSession(ctx context.Context, opts *rootOptions) (*synapse.Client, error) {
	token, err := synapse.ReadAuthToken(opts.configPath)
	if err != nil {
		return nil, err
	}

	client, err := synapse.NewClient(synapse.Config{
		Endpoint:          opts.cfg.SynapseEndpoint,
		AuthToken:         token,
		CacheDir:          opts.cfg.SynapseCacheDir,
		RequestsPerSecond: opts.cfg.SynapseRate,
		Timeout:           opts.cfg.SynapseTimeout,
		Logger:            logging.Logger(),
	})
	if err != nil {
		return nil, err
	}

	profile, err := client.Login(ctx)
	if err != nil {
		return nil, err
	}
	logging.Info("Logged in to Synapse", "user", profile.UserName)
	return client, nil
}

func newParser(client *synapse.Client, cfg *config.Config, top int, skipUnknown bool) *ncitparser.CohortParser {
	return ncitparser.NewCohortParser(client, ncitparser.Options{
		PrissmmTableID:     cfg.PrissmmTableID,
		GlobalResponseID:   cfg.GlobalResponseID,
		RegimenFileID:      cfg.RegimenFileID,
		DataDictionaryName: cfg.DataDictionaryName,
		TopRegimens:        top,
		SkipUnknown:        skipUnknown,
	})
}

func loginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the Synapse credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func() error {
				client, err := newSession(cmd.Context(), opts)
				if err != nil {
					return err
				}
				profile, _ := client.Profile()
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", profile.UserName)
				return err
			})
		},
	}
}

func mappingCmd(opts *rootOptions) *cobra.Command {
	var cohort, format string

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Print the drug label to NCIT code mapping of a cohort",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func() error {
				if err := checkFormat(format); err != nil {
					return err
				}
				if err := validation.NewDataValidator().ValidateCohortName(cohort); err != nil {
					return err
				}

				client, err := newSession(cmd.Context(), opts)
				if err != nil {
					return err
				}
				result, err := newParser(client, opts.cfg, opts.cfg.TopRegimens, false).ParseMapping(cmd.Context(), cohort)
				if err != nil {
					return err
				}
				return writeMapping(cmd.OutOrStdout(), result, format)
			})
		},
	}

	cmd.Flags().StringVar(&cohort, "cohort", "", "cohort name, e.g. BrCa")
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text or json")
	_ = cmd.MarkFlagRequired("cohort")
	return cmd
}

func abbreviateCmd(opts *rootOptions) *cobra.Command {
	var (
		cohorts     []string
		top         int
		skipUnknown bool
		format      string
	)

	cmd := &cobra.Command{
		Use:   "abbreviate",
		Short: "Print the NCIT abbreviations of the most frequent regimens of each cohort",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func() error {
				if err := checkFormat(format); err != nil {
					return err
				}
				if !cmd.Flags().Changed("cohort") {
					cohorts = opts.cfg.Cohorts
				}
				if !cmd.Flags().Changed("top") {
					top = opts.cfg.TopRegimens
				}
				if top <= 0 {
					return fmt.Errorf("--top must be positive, got %d", top)
				}
				validator := validation.NewDataValidator()
				for _, cohort := range cohorts {
					if err := validator.ValidateCohortName(cohort); err != nil {
						return fmt.Errorf("invalid cohort %q: %w", cohort, err)
					}
				}

				client, err := newSession(cmd.Context(), opts)
				if err != nil {
					return err
				}
				results, err := newParser(client, opts.cfg, top, skipUnknown).ParseAllCohorts(cmd.Context(), cohorts)
				if err != nil {
					return err
				}
				return writeAbbreviations(cmd.OutOrStdout(), results, format)
			})
		},
	}

	cmd.Flags().StringSliceVar(&cohorts, "cohort", nil, "cohorts to process, repeatable (default COHORTS)")
	cmd.Flags().IntVar(&top, "top", 0, "number of most frequent regimens per cohort (default TOP_REGIMENS)")
	cmd.Flags().BoolVar(&skipUnknown, "skip-unknown", false, "leave out regimens with unmapped drugs instead of failing")
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text or json")
	return cmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	var skipUnknown bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cohort results over HTTP, refreshed on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func() error {
				return runServer(cmd.Context(), opts, skipUnknown)
			})
		},
	}

	cmd.Flags().BoolVar(&skipUnknown, "skip-unknown", true, "leave out regimens with unmapped drugs instead of failing the refresh")
	return cmd
}

func runServer(ctx context.Context, opts *rootOptions, skipUnknown bool) error {
	cfg := opts.cfg

	client, err := newSession(ctx, opts)
	if err != nil {
		return err
	}

	store := data.NewDataContainer()
	store.SetServerStartTime(time.Now())

	validator := validation.NewDataValidator()
	checker, err := health.NewHealthChecker(store, cfg.RefreshAt)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(store, newParser(client, cfg, cfg.TopRegimens, skipUnknown), validator, scheduler.Options{
		Cohorts:   cfg.Cohorts,
		RefreshAt: cfg.RefreshAt,
		Timeout:   time.Duration(len(cfg.Cohorts)) * cfg.SynapseTimeout,
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, handlers.NewHTTPHandler(store, validator, checker))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return errors.New("server stopped unexpectedly")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
