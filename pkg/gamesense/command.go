package gamesense

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/reconcile"
	"github.com/spf13/cobra"
)

// ErrDrift is returned by `check --strict` when a report is not consistent.
var ErrDrift = errors.New("stores are out of sync")

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	Format     string

	DocumentDriver string
	DocumentDSN    string
	GraphDriver    string
	GraphURL       string
	DLQBackend     string
	DLQDir         string
	LogLevel       string

	config *Config
}

// NewRootCommand creates the gamesense command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gamesense",
		Short: "Cross-store consistency core for the gamesense platform",
		Long: `gamesense keeps a document store and a graph store in step.

Writes go to the primary store first, then to the secondary one. Secondary
failures end in a dead letter queue that the monitor and the dlq commands
work through.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := LoadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.applyFlags(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.config = cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	flags.StringVar(&opts.DocumentDriver, "document-driver", "", "document store driver (postgres|sqlite|memory)")
	flags.StringVar(&opts.DocumentDSN, "document-dsn", "", "document store DSN")
	flags.StringVar(&opts.GraphDriver, "graph-driver", "", "graph store driver (surrealdb|neo4j|memory)")
	flags.StringVar(&opts.GraphURL, "graph-url", "", "graph store URL")
	flags.StringVar(&opts.DLQBackend, "dlq-backend", "", "dead letter backend (document|badger|memory)")
	flags.StringVar(&opts.DLQDir, "dlq-dir", "", "badger directory for the dead letter queue")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newDLQCommand(opts))
	cmd.AddCommand(newSyncUserCommand(opts))

	return cmd
}

// applyFlags lets explicitly set flags win over file and environment.
func (opts *RootOptions) applyFlags(cmd *cobra.Command, cfg *Config) {
	set := func(name string, target *string, value string) {
		if cmd.Flags().Changed(name) {
			*target = value
		}
	}
	set("document-driver", &cfg.Document.Driver, opts.DocumentDriver)
	set("document-dsn", &cfg.Document.DSN, opts.DocumentDSN)
	set("graph-driver", &cfg.Graph.Driver, opts.GraphDriver)
	set("graph-url", &cfg.Graph.URL, opts.GraphURL)
	set("dlq-backend", &cfg.DLQ.Backend, opts.DLQBackend)
	set("dlq-dir", &cfg.DLQ.Dir, opts.DLQDir)
	set("log-level", &cfg.Log.Level, opts.LogLevel)
}

// withApp opens the App for one command and closes it afterwards.
func (opts *RootOptions) withApp(cmd *cobra.Command, fn func(app *App) error) error {
	log, closeLog, err := newLogger(opts.config.Log, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer closeLog()

	app, err := New(cmd.Context(), opts.config, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()
	return fn(app)
}

func newLogger(cfg LogConfig, w io.Writer) (logger.Logger, func() error, error) {
	log, err := logger.New().FromBuffer(w).FromPath(cfg.Path).WithLevel(cfg.Level).Pretty(cfg.Pretty).Make()
	if err != nil {
		return nil, nil, err
	}
	return log, log.Close, nil
}

func newServeCommand(opts *RootOptions) *cobra.Command {
	var (
		addr     string
		monitor  bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP server",
		Example: `  gamesense serve --addr :8080
  gamesense serve --monitor --monitor-interval 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				opts.config.Server.Addr = addr
			}
			if cmd.Flags().Changed("monitor") {
				opts.config.Monitor.Enabled = monitor
			}
			if cmd.Flags().Changed("monitor-interval") {
				opts.config.Monitor.Interval = interval
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Serve(cmd.Context()); err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().BoolVar(&monitor, "monitor", false, "run the consistency monitor")
	cmd.Flags().DurationVar(&interval, "monitor-interval", reconcile.DefaultInterval, "consistency monitor interval")
	return cmd
}

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations completed")
				return nil
			})
		},
	}
}

func newCheckCommand(opts *RootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check [users|games]",
		Short: "Compare entity counts across the stores",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				var reports []reconcile.Report
				if len(args) == 1 {
					class, err := reconcile.ParseEntityClass(args[0])
					if err != nil {
						return err
					}
					reports = []reconcile.Report{app.Checker().Check(cmd.Context(), class)}
				} else {
					reports = app.Checker().CheckAll(cmd.Context())
				}

				if err := opts.write(cmd.OutOrStdout(), reports, func(w io.Writer) error {
					return reconcile.RenderReports(w, reports)
				}); err != nil {
					return err
				}
				if strict {
					for _, r := range reports {
						if !r.Consistent {
							return ErrDrift
						}
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any report is not consistent")
	return cmd
}

func newDLQCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and work through the dead letter queue",
	}

	var listLimit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List unresolved dead letters, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				records, err := app.Queue().ListUnresolvedN(cmd.Context(), listLimit)
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), records, func(w io.Writer) error {
					return renderDeadLetters(w, records)
				})
			})
		},
	}
	list.Flags().IntVar(&listLimit, "limit", 0, "maximum number of records (0 for all)")

	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a dead letter as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dead letter id %q", args[0])
			}
			return opts.withApp(cmd, func(app *App) error {
				if err := app.Queue().MarkResolved(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dead letter %d resolved\n", id)
				return nil
			})
		},
	}

	var replayLimit int
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Redo the secondary writes of unresolved dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				stats, err := app.Replayer().Replay(cmd.Context(), replayLimit)
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), stats, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "scanned %d, resolved %d, failed %d, skipped %d\n",
						stats.Scanned, stats.Resolved, stats.Failed, stats.Skipped)
					return err
				})
			})
		},
	}
	replay.Flags().IntVar(&replayLimit, "limit", reconcile.DefaultReplayBatch, "maximum number of records to replay")

	cmd.AddCommand(list, resolve, replay)
	return cmd
}

func newSyncUserCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-user <id>",
		Short: "Compare one user across the stores and repair the graph node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseUserID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(app *App) error {
				diff, err := app.Checker().SynchronizeUser(cmd.Context(), id)
				if err != nil {
					return err
				}
				return opts.write(cmd.OutOrStdout(), diff, func(w io.Writer) error {
					state := "in sync"
					if diff.Repaired {
						state = fmt.Sprintf("repaired (graph had %q, document has %q)", diff.GraphUsername, diff.DocumentUsername)
					}
					_, err := fmt.Fprintf(w, "user %s: %s\n", diff.UserID, state)
					return err
				})
			})
		},
	}
}

// write emits v as indented JSON with --format json, otherwise calls text.
func (opts *RootOptions) write(w io.Writer, v any, text func(io.Writer) error) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func renderDeadLetters(w io.Writer, records []*models.DeadLetter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOPERATION\tSUBJECT\tRESOURCE\tRETRIES\tFAILED AT\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Operation, r.SubjectID, r.ResourceID, r.RetryCount,
			r.FailedAt.UTC().Format(time.RFC3339), r.ErrorMessage)
	}
	return tw.Flush()
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
