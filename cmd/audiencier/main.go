// Command audiencier serves the hearing agenda of a law practice and
// offers maintenance commands over the same database.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"audiencier/internal/clock"
	"audiencier/internal/config"
	"audiencier/internal/ics"
	appLog "audiencier/internal/log"
	"audiencier/internal/store"
)

const version = "0.3.0"

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("command failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "audiencier",
		Short: "Hearing agenda for a law practice",
		Long: `audiencier keeps the cases, parties and hearings of a law practice in
SQLite, merges them with subscribed court calendars and serves a searchable
agenda grouped by day.

Run "audiencier serve" to start the dashboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			appLog.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(opts),
		newSeedCmd(opts),
		newCleanupCmd(opts),
		newImportCmd(opts),
		newAuditCmd(opts),
		newAgendaCmd(opts),
		newExportCmd(opts),
		newSnapshotCmd(opts),
	)
	return root
}

// load reads and validates the config, then applies the log level.
// --verbose wins over log_level.
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", o.configPath, err)
	}
	level := appLog.ParseLevel(cfg.LogLevel)
	if o.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	appLog.Debug("config loaded",
		"path", o.configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"database", cfg.Database,
		"ics_count", len(cfg.ICS),
	)
	return cfg, nil
}

// withStore loads the config, opens the database and runs fn.
func (o *globalOptions) withStore(ctx context.Context, fn func(ctx context.Context, cfg *config.Config, st *store.Store) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database, clock.Real(), cfg.Location())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, cfg, st)
}

// newFeed returns nil when no external calendar is configured. The HTTP
// cache lives next to the database.
func newFeed(cfg *config.Config, clk clock.Clock) *ics.Feed {
	if len(cfg.ICS) == 0 {
		return nil
	}
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		sources = append(sources, ics.Source{ID: c.ID, Name: c.Name, URL: c.URL})
	}
	cacheDir := filepath.Join(filepath.Dir(cfg.Database), "ics-cache")
	return ics.NewFeed(ics.NewFetcher(cacheDir, clk), sources, clk, cfg.Location(), cfg.HorizonDays)
}

// localURL turns a listen address such as ":8080" into a URL reachable
// from this host.
func localURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
