package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"audiencier/internal/agenda"
	"audiencier/internal/audit"
	"audiencier/internal/capture"
	"audiencier/internal/clock"
	"audiencier/internal/config"
	"audiencier/internal/ics"
	appLog "audiencier/internal/log"
	"audiencier/internal/model"
	"audiencier/internal/seed"
	"audiencier/internal/store"
	"audiencier/internal/web"
)

func newSeedCmd(g *globalOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo cases, parties and hearings",
		Long: `Creates demo cases referenced DEMO-0001, DEMO-0002, ... with two parties and
one hearing each, spread over the past, today, tomorrow, this week and later.
Remove them with "audiencier cleanup".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			return g.withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				res, err := seed.Run(ctx, st, time.Now().In(cfg.Location()), count)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d cases, %d parties, %d hearings\n", res.Cases, res.Parties, res.Hearings)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of demo cases")
	return cmd
}

func newCleanupCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the demo data created by seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd.Context(), func(ctx context.Context, _ *config.Config, st *store.Store) error {
				n, err := seed.Cleanup(ctx, st)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d demo cases\n", n)
				return nil
			})
		},
	}
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import hearings from a JSON export of the API",
		Long: `Reads a JSON array of hearings ("audiences" with their "affaire" embedded)
and stores the cases, parties and hearings. Cases already present are
matched by reference. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			hearings, err := seed.DecodeExport(in)
			if err != nil {
				return err
			}
			return g.withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				if dryRun {
					now := time.Now().In(cfg.Location())
					view := agenda.Build(seed.Preview(hearings), agenda.Query{}, now,
						agenda.Options{SundayFirst: cfg.WeekStart == "sunday"})
					return printAgenda(cmd.OutOrStdout(), view, cfg.Location())
				}
				res, err := seed.Import(ctx, st, hearings)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d cases (%d reused), %d parties, %d hearings; %d skipped\n",
					res.Cases, res.ReusedCases, res.Parties, res.Hearings, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the agenda of the file without storing it")
	return cmd
}

func newAuditCmd(g *globalOptions) *cobra.Command {
	var (
		days   int
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Summarize the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return g.withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				now := time.Now().In(cfg.Location())
				entries, err := st.ListAudit(ctx, now.AddDate(0, 0, -days), 0)
				if err != nil {
					return err
				}
				report := audit.Summarize(entries, cfg.Location(), limit)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				return audit.Render(cmd.OutOrStdout(), report, now)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to cover")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent entries to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newAgendaCmd(g *globalOptions) *cobra.Command {
	var (
		search string
		status string
		feeds  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print the agenda grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := agenda.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			return g.withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				events, err := st.Events(ctx, store.Range{})
				if err != nil {
					return err
				}
				now := time.Now().In(cfg.Location())
				if feed := newFeed(cfg, clock.Real()); feed != nil && feeds {
					if err := feed.Refresh(ctx); err != nil {
						appLog.Warn("ics refresh incomplete", "err", err)
					}
					events = append(events, feed.Events(now)...)
				}

				view := agenda.Build(events, agenda.Query{Search: search, Status: filter}, now,
					agenda.Options{SundayFirst: cfg.WeekStart == "sunday"})
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), view)
				}
				return printAgenda(cmd.OutOrStdout(), view, cfg.Location())
			})
		},
	}
	cmd.Flags().StringVar(&search, "q", "", "search title, reference, parties and jurisdiction")
	cmd.Flags().StringVar(&status, "status", "", "A_VENIR, TENUE, NON_RENSEIGNEE or ALL")
	cmd.Flags().BoolVar(&feeds, "feeds", false, "include the configured court calendars")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the view as JSON")
	return cmd
}

func printAgenda(w io.Writer, view agenda.View, loc *time.Location) error {
	var b strings.Builder
	if len(view.Groups) == 0 {
		b.WriteString("no hearings\n")
	}
	for i, grp := range view.Groups {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s (%d)\n", grp.Title, len(grp.Events))
		for _, ev := range grp.Events {
			fmt.Fprintf(&b, "  %s  %-14s %s", ev.Date.In(loc).Format("Mon 02/01 15:04"), statusLabel(ev.Status), ev.Title)
			for _, extra := range []string{ev.CaseReference, ev.Parties, ev.Jurisdiction} {
				if extra != "" {
					fmt.Fprintf(&b, " | %s", extra)
				}
			}
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func statusLabel(s model.HearingStatus) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

func newExportCmd(g *globalOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write the hearings as an iCalendar file",
		Long:  `Writes every stored hearing to --out (default: export_path from the config). Use "-" for stdout.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st *store.Store) error {
				path := out
				if path == "" {
					path = cfg.ExportPath
				}
				if path == "" {
					return errors.New("no output: set --out or export_path")
				}

				body, err := web.NewExporter(st, "", clock.Real(), 0).Render(ctx)
				if err != nil {
					return err
				}
				if path == "-" {
					_, err := io.WriteString(cmd.OutOrStdout(), body)
					return err
				}
				if err := ics.WriteFile(path, body); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, or - for stdout")
	return cmd
}

func newSnapshotCmd(g *globalOptions) *cobra.Command {
	var (
		opts    capture.Options
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the dashboard of a running server to a PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			opts.BaseURL = baseURL
			if opts.BaseURL == "" {
				opts.BaseURL = localURL(cfg.Listen)
			}
			if cfg.BasicAuth != nil {
				opts.Username = cfg.BasicAuth.Username
				opts.Password = cfg.BasicAuth.Password
			}
			if err := capture.Snapshot(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.OutputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "server URL (default: derived from listen)")
	cmd.Flags().StringVarP(&opts.OutputPath, "out", "o", "agenda.png", "output PNG path")
	cmd.Flags().StringVar(&opts.Search, "q", "", "preset search text")
	cmd.Flags().StringVar(&opts.Status, "status", "", "preset status filter")
	cmd.Flags().IntVar(&opts.Width, "width", capture.DefaultWidth, "viewport width")
	cmd.Flags().IntVar(&opts.Height, "height", capture.DefaultHeight, "viewport height")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", capture.DefaultTimeout, "page load timeout")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
