package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jupiterbjy/gotigris/internal/daemon"
	"github.com/jupiterbjy/gotigris/internal/roster"
	"github.com/jupiterbjy/gotigris/internal/tigris"
	"github.com/jupiterbjy/gotigris/pkg/dateutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the whole login handshake against the portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, _, err := newClient(cfg)
			if err != nil {
				return err
			}

			if err := client.Login(context.Background()); err != nil {
				return err
			}

			fmt.Println("✅ Login OK - portal session and SSO session established")
			return nil
		},
	}
}

func eventsCmd() *cobra.Command {
	var fromStr, toStr string
	var teammateOnly bool
	var exportPath string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Fetch and print calendar events for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, loc, err := newClient(cfg)
			if err != nil {
				return err
			}

			today := dateutil.Today(loc)
			from := today
			to := dateutil.EndOfDay(today.AddDate(0, 0, 30))

			if fromStr != "" {
				if from, err = dateutil.ParseDate(fromStr, loc); err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if toStr != "" {
				parsed, err := dateutil.ParseDate(toStr, loc)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				to = dateutil.EndOfDay(parsed)
			}

			ctx := context.Background()
			if err := client.Login(ctx); err != nil {
				return err
			}

			q := defaultQuery(cfg)
			q.From = from
			q.To = to
			if cmd.Flags().Changed("teammate-only") {
				q.TeammateOnly = teammateOnly
			}

			events, err := client.GetCalendar(ctx, q)
			if err != nil {
				return err
			}

			fmt.Printf("📅 %d event(s) from %s to %s\n",
				len(events),
				from.Format("2006-01-02"),
				to.Format("2006-01-02"))
			fmt.Println("═══════════════════════════════════════════════════════")

			for _, ev := range events {
				printEvent(ev)
			}

			if exportPath != "" {
				store := roster.NewSnapshotStore(exportPath, loc, logger)
				if err := store.Save(from, to, events); err != nil {
					return fmt.Errorf("failed to export events: %w", err)
				}
				fmt.Printf("\n📝 Exported %d event(s) to %s\n", len(events), exportPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "Range start (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&toStr, "to", "", "Range end (YYYY-MM-DD), default today+30d")
	cmd.Flags().BoolVar(&teammateOnly, "teammate-only", false, "Only fetch teammates' calendar")
	cmd.Flags().StringVar(&exportPath, "export", "", "Write fetched events to a snapshot file (empty to disable)")

	return cmd
}

func printEvent(ev *tigris.Event) {
	d := ev.Data()

	when := d.StartYMD
	if start, err := ev.Start(); err == nil {
		end, err := ev.End()
		if err == nil && !dateutil.IsSameDay(start, end) {
			when = fmt.Sprintf("%s → %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
		} else {
			when = start.Format("2006-01-02")
		}
	}

	if ev.IsGlobal() {
		fmt.Printf("  %-23s  [holiday] %s\n", when, d.Title)
		return
	}

	detail := d.LeaveName
	if d.ReqStatusCd != "" {
		detail += " (" + d.ReqStatusCd + ")"
	}
	if !d.AllDay && d.StartHM != "" {
		detail += " " + strings.TrimPrefix(d.StartHM, "T")
		if d.EndHM != "" {
			detail += "~" + strings.TrimPrefix(d.EndHM, "T")
		}
	}

	fmt.Printf("  %-23s  %s - %s\n", when, d.PersonInfo, detail)
}

func boardCmd() *cobra.Command {
	var monthStr string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the month absence board (who is out on which day)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, loc, err := newClient(cfg)
			if err != nil {
				return err
			}

			target := dateutil.Today(loc)
			if monthStr != "" {
				if target, err = dateutil.ParseDate(monthStr, loc); err != nil {
					return fmt.Errorf("invalid --month: %w", err)
				}
			}

			source, _ := newSource(cfg, client, loc)
			builder := roster.NewBuilder(source, loc, logger)

			board, err := builder.MonthBoard(context.Background(), target.Year(), target.Month())
			if err != nil {
				return err
			}

			fmt.Printf("📊 Absence board %04d-%02d: %d leave(s), %d holiday(s)\n",
				board.Year, int(board.Month), board.TotalAbsences, board.TotalHolidays)
			fmt.Println("═══════════════════════════════════════════════════════")

			for _, day := range board.Days {
				if len(day.Holidays) == 0 && len(day.Absences) == 0 {
					continue
				}

				line := fmt.Sprintf("  %s %s |", day.Date.Format("2006-01-02"), day.Date.Format("Mon"))
				for _, h := range day.Holidays {
					line += fmt.Sprintf(" 🎌 %s", h)
				}
				if n := len(day.Absences); n > 0 {
					names := make([]string, 0, n)
					for _, a := range day.Absences {
						names = append(names, a.Person)
					}
					line += fmt.Sprintf(" %d out: %s", n, strings.Join(names, ", "))
				}
				fmt.Println(line)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&monthStr, "month", "", "Month to print (YYYY-MM), default current month")

	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run in watch mode: refresh the absence snapshot daily",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, loc, err := newClient(cfg)
			if err != nil {
				return err
			}

			// Watch mode fetches live on purpose; the snapshot it writes
			// is what other commands fall back to.
			live := roster.NewClientSource(client, defaultQuery(cfg), true)

			var store *roster.SnapshotStore
			if cfg.Snapshot.File != "" {
				store = roster.NewSnapshotStore(cfg.Snapshot.File, loc, logger)
			}

			hour, minute := cfg.Daemon.GetDailyTime()
			schedule := daemon.Schedule{
				Hour:        hour,
				Minute:      minute,
				LookAhead:   cfg.Daemon.GetLookAhead(),
				StartJitter: cfg.Daemon.GetStartJitter(),
				SystemTray:  cfg.Daemon.SystemTray,
			}

			logger.Info("Starting watch mode",
				zap.String("daily_time", fmt.Sprintf("%02d:%02d", hour, minute)),
				zap.Int("look_ahead_days", schedule.LookAhead),
				zap.Duration("start_jitter", schedule.StartJitter),
				zap.Bool("system_tray", schedule.SystemTray))

			d := daemon.NewDaemon(live, store, loc, schedule, logger)
			return d.Start()
		},
	}
}
