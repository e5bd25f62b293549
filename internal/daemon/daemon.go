package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jupiterbjy/gotigris/internal/roster"
	"github.com/jupiterbjy/gotigris/pkg/dateutil"
	"github.com/jupiterbjy/gotigris/pkg/random"
	"go.uber.org/zap"
)

// Schedule describes when and how the daily refresh runs.
type Schedule struct {
	Hour        int // Hour to run the daily refresh (0-23), portal timezone
	Minute      int // Minute to run the daily refresh (0-59)
	LookAhead   int // Days to fetch ahead of today
	StartJitter time.Duration
	SystemTray  bool // Show system tray icon (Windows only)
}

// Daemon periodically refreshes the absence snapshot from the portal and
// logs who is out today.
type Daemon struct {
	source   roster.Source
	snapshot *roster.SnapshotStore
	loc      *time.Location
	schedule Schedule
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	trayApp *TrayApp

	mu             sync.Mutex
	refreshRunning bool
	lastRunDate    string // Track last successful run date to avoid duplicates
	lastRunTime    time.Time
	lastEventCount int
	lastOutToday   int
}

// NewDaemon creates a new daemon instance.
func NewDaemon(source roster.Source, snapshot *roster.SnapshotStore, loc *time.Location, schedule Schedule, logger *zap.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	if loc == nil {
		loc = time.Local
	}
	if schedule.LookAhead <= 0 {
		schedule.LookAhead = 7
	}

	return &Daemon{
		source:   source,
		snapshot: snapshot,
		loc:      loc,
		schedule: schedule,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the daemon, blocking until it stops.
func (d *Daemon) Start() error {
	if d.schedule.SystemTray {
		d.logger.Info("Initializing system tray")
		trayApp, err := NewTrayApp(d, d.logger)
		if err != nil {
			d.logger.Warn("Failed to initialize system tray", zap.Error(err))
			// Fall back to console mode
			d.runScheduledLogic()
			return nil
		}
		d.trayApp = trayApp
		// Run tray (blocks until Quit)
		d.trayApp.Run()
		return nil
	}

	d.logger.Info("Running without system tray")
	d.runScheduledLogic()
	return nil
}

// Stop stops the daemon
func (d *Daemon) Stop() {
	d.cancel()
}

// runScheduledLogic runs the scheduled refresh loop (called from tray or standalone)
func (d *Daemon) runScheduledLogic() {
	d.logger.Info("Daemon scheduled logic started",
		zap.Int("daily_hour", d.schedule.Hour),
		zap.Int("daily_minute", d.schedule.Minute),
		zap.Int("look_ahead_days", d.schedule.LookAhead),
		zap.String("timezone", d.loc.String()))

	// Run immediately if the scheduled time already passed today.
	now := time.Now().In(d.loc)
	today := now.Format("2006-01-02")

	scheduledToday := time.Date(now.Year(), now.Month(), now.Day(),
		d.schedule.Hour, d.schedule.Minute, 0, 0, d.loc)

	if now.After(scheduledToday) && d.lastRunDate != today {
		d.logger.Info("Scheduled time already passed today, refreshing now",
			zap.Time("scheduled_time", scheduledToday),
			zap.Time("current_time", now))

		if err := d.runRefresh(); err != nil {
			d.logger.Error("Initial refresh failed", zap.Error(err))
			if d.trayApp != nil {
				d.trayApp.ShowNotification("Refresh Failed", fmt.Sprintf("Error: %v", err))
			}
		} else if d.trayApp != nil {
			d.trayApp.ShowNotification("Refresh Completed", "Absence snapshot is up to date")
		}
	}

	nextRun := d.calculateNextRun()
	d.logger.Info("Next refresh scheduled",
		zap.Time("next_run", nextRun),
		zap.Duration("wait_duration", time.Until(nextRun)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Check every minute if it's time to run
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Info("Daemon stopped")
			if d.trayApp != nil {
				d.trayApp.Stop()
			}
			return

		case sig := <-sigChan:
			d.logger.Info("Received signal, shutting down",
				zap.String("signal", sig.String()))
			if d.trayApp != nil {
				d.trayApp.Stop()
			}
			d.Stop()
			return

		case now := <-ticker.C:
			if !d.shouldRunAt(now) {
				continue
			}

			today := now.In(d.loc).Format("2006-01-02")
			if d.lastRunDate == today {
				d.logger.Debug("Already refreshed today, skipping")
				continue
			}

			// Spread the fetch so an org's clients don't all hit the
			// portal at the same second.
			if jitter := random.Jitter(d.schedule.StartJitter); jitter > 0 {
				d.logger.Info("Delaying refresh", zap.Duration("jitter", jitter))
				select {
				case <-d.ctx.Done():
					continue
				case <-time.After(jitter):
				}
			}

			d.logger.Info("Starting scheduled refresh", zap.Time("time", now))

			if err := d.runRefresh(); err != nil {
				d.logger.Error("Refresh failed", zap.Error(err))
				if d.trayApp != nil {
					d.trayApp.ShowNotification("Refresh Failed", fmt.Sprintf("Error: %v", err))
				}
				continue
			}

			if d.trayApp != nil {
				d.trayApp.ShowNotification("Refresh Completed", "Absence snapshot is up to date")
			}

			nextRun = d.calculateNextRun()
			d.logger.Info("Next refresh scheduled",
				zap.Time("next_run", nextRun),
				zap.Duration("wait_duration", time.Until(nextRun)))
		}
	}
}

// runRefresh fetches the coming days from the portal and saves the snapshot.
// Protected with a mutex so a tray-triggered refresh can't race the schedule.
func (d *Daemon) runRefresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refreshRunning {
		d.logger.Warn("Refresh already running, skipping concurrent execution")
		return fmt.Errorf("refresh already in progress")
	}

	today := dateutil.Today(d.loc)
	todayStr := today.Format("2006-01-02")
	if d.lastRunDate == todayStr {
		d.logger.Info("Already refreshed today, skipping",
			zap.String("last_run_date", d.lastRunDate),
			zap.Time("last_run_time", d.lastRunTime))
		return nil
	}

	d.refreshRunning = true
	defer func() {
		d.refreshRunning = false
	}()

	from := today
	to := dateutil.EndOfDay(today.AddDate(0, 0, d.schedule.LookAhead))

	d.logger.Info("Refreshing absence snapshot",
		zap.Time("from", from),
		zap.Time("to", to))

	events, err := d.source.Events(d.ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	if d.snapshot != nil {
		if err := d.snapshot.Save(from, to, events); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
	}

	outToday := 0
	for _, ev := range events {
		start, err := ev.Start()
		if err != nil {
			continue
		}
		end, err := ev.End()
		if err != nil {
			continue
		}
		if ev.IsGlobal() {
			continue
		}
		if !start.After(dateutil.EndOfDay(today)) && !end.Before(today) {
			outToday++
			d.logger.Info("Out today",
				zap.String("person", ev.Data().PersonInfo),
				zap.String("leave", ev.Data().LeaveName))
		}
	}

	d.logger.Info("Refresh completed",
		zap.Int("events", len(events)),
		zap.Int("out_today", outToday),
		zap.Time("date", today))

	d.lastRunDate = todayStr
	d.lastRunTime = time.Now()
	d.lastEventCount = len(events)
	d.lastOutToday = outToday

	return nil
}

// RefreshNow triggers an immediate refresh (called from tray menu)
func (d *Daemon) RefreshNow() {
	d.logger.Info("Manual refresh triggered from tray")

	// A manual refresh is always wanted, so forget today's dedupe mark.
	d.mu.Lock()
	d.lastRunDate = ""
	d.mu.Unlock()

	if err := d.runRefresh(); err != nil {
		d.logger.Error("Manual refresh failed", zap.Error(err))
		if d.trayApp != nil {
			d.trayApp.ShowNotification("Refresh Failed", fmt.Sprintf("Error: %v", err))
		}
		return
	}

	d.logger.Info("Manual refresh completed successfully")
	if d.trayApp != nil {
		d.trayApp.ShowNotification("Refresh Completed", "Absence snapshot is up to date")
	}
}

// GetStatus returns daemon status
func (d *Daemon) GetStatus() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	return map[string]interface{}{
		"running":       true,
		"last_run_date": d.lastRunDate,
		"last_run_time": d.lastRunTime.Format(time.RFC3339),
		"next_run":      d.calculateNextRun().Format(time.RFC3339),
		"events":        d.lastEventCount,
		"out_today":     d.lastOutToday,
	}
}

// calculateNextRun calculates the next scheduled run time (portal timezone)
func (d *Daemon) calculateNextRun() time.Time {
	now := time.Now().In(d.loc)

	today := time.Date(now.Year(), now.Month(), now.Day(),
		d.schedule.Hour, d.schedule.Minute, 0, 0, d.loc)

	if now.After(today) || now.Equal(today) {
		return today.AddDate(0, 0, 1)
	}

	return today
}

// shouldRunAt checks if the refresh should run at the given time
func (d *Daemon) shouldRunAt(now time.Time) bool {
	local := now.In(d.loc)

	// Within the 1 minute tick window of the scheduled time.
	return local.Hour() == d.schedule.Hour &&
		local.Minute() == d.schedule.Minute
}
