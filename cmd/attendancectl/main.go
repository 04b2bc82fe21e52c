// Command attendancectl is a read-only operator CLI over the attendance
// core (§6, SPEC_FULL.md §D): it opens the same store directly and
// renders a user's current day or history, the way the teacher's own CLI
// renders session status.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dipnamdev/attendance-management-backend/internal/api"
	"github.com/dipnamdev/attendance-management-backend/internal/cache"
	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/commands"
	"github.com/dipnamdev/attendance-management-backend/internal/config"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/heartbeat"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store/sqlite"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgCyan, color.Bold)
)

var (
	configPath  string
	historyFrom string
	historyTo   string
)

func main() {
	root := &cobra.Command{
		Use:   "attendancectl",
		Short: "Operator CLI for the attendance tracking core",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file (optional)")

	root.AddCommand(newTodayCmd())
	root.AddCommand(newHistoryCmd())

	if err := root.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today <user-id>",
		Short: "Show a user's attendance for today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFacade()
			if err != nil {
				return err
			}

			today, err := a.GetTodayAttendance(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get today's attendance: %w", err)
			}
			if today == nil {
				fmt.Printf("no attendance record for %s today\n", args[0])
				return nil
			}

			printTodayTable(today)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show a user's attendance history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFacade()
			if err != nil {
				return err
			}

			start, err := parseDateFlag(historyFrom)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := parseDateFlag(historyTo)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			recs, err := a.GetAttendanceHistory(cmd.Context(), args[0], start, end)
			if err != nil {
				return fmt.Errorf("get attendance history: %w", err)
			}
			printHistoryTable(recs)
			return nil
		},
	}
	cmd.Flags().StringVar(&historyFrom, "from", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&historyTo, "to", "", "end date, YYYY-MM-DD")
	return cmd
}

func parseDateFlag(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// openFacade wires up a standalone façade against the configured store,
// bypassing the HTTP transport entirely — attendancectl talks to the same
// SQLite file the daemon does.
func openFacade() (*api.API, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.Noop{}

	db, err := sqlite.Open(sqlite.Config{DSN: cfg.Store.DSN})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	activityCache := cache.New(cache.Config{
		Enabled: cfg.Cache.Enabled,
		Addr:    cfg.Cache.Addr,
		DB:      cfg.Cache.DB,
	}, log)

	clk := clock.NewSystem(cfg.Tracking.Timezone)
	eng := engine.New(log)

	attendance := sqlite.NewAttendanceRepository()
	breaks := sqlite.NewLunchBreakRepository()
	activityLogs := sqlite.NewActivityLogRepository()
	inputSamples := sqlite.NewInputSampleRepository()

	cmd := commands.New(commands.Deps{
		Tx: db, Attendance: attendance, Breaks: breaks, ActivityLogs: activityLogs,
		Cache: activityCache, Engine: eng, Clock: clk, Log: log, CacheTTL: cfg.Tracking.CacheTTL,
	})
	hb := heartbeat.New(heartbeat.Deps{
		Tx: db, Attendance: attendance, ActivityLogs: activityLogs, InputSamples: inputSamples,
		Cache: activityCache, Engine: eng, Clock: clk, Commands: cmd, Log: log,
	})

	return api.New(api.Deps{
		Tx: db, Attendance: attendance, Commands: cmd, Heartbeat: hb, Engine: eng, Clock: clk, Log: log,
	}), nil
}

func printTodayTable(t *api.TodayAttendance) {
	headerColor.Println("Today's Attendance")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.SetBorder(false)

	checkIn := "-"
	if t.Record.CheckInTime != nil {
		checkIn = t.Record.CheckInTime.Format(time.Kitchen)
	}
	checkOut := "-"
	if t.Record.CheckOutTime != nil {
		checkOut = t.Record.CheckOutTime.Format(time.Kitchen)
	}

	table.Append([]string{"Check-in", checkIn})
	table.Append([]string{"Check-out", checkOut})
	table.Append([]string{"Current state", string(t.Record.CurrentState)})
	table.Append([]string{"Active", t.LiveActive.Round(time.Second).String()})
	table.Append([]string{"Idle", t.LiveIdle.Round(time.Second).String()})
	table.Append([]string{"Break", t.LiveBreak.Round(time.Second).String()})
	table.Append([]string{"Tracked", t.LiveTracked.Round(time.Second).String()})
	table.Render()

	if t.Record.CheckOutTime == nil {
		successColor.Println("status: active")
	}
}

func printHistoryTable(recs []*domain.AttendanceRecord) {
	headerColor.Println("Attendance History")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Check-in", "Check-out", "Active", "Idle", "Break"})
	table.SetBorder(false)

	for _, rec := range recs {
		checkIn := "-"
		if rec.CheckInTime != nil {
			checkIn = rec.CheckInTime.Format(time.Kitchen)
		}
		checkOut := "-"
		if rec.CheckOutTime != nil {
			checkOut = rec.CheckOutTime.Format(time.Kitchen)
		}
		table.Append([]string{
			rec.Date.Format("2006-01-02"),
			checkIn,
			checkOut,
			(time.Duration(rec.ActiveSeconds) * time.Second).String(),
			(time.Duration(rec.IdleSeconds) * time.Second).String(),
			(time.Duration(rec.LunchSeconds) * time.Second).String(),
		})
	}
	table.Render()
}
