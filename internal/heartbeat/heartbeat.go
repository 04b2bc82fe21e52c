// Package heartbeat implements the Heartbeat Processor (§4.2): the
// hot-path entry point that classifies each agent heartbeat, drives the
// State Engine, retroactively back-dates idle time the client was silent
// for, and triggers auto-checkout on a client that has gone dark.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/cache"
	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/commands"
	"github.com/dipnamdev/attendance-management-backend/internal/domain"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// Sample is the raw per-interval telemetry an agent reports.
type Sample struct {
	ActiveWindow      string
	ActiveApplication string
	URL               string
	MouseClicks       int64
	KeyboardStrokes   int64
	ClientIsActive    bool
	ClientIdleSeconds int64
}

func (s Sample) hasInput() bool {
	return s.MouseClicks+s.KeyboardStrokes > 0
}

// Result is returned to the transport layer on a successful heartbeat.
type Result struct {
	Record         *domain.AttendanceRecord
	CurrentState   domain.State
	AutoCheckedOut bool
}

// Config holds the processor's time thresholds, per §4.2.
type Config struct {
	RetroactiveIdleThreshold time.Duration // default 5 min
	AutoCheckoutThreshold    time.Duration // default 60 min
	CacheTTL                 time.Duration // default 24 h
}

// DefaultConfig returns the thresholds literally named in the spec.
func DefaultConfig() Config {
	return Config{
		RetroactiveIdleThreshold: 5 * time.Minute,
		AutoCheckoutThreshold:    60 * time.Minute,
		CacheTTL:                 24 * time.Hour,
	}
}

// Processor implements the heartbeat contract.
type Processor struct {
	tx           store.Transactor
	attendance   store.AttendanceRepository
	activityLogs store.ActivityLogRepository
	inputSamples store.InputSampleRepository
	cache        cache.ActivityCache
	engine       *engine.Engine
	clock        clock.Clock
	commands     *commands.Commands
	log          logger.Logger
	cfg          Config
}

// Deps groups the constructor arguments for Processor.
type Deps struct {
	Tx           store.Transactor
	Attendance   store.AttendanceRepository
	ActivityLogs store.ActivityLogRepository
	InputSamples store.InputSampleRepository
	Cache        cache.ActivityCache
	Engine       *engine.Engine
	Clock        clock.Clock
	Commands     *commands.Commands
	Log          logger.Logger
	Config       Config
}

// New builds a Processor.
func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.Noop{}
	}
	cfg := d.Config
	if cfg.RetroactiveIdleThreshold == 0 {
		cfg.RetroactiveIdleThreshold = DefaultConfig().RetroactiveIdleThreshold
	}
	if cfg.AutoCheckoutThreshold == 0 {
		cfg.AutoCheckoutThreshold = DefaultConfig().AutoCheckoutThreshold
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	return &Processor{
		tx:           d.Tx,
		attendance:   d.Attendance,
		activityLogs: d.ActivityLogs,
		inputSamples: d.InputSamples,
		cache:        d.Cache,
		engine:       d.Engine,
		clock:        d.Clock,
		commands:     d.Commands,
		log:          log.With("heartbeat"),
		cfg:          cfg,
	}
}

// errAutoCheckout aborts the heartbeat transaction without persisting any
// mutation, so the caller-visible checkout happens in its own transaction
// per §5's "release before invoking another command" rule.
var errAutoCheckout = errors.New("heartbeat: gap exceeds auto-checkout threshold")

// Process runs the full contract of §4.2 for one heartbeat.
func (p *Processor) Process(ctx context.Context, userID string, sample Sample, now time.Time) (*Result, error) {
	date := clock.NormalizeDate(now, p.clock.Location())

	var (
		recordID       string
		desiredState   domain.State
		autoCheckoutAt time.Time
	)

	err := p.tx.WithTx(ctx, func(ctx context.Context, q store.Queryer) error {
		rec, err := p.attendance.GetByUserAndDate(ctx, q, userID, date)
		if err != nil {
			return fmt.Errorf("heartbeat: load attendance record: %w", err)
		}
		if rec == nil || rec.CheckInTime == nil {
			return domain.ErrNotCheckedIn
		}
		if rec.CheckOutTime != nil {
			return domain.ErrAlreadyCheckedOut
		}
		recordID = rec.ID

		last, _ := p.cache.GetLastActivity(ctx, userID)
		lastInputTs := last.LastInputTs
		if lastInputTs.IsZero() {
			lastInputTs = now
		}

		hasInput := sample.hasInput()

		// gap is measured against the value the server already had cached
		// before this heartbeat: it is the server's own notion of "how
		// long since we last knew about real input", and is what detects a
		// silent client that only now resumed sending heartbeats. The
		// client's own idle_time_seconds, when present, is a more precise
		// reading of the same quantity and replaces it.
		gap := now.Sub(lastInputTs)
		if sample.ClientIdleSeconds > 0 {
			gap = time.Duration(sample.ClientIdleSeconds) * time.Second
		}

		if gap > p.cfg.AutoCheckoutThreshold {
			autoCheckoutAt = now
			return errAutoCheckout
		}

		if gap > p.cfg.RetroactiveIdleThreshold && rec.CurrentState == domain.StateWorking {
			p.engine.ApplyTransition(rec, domain.StateIdle, lastInputTs)
		}

		// effectiveLastInputTs is the server's updated belief about when
		// input last occurred, used for the desired-state check and for
		// what gets cached going forward (§4.2 step 3).
		effectiveLastInputTs := lastInputTs
		switch {
		case sample.ClientIdleSeconds > 0:
			effectiveLastInputTs = now.Add(-time.Duration(sample.ClientIdleSeconds) * time.Second)
		case hasInput:
			effectiveLastInputTs = now
		}

		if hasInput || now.Sub(effectiveLastInputTs) < p.cfg.RetroactiveIdleThreshold {
			desiredState = domain.StateWorking
		} else {
			desiredState = domain.StateIdle
		}

		if desiredState != rec.CurrentState && rec.CurrentState != domain.StateLunch {
			transitionAt := effectiveLastInputTs
			if rec.LastStateChangeAt != nil && rec.LastStateChangeAt.After(transitionAt) {
				transitionAt = *rec.LastStateChangeAt
			}
			p.engine.ApplyTransition(rec, desiredState, transitionAt)

			if err := p.closeOpenActivityLog(ctx, q, rec.ID, transitionAt); err != nil {
				return err
			}
			seg := domain.SegmentActive
			if desiredState == domain.StateIdle {
				seg = domain.SegmentIdle
			}
			if err := p.openActivityLog(ctx, q, rec.ID, seg, transitionAt); err != nil {
				return err
			}
		}

		sampleRow := domain.NewInputSample(rec.ID, now)
		sampleRow.ActiveWindow = sample.ActiveWindow
		sampleRow.ActiveApplication = sample.ActiveApplication
		sampleRow.URL = sample.URL
		sampleRow.MouseClicks = sample.MouseClicks
		sampleRow.KeyboardStrokes = sample.KeyboardStrokes
		sampleRow.ClientIsActive = sample.ClientIsActive
		sampleRow.ClientIdleSeconds = sample.ClientIdleSeconds
		if err := p.inputSamples.Create(ctx, q, sampleRow); err != nil {
			return fmt.Errorf("heartbeat: create input sample: %w", err)
		}

		if err := p.attendance.Update(ctx, q, rec); err != nil {
			return fmt.Errorf("heartbeat: update attendance record: %w", err)
		}

		p.cache.SetLastActivity(ctx, userID, cache.LastActivity{
			LastInputTs:     effectiveLastInputTs,
			LastHeartbeatTs: now,
		}, p.cfg.CacheTTL)
		p.cache.SetCurrentState(ctx, userID, rec.CurrentState, p.cfg.CacheTTL)

		desiredState = rec.CurrentState
		return nil
	})

	if errors.Is(err, errAutoCheckout) {
		rec, coErr := p.commands.CheckOut(ctx, userID, autoCheckoutAt, "", "", "heartbeat: gap exceeded auto-checkout threshold")
		if coErr != nil && !errors.Is(coErr, domain.ErrAlreadyCheckedOut) {
			p.log.Error("heartbeat: auto checkout failed", "user_id", userID, "record_id", recordID, "err", coErr)
			return nil, coErr
		}
		return &Result{Record: rec, CurrentState: domain.StateNone, AutoCheckedOut: true}, domain.ErrAutoCheckedOut
	}
	if err != nil {
		return nil, err
	}

	return &Result{CurrentState: desiredState}, nil
}

func (p *Processor) closeOpenActivityLog(ctx context.Context, q store.Queryer, recordID string, at time.Time) error {
	open, err := p.activityLogs.GetOpenByRecord(ctx, q, recordID)
	if err != nil {
		return fmt.Errorf("heartbeat: load open activity log: %w", err)
	}
	if open == nil {
		return nil
	}
	open.Close(at)
	if err := p.activityLogs.Update(ctx, q, open); err != nil {
		return fmt.Errorf("heartbeat: close activity log: %w", err)
	}
	return nil
}

func (p *Processor) openActivityLog(ctx context.Context, q store.Queryer, recordID string, segType domain.SegmentType, at time.Time) error {
	seg := domain.NewActivityLog(recordID, segType, at)
	if err := p.activityLogs.Create(ctx, q, seg); err != nil {
		return fmt.Errorf("heartbeat: open activity log: %w", err)
	}
	return nil
}
