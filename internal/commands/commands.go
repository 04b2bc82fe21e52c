// Package commands implements the four user-invoked operations of §4.3:
// CheckIn, CheckOut, StartBreak, EndBreak. Each is a single transaction
// that loads the day's attendance record, drives it through the State
// Engine, and persists the result — the uniform shape every external
// entry point into the core shares with the heartbeat processor and the
// reconcilers (§4, §9 Design Notes).
package commands

import (
	"time"

	"github.com/dipnamdev/attendance-management-backend/internal/cache"
	"github.com/dipnamdev/attendance-management-backend/internal/clock"
	"github.com/dipnamdev/attendance-management-backend/internal/engine"
	"github.com/dipnamdev/attendance-management-backend/internal/logger"
	"github.com/dipnamdev/attendance-management-backend/internal/store"
)

// Commands bundles the dependencies every command handler needs.
type Commands struct {
	tx           store.Transactor
	attendance   store.AttendanceRepository
	breaks       store.LunchBreakRepository
	activityLogs store.ActivityLogRepository
	cache        cache.ActivityCache
	engine       *engine.Engine
	clock        clock.Clock
	log          logger.Logger
	cacheTTL     time.Duration
}

// Deps groups the constructor arguments for Commands.
type Deps struct {
	Tx           store.Transactor
	Attendance   store.AttendanceRepository
	Breaks       store.LunchBreakRepository
	ActivityLogs store.ActivityLogRepository
	Cache        cache.ActivityCache
	Engine       *engine.Engine
	Clock        clock.Clock
	Log          logger.Logger
	CacheTTL     time.Duration
}

// New builds a Commands handler set.
func New(d Deps) *Commands {
	log := d.Log
	if log == nil {
		log = logger.Noop{}
	}
	return &Commands{
		tx:           d.Tx,
		attendance:   d.Attendance,
		breaks:       d.Breaks,
		activityLogs: d.ActivityLogs,
		cache:        d.Cache,
		engine:       d.Engine,
		clock:        d.Clock,
		log:          log.With("commands"),
		cacheTTL:     d.CacheTTL,
	}
}
