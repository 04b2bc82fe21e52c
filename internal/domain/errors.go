package domain

import "errors"

// Domain rejections surfaced at the public API boundary (§6). These never
// wrap a store error — they represent a legitimate business outcome, not a
// failure, and callers should switch on errors.Is rather than inspect text.
var (
	ErrNotCheckedIn       = errors.New("attendance: not checked in")
	ErrAlreadyCheckedIn   = errors.New("attendance: already checked in")
	ErrAlreadyCheckedOut  = errors.New("attendance: already checked out")
	ErrBreakAlreadyStarted = errors.New("attendance: break already started")
	ErrNoActiveBreak      = errors.New("attendance: no active break")
	ErrAutoCheckedOut     = errors.New("attendance: auto checked out")
)
