package appointment

import (
	"errors"
	"fmt"
)

// ===============================
// Appointment Status
// ===============================

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusPassed    Status = "passed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusPassed
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusPassed:
		return true
	}
	return false
}

func InitialStatus() Status {
	return StatusPending
}

// ===============================
// Events & Effects
// ===============================

type Event string

const (
	EventConfirm Event = "confirm"
	EventCancel  Event = "cancel"
	// EventEnd is raised by the scheduler when the session window closes.
	EventEnd Event = "end"
)

type Effect string

const (
	EffectScheduleSession    Effect = "schedule_session"
	EffectCancelJobs         Effect = "cancel_jobs"
	EffectNotifyParticipants Effect = "notify_participants"
)

var ErrIllegalTransition = errors.New("illegal_transition")

type IllegalTransitionError struct {
	From  Status
	Event Event
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal_transition: %s on %s", e.Event, e.From)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

type edge struct {
	from  Status
	event Event
}

type outcome struct {
	to      Status
	effects []Effect
}

var transitions = map[edge]outcome{
	{StatusPending, EventConfirm}: {StatusConfirmed, []Effect{EffectScheduleSession, EffectNotifyParticipants}},
	{StatusPending, EventCancel}:  {StatusCancelled, []Effect{EffectCancelJobs, EffectNotifyParticipants}},
	{StatusPending, EventEnd}:     {StatusCancelled, []Effect{EffectNotifyParticipants}},

	{StatusConfirmed, EventCancel}: {StatusCancelled, []Effect{EffectCancelJobs, EffectNotifyParticipants}},
	{StatusConfirmed, EventEnd}:    {StatusPassed, []Effect{EffectNotifyParticipants}},
}

// Transition returns the status reached by applying ev to current and the
// side effects the caller must carry out.
//
// EventEnd on a terminal status is a no-op: it returns current with no
// effects, so replaying an end job after a crash is harmless. Every other
// edge missing from the table is rejected with *IllegalTransitionError.
func Transition(current Status, ev Event) (Status, []Effect, error) {
	if out, ok := transitions[edge{current, ev}]; ok {
		effects := make([]Effect, len(out.effects))
		copy(effects, out.effects)
		return out.to, effects, nil
	}

	if ev == EventEnd && current.IsTerminal() {
		return current, nil, nil
	}

	return current, nil, &IllegalTransitionError{From: current, Event: ev}
}
