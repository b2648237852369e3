package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrDeliveryTime      = errors.New("actual delivery time is only recorded for delivered orders")
)

// transitions is the whole lifecycle: pending → accepted → delivered, pending → rejected.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDelivered, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the forward moves from s; empty for terminal states.
func NextStatuses(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// Change is an operator's status request. Confirmed lets a change outside the
// lifecycle table through; it is the explicit override.
type Change struct {
	Status             Status
	ActualDeliveryTime *time.Time
	Confirmed          bool
}

// CheckChange validates a change against the current status without applying it.
// Re-applying the current status is accepted and is a no-op.
func CheckChange(current Status, c Change) error {
	if !c.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status)
	}
	if c.ActualDeliveryTime != nil && c.Status != StatusDelivered {
		return fmt.Errorf("%w: status %s", ErrDeliveryTime, c.Status)
	}
	if c.Status == current || c.Confirmed || CanTransition(current, c.Status) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, c.Status)
}

// Apply moves the order to c.Status and appends exactly one history event.
// It reports false, and appends nothing, when the status is already current.
// Only delivered orders keep an actual delivery time.
func (o *Order) Apply(c Change, now time.Time) (bool, error) {
	if err := CheckChange(o.Status, c); err != nil {
		return false, err
	}
	if c.Status == o.Status {
		return false, nil
	}
	o.Status = c.Status
	if c.Status == StatusDelivered {
		at := now
		if c.ActualDeliveryTime != nil {
			at = *c.ActualDeliveryTime
		}
		o.ActualDeliveryTime = &at
	} else {
		o.ActualDeliveryTime = nil
	}
	o.History = append(o.History, StatusEvent{Status: c.Status, Timestamp: now})
	o.UpdatedAt = now
	return true, nil
}
