package draft

import "time"

// DefaultInterval is the quiet period before a pending save is due.
const DefaultInterval = 2 * time.Second

// Autosaver tracks one pending save. Each Touch pushes the deadline out, so a
// save happens only after Interval without edits.
type Autosaver struct {
	Interval time.Duration

	deadline time.Time
	pending  bool
}

func (a *Autosaver) interval() time.Duration {
	if a.Interval > 0 {
		return a.Interval
	}
	return DefaultInterval
}

// Touch records an edit at now.
func (a *Autosaver) Touch(now time.Time) {
	a.deadline = now.Add(a.interval())
	a.pending = true
}

// Pending reports whether an edit has not been saved yet.
func (a *Autosaver) Pending() bool { return a.pending }

// Deadline returns when the pending save becomes due.
func (a *Autosaver) Deadline() (time.Time, bool) {
	return a.deadline, a.pending
}

// Due reports whether the pending save should run at now.
func (a *Autosaver) Due(now time.Time) bool {
	return a.pending && !now.Before(a.deadline)
}

// Flush runs save if a save is pending, regardless of the deadline, and
// clears it on success. A failed save stays pending.
func (a *Autosaver) Flush(save func() error) error {
	if !a.pending {
		return nil
	}
	if err := save(); err != nil {
		return err
	}
	a.pending = false
	a.deadline = time.Time{}
	return nil
}

// FlushIfDue runs Flush only when the save is due at now.
func (a *Autosaver) FlushIfDue(now time.Time, save func() error) (bool, error) {
	if !a.Due(now) {
		return false, nil
	}
	if err := a.Flush(save); err != nil {
		return false, err
	}
	return true, nil
}
