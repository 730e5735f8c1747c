package core

import "time"

// Guard allows a mutation only when the caller owns the entity.
func Guard(ownerID, callerID ID) error {
	if ownerID != callerID {
		return ErrForbidden
	}
	return nil
}

// Clock is injected wherever a timestamp is stamped on an entity.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
