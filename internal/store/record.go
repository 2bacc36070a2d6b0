package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Iron-Ham/tasklock/internal/errors"
)

// legacyTimeLayout is the zone-less ISO-8601 form written by older pipeline
// scripts. Such timestamps are interpreted in local time.
const legacyTimeLayout = "2006-01-02T15:04:05.999999"

// Record is the persisted lock state. TaskID, LockedAt and LockedBy are set iff
// Locked is true; an empty string does not count as set.
type Record struct {
	Locked   bool
	TaskID   string
	LockedAt time.Time
	LockedBy string
}

// Unlocked returns the fully-unlocked record.
func Unlocked() Record {
	return Record{}
}

// Held returns a locked record for the given holder.
func Held(taskID, lockedBy string, at time.Time) Record {
	return Record{
		Locked:   true,
		TaskID:   taskID,
		LockedAt: at,
		LockedBy: lockedBy,
	}
}

// Validate checks the record invariant.
func (r Record) Validate() error {
	if r.Locked {
		if r.TaskID == "" {
			return fmt.Errorf("%w: locked record has no taskId", errors.ErrRecordCorrupt)
		}
		if r.LockedAt.IsZero() {
			return fmt.Errorf("%w: locked record has no lockedAt", errors.ErrRecordCorrupt)
		}
		if r.LockedBy == "" {
			return fmt.Errorf("%w: locked record has no lockedBy", errors.ErrRecordCorrupt)
		}
		return nil
	}
	if r.TaskID != "" || !r.LockedAt.IsZero() || r.LockedBy != "" {
		return fmt.Errorf("%w: unlocked record carries holder fields", errors.ErrRecordCorrupt)
	}
	return nil
}

// Age returns how long the record has been held as of now. Zero for unlocked records.
func (r Record) Age(now time.Time) time.Duration {
	if !r.Locked {
		return 0
	}
	return now.Sub(r.LockedAt)
}

// wireRecord is the JSON layout; unlocked records carry explicit nulls.
type wireRecord struct {
	Locked   bool    `json:"locked"`
	TaskID   *string `json:"taskId"`
	LockedAt *string `json:"lockedAt"`
	LockedBy *string `json:"lockedBy"`
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{Locked: r.Locked}
	if r.Locked {
		at := r.LockedAt.UTC().Format(time.RFC3339Nano)
		taskID, lockedBy := r.TaskID, r.LockedBy
		w.TaskID = &taskID
		w.LockedAt = &at
		w.LockedBy = &lockedBy
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Invariant violations are reported as
// errors matching errors.ErrRecordCorrupt.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	rec := Record{Locked: w.Locked}
	if w.TaskID != nil {
		rec.TaskID = *w.TaskID
	}
	if w.LockedBy != nil {
		rec.LockedBy = *w.LockedBy
	}
	if w.LockedAt != nil && *w.LockedAt != "" {
		at, err := parseTimestamp(*w.LockedAt)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrRecordCorrupt, err)
		}
		rec.LockedAt = at
	}

	if err := rec.Validate(); err != nil {
		return err
	}
	*r = rec
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid lockedAt %q", s)
	}
	return t, nil
}

// Encode renders the record as indented JSON, the on-disk format.
func Encode(rec Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock record: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a stored record. Any failure matches errors.ErrRecordCorrupt.
func Decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		if errors.Is(err, errors.ErrRecordCorrupt) {
			return Unlocked(), err
		}
		return Unlocked(), fmt.Errorf("%w: %v", errors.ErrRecordCorrupt, err)
	}
	return rec, nil
}
