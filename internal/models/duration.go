package models

import (
	"encoding/json"
	"time"
)

// Minutes is a time.Duration that marshals to/from JSON as an integer number
// of minutes, matching the wire format spec §6 requires for all request and
// annotation-encoded durations.
type Minutes time.Duration

func (m Minutes) Duration() time.Duration { return time.Duration(m) }

func MinutesFromDuration(d time.Duration) Minutes { return Minutes(d) }

func (m Minutes) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(m) / time.Minute))
}

func (m *Minutes) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = Minutes(time.Duration(n) * time.Minute)
	return nil
}

// UnixSeconds is a time.Time that marshals to/from JSON as seconds-since-epoch,
// matching the wire format spec §6 requires for all response timestamps.
type UnixSeconds time.Time

func (t UnixSeconds) Time() time.Time { return time.Time(t) }

func UnixSecondsFromTime(t time.Time) UnixSeconds { return UnixSeconds(t) }

func (t UnixSeconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Unix())
}

func (t *UnixSeconds) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = UnixSeconds(time.Unix(n, 0).UTC())
	return nil
}
