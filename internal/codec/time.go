package codec

import "time"

// TimeLayout is the fixed-width minute-resolution timestamp used by the log.
const TimeLayout = "20060102T1504"

// FormatTime renders t in local time at minute resolution.
func FormatTime(t time.Time) string {
	return t.In(time.Local).Format(TimeLayout)
}

// ParseTime parses a log timestamp as local time.
func ParseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, formatErr(s, "invalid timestamp", err)
	}
	return t, nil
}
