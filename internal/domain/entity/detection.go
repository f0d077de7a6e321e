package entity

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidVideo marks videos that cannot be scanned at all: unreadable
	// file, zero or invalid frame rate, zero frames, bad dimensions.
	ErrInvalidVideo = errors.New("invalid video input")
	// ErrNoData is returned by aggregate views over an empty result table.
	ErrNoData = errors.New("no detections")
	// ErrBadTime is returned when a time string is not M:SS.mmm.
	ErrBadTime = errors.New("malformed race time")
)

type Source string

const (
	SourceSolo      Source = "Solo run (no ghost)"
	SourceGhostWon  Source = "Race against ghost (won)"
	SourceGhostLost Source = "Race against ghost (lost)"
)

// Frame is a decoded video frame at a position on the timeline.
type Frame struct {
	Image        image.Image
	TimestampSec float64
}

// Detection is one race result found on screen.
type Detection struct {
	Time         string  `json:"time"`
	TimestampSec float64 `json:"timestamp_seconds"`
	Source       Source  `json:"source"`
}

// ParseTime converts an on-screen race time ("M:SS.mmm") to a duration.
func ParseTime(s string) (time.Duration, error) {
	mins, rest, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	secs, millis, ok := strings.Cut(rest, ".")
	if !ok || len(secs) != 2 || len(millis) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}

	m, err := strconv.Atoi(mins)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	sec, err := strconv.Atoi(secs)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	ms, err := strconv.Atoi(millis)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, s)
	}

	return time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// FormatTotal renders a duration as HH:MM:SS.mmm. Sub-millisecond
// remainders are rounded half to even.
func FormatTotal(d time.Duration) string {
	ms := d / time.Millisecond
	rem := d % time.Millisecond
	half := time.Millisecond / 2
	if rem > half || (rem == half && ms%2 == 1) {
		ms++
	}

	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, ms)
}
