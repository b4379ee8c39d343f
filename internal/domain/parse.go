package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyClock   = errors.New("empty clock value")
	ErrInvalidClock = errors.New("invalid clock value")
)

// ParseClock parses "HH:MM" into minutes since midnight (0..1439).
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyClock
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: expected HH:MM, got %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// ValidateTZ checks that tz is a valid IANA location and returns its
// canonical name.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// Validate checks the fields the scheduler depends on.
func (s Settings) Validate() error {
	if s.UserID == "" {
		return errors.New("missing user id")
	}
	if _, err := ParseClock(s.MorningTime); err != nil {
		return fmt.Errorf("morning time: %w", err)
	}
	if _, err := ParseClock(s.EveningTime); err != nil {
		return fmt.Errorf("evening time: %w", err)
	}
	if _, err := ValidateTZ(s.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if s.StartDate.IsZero() {
		return errors.New("missing start date")
	}
	return nil
}
