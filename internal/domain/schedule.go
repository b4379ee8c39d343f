package domain

import "time"

const (
	// HorizonDays caps schedule generation regardless of catalog authoring.
	HorizonDays = 365

	// welcomeDelay is how long after first launch the welcome message fires.
	// Relative to "now", not to a time-of-day slot.
	welcomeDelay = time.Hour
)

// slotOrder fixes the emission order of same-day templates.
var slotOrder = []TimeOfDay{Morning, Midday, Evening}

// BuildSchedule computes all future notifications for a user from the start
// date: one record per authored (day, time of day) slot through the horizon,
// rendered once with the user's language, buddy and gender. Slots whose
// instant is not strictly after now are dropped. Callers must clear the old
// schedule before persisting the result.
func BuildSchedule(cat *Catalog, s Settings, now time.Time) []Notification {
	if !s.Enabled {
		return nil
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc = time.UTC
	}
	morning, err := ParseClock(s.MorningTime)
	if err != nil {
		morning = 9 * 60
	}
	evening, err := ParseClock(s.EveningTime)
	if err != nil {
		evening = 21 * 60
	}

	// Buddy lookup degrades to the raw settings field, never fails.
	buddy := s.BuddyName
	if name, ok := cat.BuddyName(s.BuddyID, s.Language); ok {
		buddy = name
	}

	now = now.UTC()
	daysSince := int(now.Sub(s.StartDate) / (24 * time.Hour))
	if daysSince < 0 {
		daysSince = 0
	}

	var out []Notification

	// First-ever run gets a welcome message one hour in.
	if daysSince == 0 {
		if tpl, ok := cat.Special(WelcomeTemplateID); ok {
			out = append(out, record(s, tpl, buddy, now.Add(welcomeDelay), now))
		}
	}

	horizon := cat.MaxDay()
	if horizon > HorizonDays {
		horizon = HorizonDays
	}

	startLocal := s.StartDate.In(loc)
	firstDay := daysSince + 1
	if firstDay < 1 {
		firstDay = 1
	}
	for day := firstDay; day <= horizon; day++ {
		for _, tod := range slotOrder {
			tpl, ok := cat.Lookup(day, tod)
			if !ok {
				continue
			}
			mins := morning
			if tod == Evening {
				mins = evening
			}
			// Day N fires startDate + (N-1) days, at the slot's local clock time.
			d := startLocal.AddDate(0, 0, day-1)
			at := time.Date(d.Year(), d.Month(), d.Day(), mins/60, mins%60, 0, 0, loc)
			if !at.After(now) {
				continue
			}
			out = append(out, record(s, tpl, buddy, at.UTC(), now))
		}
	}
	return out
}

func record(s Settings, tpl *Template, buddy string, at, now time.Time) Notification {
	return Notification{
		ID:          NotificationID(s.UserID, tpl.ID),
		UserID:      s.UserID,
		TemplateID:  tpl.ID,
		Day:         tpl.Day,
		TimeOfDay:   tpl.TimeOfDay,
		Category:    tpl.Category,
		Message:     Render(tpl, s.Language, buddy, s.Gender),
		ScheduledAt: at,
		CreatedAt:   now,
	}
}
