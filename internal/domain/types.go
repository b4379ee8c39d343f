package domain

import "time"

// TimeOfDay identifies which daily send slot a template belongs to.
type TimeOfDay string

const (
	Morning TimeOfDay = "morning"
	Evening TimeOfDay = "evening"
	// Midday slots fire at the user's morning time.
	Midday TimeOfDay = "day"
)

// Category is the motivational category of a template.
type Category string

const (
	CategoryStart       Category = "start"
	CategorySupport     Category = "support"
	CategoryCelebration Category = "celebration"
	CategoryFinal       Category = "final"
)

// Gender values substituted into gendered word forms.
// Any other value leaves template text unchanged.
const (
	GenderMan  = "man"
	GenderLady = "lady"
)

// Settings holds per-user notification preferences and the quit anchor.
type Settings struct {
	UserID      string
	Language    string
	BuddyName   string
	BuddyID     string
	Gender      string
	StartDate   time.Time // UTC
	MorningTime string    // HH:MM in Timezone
	EveningTime string    // HH:MM in Timezone
	Timezone    string    // IANA zone name
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Notification is one scheduled slot, rendered and pinned to an instant.
// ID is UserID + "_" + TemplateID so regeneration upserts instead of
// duplicating.
type Notification struct {
	ID          string
	UserID      string
	TemplateID  string
	Day         int
	TimeOfDay   TimeOfDay
	Category    Category
	Message     string
	ScheduledAt time.Time // UTC
	Sent        bool
	SentAt      *time.Time // UTC, nullable
	CreatedAt   time.Time  // UTC
}

// Stats summarizes a user's schedule.
type Stats struct {
	Total   int
	Sent    int
	Pending int
	Next    *Notification
}

// NotificationID builds the deterministic record id for a user/template pair.
func NotificationID(userID, templateID string) string {
	return userID + "_" + templateID
}

// DefaultSettings returns first-launch settings anchored at now.
func DefaultSettings(userID, language, tz string, now time.Time) Settings {
	return Settings{
		UserID:      userID,
		Language:    language,
		BuddyName:   "Buddy",
		Gender:      GenderMan,
		StartDate:   now.UTC(),
		MorningTime: "09:00",
		EveningTime: "21:00",
		Timezone:    tz,
		Enabled:     true,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}
