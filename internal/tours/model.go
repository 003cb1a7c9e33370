// Package tours holds the tour preset catalog: normalization of extracted
// booking hints, catalog lookup, and the guest-facing response template.
package tours

import "time"

// Preset is one bookable tour slot. Date and TimeSlot are free-form labels
// ("tomorrow", "9 AM") rather than timestamps; guests write them that way and
// matching is substring-based.
type Preset struct {
	ID                 int64
	TourType           string
	Date               string
	TimeSlot           string
	GuideName          string
	MeetingLocation    string
	IdentifiableObject string
	GuidePhoneNumber   string
	IsActive           bool
	MaxCapacity        int
	Price              *float64
	Description        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FallbackPreset is returned when the catalog has no usable row. It keeps the
// guest conversation going with generic details a human can later correct.
func FallbackPreset() *Preset {
	return &Preset{
		ID:                 0,
		TourType:           "General Tour",
		Date:               "tomorrow",
		TimeSlot:           "9 AM",
		GuideName:          "our friendly team",
		MeetingLocation:    "your hotel lobby",
		IdentifiableObject: "a small sign with our company logo",
		GuidePhoneNumber:   "Please contact our main office",
		IsActive:           true,
		Description:        "We'll arrange a wonderful tour experience for you!",
	}
}
