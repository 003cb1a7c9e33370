package tours

import (
	"context"
	"log/slog"
)

// Catalog is the lookup surface Matcher needs from the store.
type Catalog interface {
	FindBestMatch(ctx context.Context, tourType, date, timeSlot string) (*Preset, error)
}

// Matcher turns raw extracted hints into a concrete preset. It never returns
// nil: catalog misses and query errors both degrade to the fallback preset so
// the guest always gets an answer.
type Matcher struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewMatcher(catalog Catalog, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{catalog: catalog, logger: logger}
}

// Match normalizes the hints and walks the catalog tiers.
func (m *Matcher) Match(ctx context.Context, tourType, date, timeSlot string) *Preset {
	normType := NormalizeTourType(tourType)
	normDate := NormalizeDate(date)
	normTime := NormalizeTime(timeSlot)

	m.logger.Info("tours: searching catalog",
		"tour_type", normType, "date", normDate, "time_slot", normTime)

	preset, err := m.catalog.FindBestMatch(ctx, normType, normDate, normTime)
	if err != nil {
		m.logger.Error("tours: catalog lookup failed, using fallback", "error", err)
		return FallbackPreset()
	}
	if preset == nil {
		m.logger.Warn("tours: no active presets in catalog, using fallback",
			"tour_type", normType, "date", normDate, "time_slot", normTime)
		return FallbackPreset()
	}

	m.logger.Info("tours: matched preset",
		"preset_id", preset.ID, "tour_type", preset.TourType,
		"date", preset.Date, "time_slot", preset.TimeSlot, "guide", preset.GuideName)
	return preset
}
