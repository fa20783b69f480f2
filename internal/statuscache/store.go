package statuscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// seriesTTL bounds how long a finished series' snapshot remains
// queryable before the cache reclaims it.
const seriesTTL = 24 * time.Hour

// SeriesSnapshot is the introspectable state of one series' reception
// progress, as reported by the admin API.
type SeriesSnapshot struct {
	PacsName          string    `json:"pacs_name"`
	SeriesInstanceUID string    `json:"series_instance_uid"`
	Ndicom            uint32    `json:"ndicom"`
	Done              bool      `json:"done"`
	LastError         string    `json:"last_error,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Store is the typed façade over Cache used by the rest of the
// pipeline to record and the admin API to read progress snapshots.
type Store struct {
	cache Cache
}

// NewStore wraps cache. A nil cache makes every operation a no-op, so
// the status cache can be disabled without special-casing callers.
func NewStore(cache Cache) *Store {
	return &Store{cache: cache}
}

// PutSeries records the latest snapshot for a series.
func (s *Store) PutSeries(ctx context.Context, snap SeriesSnapshot) {
	if s.cache == nil {
		return
	}
	snap.UpdatedAt = time.Now()
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal series snapshot")
		return
	}
	if err := s.cache.Set(ctx, SeriesKey(snap.PacsName, snap.SeriesInstanceUID), raw, seriesTTL); err != nil {
		log.Warn().Err(err).Msg("failed to write series snapshot")
	}
}

// GetSeries retrieves the last recorded snapshot for a series, if any.
func (s *Store) GetSeries(ctx context.Context, pacsName, seriesInstanceUID string) (SeriesSnapshot, bool) {
	if s.cache == nil {
		return SeriesSnapshot{}, false
	}
	raw, err := s.cache.Get(ctx, SeriesKey(pacsName, seriesInstanceUID))
	if err != nil {
		return SeriesSnapshot{}, false
	}
	var snap SeriesSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return SeriesSnapshot{}, false
	}
	return snap, true
}
