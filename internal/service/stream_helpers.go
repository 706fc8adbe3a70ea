package service

import (
	"fmt"

	"stramate/internal/analysis"
	"stramate/internal/store"
	"stramate/internal/strava"
)

// rawStreams decodes a stored key_by_type stream payload into the
// analyzer's nullable numeric streams
func rawStreams(payload []byte) (analysis.RawStreamSet, error) {
	streams, err := strava.ParseStreams(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding streams: %w", err)
	}
	return analysis.RawStreamSet(streams.Scalars()), nil
}

// convertActivity maps a Strava activity onto the stored summary
func convertActivity(a strava.Activity) *store.Activity {
	typ := a.Type
	if typ == "" {
		typ = a.SportType
	}
	return &store.Activity{
		ID:                 a.ID,
		AthleteID:          a.Athlete.ID,
		Name:               a.Name,
		Type:               typ,
		StartDate:          a.StartDate,
		StartDateLocal:     a.StartDateLocal,
		Timezone:           a.Timezone,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		HasHeartrate:       a.HasHeartrate,
	}
}
