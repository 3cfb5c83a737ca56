package domain

import (
	"context"
	"log/slog"
)

// ResolveCounty returns county when the dataset supplied one. Otherwise it
// asks the geocoder for the district enclosing the observation. A nil
// geocoder or a failed lookup yields an empty county (graceful degradation).
func ResolveCounty(ctx context.Context, county string, obs Observation, geocoder Geocoder, logger *slog.Logger) string {
	if county != "" || geocoder == nil {
		return county
	}

	result, err := geocoder.ReverseGeocode(ctx, obs.Lat, obs.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"species", obs.Species,
			"lat", obs.Lat,
			"lon", obs.Lon,
			"error", err,
		)
		return ""
	}
	return result.PlaceName
}
