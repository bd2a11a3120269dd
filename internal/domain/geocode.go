package domain

import (
	"context"
	"log/slog"
)

// LabelLocation reverse-geocodes the domain centre into a place label for the
// run report. A nil geocoder, an error or an empty answer all yield "" so a
// geocoding outage never blocks a run.
func LabelLocation(ctx context.Context, center GeoRef, geocoder Geocoder, logger *slog.Logger) string {
	if geocoder == nil {
		return ""
	}
	if center.Lat == 0 && center.Lng == 0 {
		return ""
	}

	result, err := geocoder.ReverseGeocode(ctx, center.Lat, center.Lng)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", center.Lat,
			"lon", center.Lng,
			"error", err,
		)
		return ""
	}
	if result.FormattedAddress != "" {
		return result.FormattedAddress
	}
	return result.PlaceName
}
