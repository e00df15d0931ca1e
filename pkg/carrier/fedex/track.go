package fedex

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pagecrest/fulfillment/pkg/carrier"
)

const trackPath = "/track/v1/trackingnumbers"

// Track returns the normalized tracking snapshot for a tracking number.
// Scan events come back ordered oldest-first.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*carrier.TrackSnapshot, error) {
	req := &trackRequest{
		IncludeDetailedScans: true,
		TrackingInfo: []trackingInfo{{
			TrackingNumberInfo: trackingNumberInfo{TrackingNumber: trackingNumber},
		}},
	}

	var resp trackResponse
	if err := c.do(ctx, http.MethodPost, trackPath, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Output.CompleteTrackResults) == 0 ||
		len(resp.Output.CompleteTrackResults[0].TrackResults) == 0 {
		return nil, carrier.NewError(carrierName, "NO_TRACK_RESULTS", "no tracking data for "+trackingNumber)
	}
	result := resp.Output.CompleteTrackResults[0].TrackResults[0]

	snapshot := &carrier.TrackSnapshot{
		TrackingNumber: trackingNumber,
	}

	latestCode := result.LatestStatusDetail.DerivedCode
	if latestCode == "" {
		latestCode = result.LatestStatusDetail.Code
	}
	snapshot.Current = carrier.TrackingEvent{
		Code:        latestCode,
		Description: result.LatestStatusDetail.Description,
		Location:    formatLocation(result.LatestStatusDetail.ScanLocation),
		Status:      carrier.MapStatusCode(latestCode),
	}

	for _, scan := range result.ScanEvents {
		ts := parseScanTime(scan.Date)
		if ts.IsZero() {
			continue
		}
		code := scan.DerivedStatusCode
		if code == "" {
			code = scan.EventType
		}
		snapshot.Events = append(snapshot.Events, carrier.TrackingEvent{
			Timestamp:   ts,
			Code:        code,
			Description: scan.EventDescription,
			Location:    formatLocation(scan.ScanLocation),
			Status:      carrier.MapStatusCode(code),
		})
	}
	sort.Slice(snapshot.Events, func(i, j int) bool {
		return snapshot.Events[i].Timestamp.Before(snapshot.Events[j].Timestamp)
	})
	if len(snapshot.Events) > 0 {
		snapshot.Current.Timestamp = snapshot.Events[len(snapshot.Events)-1].Timestamp
	}

	for _, dt := range result.DateAndTimes {
		ts := parseScanTime(dt.DateTime)
		if ts.IsZero() {
			continue
		}
		switch dt.Type {
		case "ESTIMATED_DELIVERY":
			t := ts
			snapshot.EstimatedDelivery = &t
		case "ACTUAL_DELIVERY":
			t := ts
			snapshot.ActualDelivery = &t
		}
	}

	return snapshot, nil
}

func parseScanTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatLocation(loc scanLocation) string {
	parts := make([]string, 0, 3)
	if loc.City != "" {
		parts = append(parts, loc.City)
	}
	if loc.StateOrProvinceCode != "" {
		parts = append(parts, loc.StateOrProvinceCode)
	}
	if loc.CountryCode != "" {
		parts = append(parts, loc.CountryCode)
	}
	return strings.Join(parts, ", ")
}
