package domain

import "time"

// Tag is a livestock-tracking tag. Only active tags take part in absence detection.
type Tag struct {
	ID     string
	Active bool
}

// VitalReading is a single telemetry ping received from a tag.
// Readings are append-only and written by the ingestion path, not by this job.
type VitalReading struct {
	TagID     string
	CreatedAt time.Time
}

// AttendanceRecord holds the cumulative red-flag count of a tag.
// RedFlagCount only ever grows: each run that finds the tag absent adds its shortfall.
type AttendanceRecord struct {
	TagID        string
	RedFlagCount int64
}

// OwnershipLink ties a tag to the goat wearing it, the goat's farmer and the
// hub the tag reports through. It is read-only reference data.
type OwnershipLink struct {
	TagID    string
	GoatID   string
	FarmerID string
	HubID    string
}
