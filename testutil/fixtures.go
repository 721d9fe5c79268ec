package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execer is satisfied by pgx.Tx, *pgx.Conn and *pgxpool.Pool.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SeedTag inserts a tag with the given active status.
func SeedTag(t *testing.T, db execer, tagID string, active bool) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO tag_details (tag_id, status) VALUES ($1, $2)`, tagID, active)
	if err != nil {
		t.Fatalf("testutil.SeedTag(%s): %v", tagID, err)
	}
}

// SeedReadings inserts n vital readings for tagID, one minute apart, the
// first one at start.
func SeedReadings(t *testing.T, db execer, tagID string, n int, start time.Time) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO goats_vital (tag_id, created_at)
		SELECT $1, $2::timestamptz + (g * interval '1 minute')
		FROM generate_series(0, $3::int - 1) AS g`, tagID, start, n)
	if err != nil {
		t.Fatalf("testutil.SeedReadings(%s): %v", tagID, err)
	}
}

// SeedOwnership links a tag to a goat, farmer and hub.
func SeedOwnership(t *testing.T, db execer, tagID, goatID, farmerID, hubID string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO hub_goat_tag_junction (tag_id, goat_id, farmer_id, hub_id)
		VALUES ($1, $2, $3, $4)`, tagID, goatID, farmerID, hubID)
	if err != nil {
		t.Fatalf("testutil.SeedOwnership(%s): %v", tagID, err)
	}
}

// SeedAttendance creates an attendance record with the given red-flag count.
func SeedAttendance(t *testing.T, db execer, tagID string, redFlags int64) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO goats_attendance (tag_id, red_flag_count) VALUES ($1, $2)`, tagID, redFlags)
	if err != nil {
		t.Fatalf("testutil.SeedAttendance(%s): %v", tagID, err)
	}
}

// AttendanceRows returns how many attendance records exist for tagID (0 or 1).
func AttendanceRows(t *testing.T, db execer, tagID string) int {
	t.Helper()
	var n int
	err := db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM goats_attendance WHERE tag_id = $1`, tagID).Scan(&n)
	if err != nil {
		t.Fatalf("testutil.AttendanceRows(%s): %v", tagID, err)
	}
	return n
}
