// Package repo contains all database access logic for the goat attendance job.
// Each concern has its own file with an interface and a Postgres implementation.
// It holds SQL and type mapping only.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/goat-attendance/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AttendanceRepo defines the store operations absence detection relies on.
// The detector depends on this interface, not the concrete Postgres
// implementation, which allows it to be unit-tested with a mock.
type AttendanceRepo interface {
	// ActiveTagIDs returns the IDs of every tag whose status is active, ordered by ID.
	ActiveTagIDs(ctx context.Context) ([]string, error)

	// CountReadings returns one TagCount per requested tag with the number of
	// vital readings created in [w.Start, w.End). Tags without readings are
	// returned with Observed = 0.
	CountReadings(ctx context.Context, w domain.Window, tagIDs []string) ([]domain.TagCount, error)

	// InsertFirstSeen creates an attendance record with red_flag_count = Shortfall
	// for every absence whose tag has no record yet. Existing records are left
	// untouched. Returns the tag IDs that were actually inserted.
	InsertFirstSeen(ctx context.Context, absences []domain.Absence) ([]string, error)

	// IncrementRedFlags adds each absence's Shortfall to the existing record of
	// its tag in a single statement. Tags without a record are ignored.
	// Returns the number of records updated.
	IncrementRedFlags(ctx context.Context, absences []domain.Absence) (int64, error)

	// Ownership returns the goat/farmer/hub links of the given tags, ordered by
	// tag ID then goat ID.
	Ownership(ctx context.Context, tagIDs []string) ([]domain.OwnershipLink, error)

	// Get returns the attendance record of a tag.
	// Returns domain.ErrNotFound if the tag has never been flagged.
	Get(ctx context.Context, tagID string) (domain.AttendanceRecord, error)

	// List returns one page of attendance records ordered by red_flag_count
	// descending, then tag ID, together with the total number of records.
	List(ctx context.Context, p domain.PageRequest) ([]domain.AttendanceRecord, int64, error)
}

// pgAttendanceRepo is the Postgres implementation of AttendanceRepo.
type pgAttendanceRepo struct {
	db db
}

// NewAttendanceRepo constructs an AttendanceRepo backed by the provided db connection.
// In production pass a pgx.Tx from TxRunner; in tests pass a pgx.Tx for rollback isolation.
func NewAttendanceRepo(db db) AttendanceRepo {
	return &pgAttendanceRepo{db: db}
}

func (r *pgAttendanceRepo) ActiveTagIDs(ctx context.Context) ([]string, error) {
	const q = `
		SELECT tag_id
		FROM tag_details
		WHERE status = true
		ORDER BY tag_id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.ActiveTagIDs: %w", classify(err))
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.ActiveTagIDs: scan: %w", classify(err))
	}
	return ids, nil
}

// CountReadings left-joins the requested tags against goats_vital so that a
// silent tag still shows up with a zero count.
func (r *pgAttendanceRepo) CountReadings(ctx context.Context, w domain.Window, tagIDs []string) ([]domain.TagCount, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}

	const q = `
		SELECT t.tag_id, COUNT(v.tag_id) AS entry_count
		FROM unnest(@tag_ids::text[]) AS t(tag_id)
		LEFT JOIN goats_vital v
		       ON v.tag_id = t.tag_id
		      AND v.created_at >= @window_start
		      AND v.created_at <  @window_end
		GROUP BY t.tag_id
		ORDER BY t.tag_id`

	args := pgx.NamedArgs{
		"tag_ids":      tagIDs,
		"window_start": w.Start,
		"window_end":   w.End,
	}

	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.CountReadings: %w", classify(err))
	}
	defer rows.Close()

	var counts []domain.TagCount
	for rows.Next() {
		var (
			c     domain.TagCount
			count int64
		)
		if err := rows.Scan(&c.TagID, &count); err != nil {
			return nil, fmt.Errorf("repo.AttendanceRepo.CountReadings: scan: %w", classify(err))
		}
		c.Observed = int(count)
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.CountReadings: rows: %w", classify(err))
	}
	return counts, nil
}

func (r *pgAttendanceRepo) InsertFirstSeen(ctx context.Context, absences []domain.Absence) ([]string, error) {
	if len(absences) == 0 {
		return nil, nil
	}

	const q = `
		INSERT INTO goats_attendance (tag_id, red_flag_count)
		SELECT a.tag_id, a.absent_count
		FROM unnest(@tag_ids::text[], @absent_counts::bigint[]) AS a(tag_id, absent_count)
		ON CONFLICT (tag_id) DO NOTHING
		RETURNING tag_id`

	rows, err := r.db.Query(ctx, q, absenceArgs(absences))
	if err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.InsertFirstSeen: %w", classify(err))
	}

	inserted, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.InsertFirstSeen: scan: %w", classify(err))
	}
	return inserted, nil
}

// IncrementRedFlags relies on the row lock taken by UPDATE, so concurrent runs
// bumping the same tag serialize instead of losing an increment.
func (r *pgAttendanceRepo) IncrementRedFlags(ctx context.Context, absences []domain.Absence) (int64, error) {
	if len(absences) == 0 {
		return 0, nil
	}

	const q = `
		UPDATE goats_attendance ga
		SET red_flag_count = ga.red_flag_count + a.absent_count
		FROM unnest(@tag_ids::text[], @absent_counts::bigint[]) AS a(tag_id, absent_count)
		WHERE ga.tag_id = a.tag_id`

	tag, err := r.db.Exec(ctx, q, absenceArgs(absences))
	if err != nil {
		return 0, fmt.Errorf("repo.AttendanceRepo.IncrementRedFlags: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

func (r *pgAttendanceRepo) Ownership(ctx context.Context, tagIDs []string) ([]domain.OwnershipLink, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}

	const q = `
		SELECT tag_id, goat_id, farmer_id, hub_id
		FROM hub_goat_tag_junction
		WHERE tag_id = ANY(@tag_ids::text[])
		ORDER BY tag_id, goat_id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"tag_ids": tagIDs})
	if err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.Ownership: %w", classify(err))
	}
	defer rows.Close()

	var links []domain.OwnershipLink
	for rows.Next() {
		var l domain.OwnershipLink
		if err := rows.Scan(&l.TagID, &l.GoatID, &l.FarmerID, &l.HubID); err != nil {
			return nil, fmt.Errorf("repo.AttendanceRepo.Ownership: scan: %w", classify(err))
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.AttendanceRepo.Ownership: rows: %w", classify(err))
	}
	return links, nil
}

func (r *pgAttendanceRepo) Get(ctx context.Context, tagID string) (domain.AttendanceRecord, error) {
	const q = `
		SELECT tag_id, red_flag_count
		FROM goats_attendance
		WHERE tag_id = @tag_id`

	var rec domain.AttendanceRecord
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"tag_id": tagID}).Scan(&rec.TagID, &rec.RedFlagCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AttendanceRecord{}, fmt.Errorf("repo.AttendanceRepo.Get: %w", domain.ErrNotFound)
		}
		return domain.AttendanceRecord{}, fmt.Errorf("repo.AttendanceRepo.Get: %w", classify(err))
	}
	return rec, nil
}

func (r *pgAttendanceRepo) List(ctx context.Context, p domain.PageRequest) ([]domain.AttendanceRecord, int64, error) {
	const q = `
		SELECT tag_id, red_flag_count, count(*) OVER () AS total
		FROM goats_attendance
		ORDER BY red_flag_count DESC, tag_id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.AttendanceRepo.List: %w", classify(err))
	}
	defer rows.Close()

	records := []domain.AttendanceRecord{}
	var total int64
	for rows.Next() {
		var rec domain.AttendanceRecord
		if err := rows.Scan(&rec.TagID, &rec.RedFlagCount, &total); err != nil {
			return nil, 0, fmt.Errorf("repo.AttendanceRepo.List: scan: %w", classify(err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.AttendanceRepo.List: rows: %w", classify(err))
	}
	if len(records) == 0 && p.Offset() > 0 {
		// Past the last page the window function yields no row to read the total from.
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM goats_attendance`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("repo.AttendanceRepo.List: count: %w", classify(err))
		}
	}
	return records, total, nil
}

// absenceArgs splits absences into the two parallel arrays unnest expects.
func absenceArgs(absences []domain.Absence) pgx.NamedArgs {
	ids := make([]string, 0, len(absences))
	counts := make([]int64, 0, len(absences))
	for _, a := range absences {
		ids = append(ids, a.TagID)
		counts = append(counts, int64(a.Shortfall))
	}
	return pgx.NamedArgs{
		"tag_ids":       ids,
		"absent_counts": counts,
	}
}
