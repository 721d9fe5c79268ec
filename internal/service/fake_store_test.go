package service_test

import (
	"context"
	"errors"
	"maps"
	"sort"
	"time"

	"github.com/pkordes/goat-attendance/internal/domain"
	"github.com/pkordes/goat-attendance/internal/repo"
)

// errInjected is returned by fakeStore for the method named in failOn.
var errInjected = errors.New("injected store failure")

// fakeStore is an in-memory stand-in for the Postgres store.
// InTx hands fn a staged copy of the attendance table and only publishes it
// when fn succeeds, so tests can observe commit and rollback behavior.
type fakeStore struct {
	tags       map[string]bool
	readings   map[string][]time.Time
	attendance map[string]int64
	links      []domain.OwnershipLink

	failOn string

	calls   []string
	windows []domain.Window
	commits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tags:       map[string]bool{},
		readings:   map[string][]time.Time{},
		attendance: map[string]int64{},
	}
}

// addReadings records n readings for tagID, the first at start and the rest
// every interval after it.
func (s *fakeStore) addReadings(tagID string, n int, start time.Time, every time.Duration) {
	for i := 0; i < n; i++ {
		s.readings[tagID] = append(s.readings[tagID], start.Add(time.Duration(i)*every))
	}
}

func (s *fakeStore) InTx(_ context.Context, fn func(repo.AttendanceRepo) error) error {
	tx := &fakeTx{store: s, attendance: maps.Clone(s.attendance)}
	if err := fn(tx); err != nil {
		return err
	}
	s.attendance = tx.attendance
	s.commits++
	return nil
}

// writes returns the write calls recorded so far.
func (s *fakeStore) writes() []string {
	var out []string
	for _, c := range s.calls {
		if c == "InsertFirstSeen" || c == "IncrementRedFlags" {
			out = append(out, c)
		}
	}
	return out
}

type fakeTx struct {
	store      *fakeStore
	attendance map[string]int64
}

var _ repo.AttendanceRepo = (*fakeTx)(nil)

func (tx *fakeTx) enter(method string) error {
	tx.store.calls = append(tx.store.calls, method)
	if tx.store.failOn == method {
		return errInjected
	}
	return nil
}

func (tx *fakeTx) ActiveTagIDs(_ context.Context) ([]string, error) {
	if err := tx.enter("ActiveTagIDs"); err != nil {
		return nil, err
	}
	var ids []string
	for id, active := range tx.store.tags {
		if active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (tx *fakeTx) CountReadings(_ context.Context, w domain.Window, tagIDs []string) ([]domain.TagCount, error) {
	if err := tx.enter("CountReadings"); err != nil {
		return nil, err
	}
	tx.store.windows = append(tx.store.windows, w)

	counts := make([]domain.TagCount, 0, len(tagIDs))
	for _, id := range tagIDs {
		n := 0
		for _, at := range tx.store.readings[id] {
			if w.Contains(at) {
				n++
			}
		}
		counts = append(counts, domain.TagCount{TagID: id, Observed: n})
	}
	return counts, nil
}

func (tx *fakeTx) InsertFirstSeen(_ context.Context, absences []domain.Absence) ([]string, error) {
	if err := tx.enter("InsertFirstSeen"); err != nil {
		return nil, err
	}
	var inserted []string
	for _, a := range absences {
		if _, ok := tx.attendance[a.TagID]; ok {
			continue
		}
		tx.attendance[a.TagID] = int64(a.Shortfall)
		inserted = append(inserted, a.TagID)
	}
	return inserted, nil
}

func (tx *fakeTx) IncrementRedFlags(_ context.Context, absences []domain.Absence) (int64, error) {
	if err := tx.enter("IncrementRedFlags"); err != nil {
		return 0, err
	}
	var n int64
	for _, a := range absences {
		if _, ok := tx.attendance[a.TagID]; ok {
			tx.attendance[a.TagID] += int64(a.Shortfall)
			n++
		}
	}
	return n, nil
}

func (tx *fakeTx) Ownership(_ context.Context, tagIDs []string) ([]domain.OwnershipLink, error) {
	if err := tx.enter("Ownership"); err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, id := range tagIDs {
		want[id] = true
	}
	var out []domain.OwnershipLink
	for _, l := range tx.store.links {
		if want[l.TagID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (tx *fakeTx) Get(_ context.Context, tagID string) (domain.AttendanceRecord, error) {
	if err := tx.enter("Get"); err != nil {
		return domain.AttendanceRecord{}, err
	}
	n, ok := tx.attendance[tagID]
	if !ok {
		return domain.AttendanceRecord{}, domain.ErrNotFound
	}
	return domain.AttendanceRecord{TagID: tagID, RedFlagCount: n}, nil
}

func (tx *fakeTx) List(_ context.Context, p domain.PageRequest) ([]domain.AttendanceRecord, int64, error) {
	if err := tx.enter("List"); err != nil {
		return nil, 0, err
	}
	all := make([]domain.AttendanceRecord, 0, len(tx.attendance))
	for id, n := range tx.attendance {
		all = append(all, domain.AttendanceRecord{TagID: id, RedFlagCount: n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].RedFlagCount != all[j].RedFlagCount {
			return all[i].RedFlagCount > all[j].RedFlagCount
		}
		return all[i].TagID < all[j].TagID
	})

	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], int64(len(all)), nil
}
