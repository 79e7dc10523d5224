package attendance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HMS-backend/internal/platform/geofence"
)

// ===== in-memory store =====

type fakeStore struct {
	rows    map[string]*attendanceRow // key: user|day
	nextID  uint64
	failFor map[string]error // key: user|day → InsertOnly が返すエラー
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*attendanceRow{}, failFor: map[string]error{}}
}

func key(user, day string) string { return user + "|" + day }

var errDup = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}

func (f *fakeStore) InsertOnly(_ context.Context, rec NewRecord) (uint64, error) {
	k := key(rec.UserID, rec.Day)
	if err, ok := f.failFor[k]; ok {
		return 0, err
	}
	if _, ok := f.rows[k]; ok {
		return 0, errDup
	}
	f.nextID++
	f.rows[k] = &attendanceRow{
		AttendanceID: f.nextID,
		UserID:       rec.UserID,
		AttendedOn:   rec.Day,
		Status:       rec.Status,
		MarkedBy:     rec.MarkedBy,
		Remarks:      rec.Remarks,
		ClockedAt:    time.Now().UTC(),
	}
	return f.nextID, nil
}

func (f *fakeStore) Upsert(_ context.Context, rec NewRecord) (*attendanceRow, bool, error) {
	k := key(rec.UserID, rec.Day)
	_, existed := f.rows[k]
	if !existed {
		f.nextID++
	}
	id := f.nextID
	if existed {
		id = f.rows[k].AttendanceID
	}
	f.rows[k] = &attendanceRow{
		AttendanceID: id,
		UserID:       rec.UserID,
		AttendedOn:   rec.Day,
		Status:       rec.Status,
		MarkedBy:     rec.MarkedBy,
		Remarks:      rec.Remarks,
		ClockedAt:    time.Now().UTC(),
	}
	return f.rows[k], !existed, nil
}

func (f *fakeStore) GetByUserDay(_ context.Context, userID, day string) (*attendanceRow, error) {
	if r, ok := f.rows[key(userID, day)]; ok {
		return r, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) Exists(_ context.Context, userID, day string) (bool, error) {
	_, ok := f.rows[key(userID, day)]
	return ok, nil
}

func (f *fakeStore) List(_ context.Context, q ListQuery) ([]attendanceRow, int64, error) {
	var out []attendanceRow
	for _, r := range f.rows {
		if q.UserID != nil && r.UserID != *q.UserID {
			continue
		}
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Stats(context.Context, time.Time, time.Time, int) ([]StatsRow, error) {
	return nil, nil
}

// ===== verifier fakes =====

type allowVerifier struct{}

func (allowVerifier) Verify(context.Context, float64, float64) error { return nil }

type denyVerifier struct{}

func (denyVerifier) Verify(context.Context, float64, float64) error { return geofence.ErrNotVerified }

func fixedNow(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

// ===== tests =====

func TestSelfMarkCreatesPresentRecord(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, allowVerifier{}, fixedNow("2024-01-12T08:00:00Z"))

	res, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{})
	require.NoError(t, err)

	assert.Equal(t, "HST-001", res.UserID)
	assert.Equal(t, "2024-01-12", res.AttendedOn)
	assert.Equal(t, StatusPresent, res.Status)
	assert.Equal(t, "HST-001", res.MarkedBy)
}

func TestSelfMarkTwiceReturnsAlreadyMarked(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, allowVerifier{}, fixedNow("2024-01-12T08:00:00Z"))

	_, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{})
	require.NoError(t, err)

	_, err = svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeAlreadyMarked, api.Code)
	assert.Equal(t, 409, toHTTPStatus(err))
}

func TestSelfMarkRejectsNonToday(t *testing.T) {
	svc := newService(newFakeStore(), allowVerifier{}, fixedNow("2024-01-12T08:00:00Z"))

	for _, day := range []string{"2024-01-11", "2024-01-13"} {
		_, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{Date: &day})
		var api *APIError
		require.ErrorAs(t, err, &api)
		assert.Equal(t, CodeInvalidArgument, api.Code)
	}

	today := "today"
	_, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{Date: &today})
	assert.NoError(t, err)
}

func TestSelfMarkDeniedLocationCreatesNothing(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, denyVerifier{}, fixedNow("2024-01-12T08:00:00Z"))

	loc := &Location{Latitude: 0, Longitude: 0}
	_, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{Location: loc})

	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeLocationNotVerified, api.Code)
	assert.Equal(t, 403, toHTTPStatus(err))
	assert.Empty(t, store.rows)
}

// 検証器が未設定でも位置付き申告は通さない（fail closed）
func TestSelfMarkWithoutVerifierDenies(t *testing.T) {
	svc := newService(newFakeStore(), nil, fixedNow("2024-01-12T08:00:00Z"))

	loc := &Location{Latitude: 26.87, Longitude: 75.81}
	_, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{Location: loc})

	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeLocationNotVerified, api.Code)
}

func TestUpsertOverwritesExistingRecord(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, fixedNow("2024-01-12T08:00:00Z"))

	day := "2024-01-12"
	first, created, err := svc.Upsert(context.Background(), "warden1", UpsertAttendanceRequest{
		UserID: "HST-001", AttendedOn: &day, Status: StatusAbsent,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusAbsent, first.Status)

	second, created, err := svc.Upsert(context.Background(), "warden2", UpsertAttendanceRequest{
		UserID: "HST-001", AttendedOn: &day, Status: StatusPresent,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, StatusPresent, second.Status)
	assert.Equal(t, "warden2", second.MarkedBy)
	assert.Equal(t, first.AttendanceID, second.AttendanceID)
}

func TestExistsValidatesInput(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)

	_, err := svc.Exists(context.Background(), "", "today")
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)

	_, err = svc.Exists(context.Background(), "HST-001", "not-a-date")
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func TestSelfMarkPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("connection reset")
	store.failFor[key("HST-001", "2024-01-12")] = boom

	svc := newService(store, nil, fixedNow("2024-01-12T08:00:00Z"))
	_, err := svc.SelfMark(context.Background(), "HST-001", SelfMarkRequest{})
	assert.ErrorIs(t, err, boom)
}
