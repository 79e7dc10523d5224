package leaves

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HMS-backend/internal/platform/notify"
)

// ===== in-memory store =====

type fakeStore struct {
	rows   map[uint64]*leaveRow
	nextID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uint64]*leaveRow{}}
}

func (f *fakeStore) Insert(_ context.Context, student, from, to, reason string, autoAttendance bool) (uint64, error) {
	f.nextID++
	f.rows[f.nextID] = &leaveRow{
		LeaveID:        f.nextID,
		StudentID:      student,
		FromDate:       from,
		ToDate:         to,
		Reason:         reason,
		Status:         StatusPending,
		AutoAttendance: autoAttendance,
		CreatedAt:      time.Now().UTC(),
	}
	return f.nextID, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*leaveRow, error) {
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) Decide(_ context.Context, id uint64, approver, decision string) (int64, error) {
	r, ok := f.rows[id]
	if !ok || r.Status != StatusPending {
		return 0, nil
	}
	r.Status = decision
	r.Approver = &approver
	return 1, nil
}

func (f *fakeStore) MarkReturned(_ context.Context, id uint64, markedBy string, returnedAt time.Time) (int64, error) {
	r, ok := f.rows[id]
	if !ok || r.Status != StatusApproved || r.HasReturned {
		return 0, nil
	}
	r.HasReturned = true
	r.ReturnedBy = &markedBy
	r.ReturnedDate = &returnedAt
	return 1, nil
}

func (f *fakeStore) ListActive(_ context.Context, today time.Time) ([]leaveRow, error) {
	day := today.Format(DateLayout)
	var out []leaveRow
	for _, r := range f.rows {
		if r.Status == StatusApproved && !r.HasReturned && r.AutoAttendance &&
			r.FromDate <= day && day <= r.ToDate {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) List(context.Context, ListQuery, Page) ([]leaveRow, int64, error) {
	var out []leaveRow
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

type capturePub struct {
	events []notify.Event
}

func (p *capturePub) Publish(kind string, entityID uint64, studentID, newStatus string) {
	p.events = append(p.events, notify.Event{
		Kind: kind, EntityID: entityID, StudentID: studentID, NewStatus: newStatus,
	})
}

func submit(t *testing.T, svc *Service, student, from, to string) LeaveResponse {
	t.Helper()
	res, err := svc.Submit(context.Background(), student, SubmitLeaveRequest{
		FromDate: from, ToDate: to, Reason: "going home",
	})
	require.NoError(t, err)
	return res
}

// ===== tests =====

func TestSubmitValidation(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)

	cases := []SubmitLeaveRequest{
		{FromDate: "12-01-2024", ToDate: "2024-01-15", Reason: "x"},
		{FromDate: "2024-01-12", ToDate: "garbage", Reason: "x"},
		{FromDate: "2024-01-15", ToDate: "2024-01-10", Reason: "x"},
		{FromDate: "2024-01-12", ToDate: "2024-01-15", Reason: "   "},
	}
	for _, in := range cases {
		_, err := svc.Submit(context.Background(), "HST-001", in)
		var api *APIError
		require.ErrorAs(t, err, &api)
		assert.Equal(t, CodeInvalidArgument, api.Code)
	}
}

func TestSubmitDefaultsAutoAttendanceOn(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)
	res := submit(t, svc, "HST-001", "2024-01-10", "2024-01-15")
	assert.Equal(t, StatusPending, res.Status)
	assert.True(t, res.AutoAttendance)

	off := false
	res2, err := svc.Submit(context.Background(), "HST-001", SubmitLeaveRequest{
		FromDate: "2024-02-01", ToDate: "2024-02-03", Reason: "trip", AutoAttendance: &off,
	})
	require.NoError(t, err)
	assert.False(t, res2.AutoAttendance)
}

func TestDecidePublishesEvent(t *testing.T) {
	store := newFakeStore()
	pub := &capturePub{}
	svc := newService(store, pub, nil)

	lv := submit(t, svc, "HST-001", "2024-01-10", "2024-01-15")

	res, err := svc.Decide(context.Background(), lv.LeaveID, "warden1", StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, res.Status)
	require.NotNil(t, res.Approver)
	assert.Equal(t, "warden1", *res.Approver)

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.KindLeaveUpdated, pub.events[0].Kind)
	assert.Equal(t, lv.LeaveID, pub.events[0].EntityID)
	assert.Equal(t, "HST-001", pub.events[0].StudentID)
	assert.Equal(t, StatusApproved, pub.events[0].NewStatus)
}

// 既決の申請は承認でも却下でも再決裁できない
func TestDecideIsOneShot(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, nil)

	lv := submit(t, svc, "HST-001", "2024-01-10", "2024-01-15")
	_, err := svc.Decide(context.Background(), lv.LeaveID, "warden1", StatusRejected)
	require.NoError(t, err)

	for _, d := range []string{StatusApproved, StatusRejected} {
		_, err := svc.Decide(context.Background(), lv.LeaveID, "warden2", d)
		var api *APIError
		require.ErrorAs(t, err, &api)
		assert.Equal(t, CodeConflict, api.Code)
	}
}

func TestDecideUnknownLeaveNotFound(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)
	_, err := svc.Decide(context.Background(), 42, "warden1", StatusApproved)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)
	_, err := svc.Decide(context.Background(), 1, "warden1", "maybe")
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

// has_returned は approved の申請にしか立たない
func TestMarkReturnedRequiresApproved(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, fixedNow("2024-01-13T10:00:00Z"))

	lv := submit(t, svc, "HST-001", "2024-01-10", "2024-01-15")

	_, err := svc.MarkReturnedDirectly(context.Background(), lv.LeaveID, "warden2", nil)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotApproved, api.Code)
	assert.Equal(t, 409, toHTTPStatus(err))

	_, err = svc.Decide(context.Background(), lv.LeaveID, "warden1", StatusApproved)
	require.NoError(t, err)

	res, err := svc.MarkReturnedDirectly(context.Background(), lv.LeaveID, "warden2", nil)
	require.NoError(t, err)
	assert.True(t, res.HasReturned)
	// 帰寮を記録したのは承認者ではなく warden2
	require.NotNil(t, res.ReturnedBy)
	assert.Equal(t, "warden2", *res.ReturnedBy)

	// 二度目は Conflict
	_, err = svc.MarkReturnedDirectly(context.Background(), lv.LeaveID, "warden2", nil)
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

// 帰寮済みの休暇は自動出欠の対象から消える
func TestListActiveExcludesReturnedAndOutOfWindow(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, nil)

	lv := submit(t, svc, "HST-001", "2024-01-10", "2024-01-15")
	_, err := svc.Decide(context.Background(), lv.LeaveID, "warden1", StatusApproved)
	require.NoError(t, err)

	day := func(s string) time.Time {
		d, err := time.Parse(DateLayout, s)
		require.NoError(t, err)
		return d
	}

	active, err := svc.ListActive(context.Background(), day("2024-01-12"))
	require.NoError(t, err)
	assert.Len(t, active, 1)

	active, err = svc.ListActive(context.Background(), day("2024-01-16"))
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.MarkReturnedDirectly(context.Background(), lv.LeaveID, "warden1", nil)
	require.NoError(t, err)

	active, err = svc.ListActive(context.Background(), day("2024-01-13"))
	require.NoError(t, err)
	assert.Empty(t, active)
}

func fixedNow(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}
