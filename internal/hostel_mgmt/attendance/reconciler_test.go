package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HMS-backend/internal/hostel_mgmt/leaves"
)

// 休暇の有効期間・帰寮フラグを時刻基準で判定する fake。
type fakeLeaveSource struct {
	items []leaves.LeaveResponse
}

func (f *fakeLeaveSource) ListActive(_ context.Context, today time.Time) ([]leaves.LeaveResponse, error) {
	var out []leaves.LeaveResponse
	day := today.Format("2006-01-02")
	for _, lv := range f.items {
		if lv.Status != "approved" || lv.HasReturned || !lv.AutoAttendance {
			continue
		}
		if day < lv.FromDate || day > lv.ToDate {
			continue
		}
		out = append(out, lv)
	}
	return out, nil
}

func approver(s string) *string { return &s }

func approvedLeave(id uint64, student, from, to string) leaves.LeaveResponse {
	return leaves.LeaveResponse{
		LeaveID:        id,
		StudentID:      student,
		FromDate:       from,
		ToDate:         to,
		Reason:         "family function",
		Status:         "approved",
		Approver:       approver("warden1"),
		AutoAttendance: true,
	}
}

func TestRunDailyCreatesLeaveRecordWithinWindow(t *testing.T) {
	store := newFakeStore()
	src := &fakeLeaveSource{items: []leaves.LeaveResponse{
		approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15"),
	}}
	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))

	res, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Considered)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Failed)
	assert.True(t, res.Success)

	row, err := store.GetByUserDay(context.Background(), "HST-001", "2024-01-12")
	require.NoError(t, err)
	assert.Equal(t, StatusLeave, row.Status)
	assert.Equal(t, "warden1", row.MarkedBy)
	require.NotNil(t, row.Remarks)
	assert.Contains(t, *row.Remarks, "family function")
}

func TestRunDailyIsIdempotent(t *testing.T) {
	store := newFakeStore()
	src := &fakeLeaveSource{items: []leaves.LeaveResponse{
		approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15"),
	}}
	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))

	first, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Considered)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Failed)
	assert.True(t, second.Success)
	assert.Len(t, store.rows, 1)
}

// 手動で打たれた present は自動記録で上書きしない
func TestRunDailyPreservesManualRecord(t *testing.T) {
	store := newFakeStore()
	_, err := store.InsertOnly(context.Background(), NewRecord{
		UserID: "HST-001", Day: "2024-01-12", Status: StatusPresent, MarkedBy: "warden1",
	})
	require.NoError(t, err)

	src := &fakeLeaveSource{items: []leaves.LeaveResponse{
		approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15"),
	}}
	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))

	res, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.True(t, res.Success)

	row, err := store.GetByUserDay(context.Background(), "HST-001", "2024-01-12")
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, row.Status)
}

// 1件の失敗でバッチを止めない
func TestRunDailyContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	store.failFor[key("HST-002", "2024-01-12")] = errors.New("deadlock found")

	src := &fakeLeaveSource{items: []leaves.LeaveResponse{
		approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15"),
		approvedLeave(2, "HST-002", "2024-01-10", "2024-01-15"),
		approvedLeave(3, "HST-003", "2024-01-12", "2024-01-12"),
	}}
	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))

	res, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Considered)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Success)
}

// 帰寮が確定した休暇は翌日以降の対象から外れる
func TestRunDailySkipsReturnedLeave(t *testing.T) {
	store := newFakeStore()
	lv := approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15")
	src := &fakeLeaveSource{items: []leaves.LeaveResponse{lv}}

	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))
	res, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	// 01-12 に帰寮許可 → 01-13 のジョブは何も作らない
	src.items[0].HasReturned = true
	rec13 := newReconciler(store, src, fixedNow("2024-01-13T23:30:00Z"))
	res, err = rec13.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Considered)
	assert.Equal(t, 0, res.Created)

	_, err = store.GetByUserDay(context.Background(), "HST-001", "2024-01-13")
	assert.Error(t, err)
}

// auto_attendance を切った休暇は対象外
func TestRunDailyHonorsAutoAttendanceFlag(t *testing.T) {
	store := newFakeStore()
	lv := approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15")
	lv.AutoAttendance = false
	src := &fakeLeaveSource{items: []leaves.LeaveResponse{lv}}

	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))
	res, err := rec.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Considered)
	assert.Empty(t, store.rows)
}

// approver 不在なら marked_by は学生本人
func TestRunDailyFallsBackToStudentAsMarker(t *testing.T) {
	store := newFakeStore()
	lv := approvedLeave(1, "HST-001", "2024-01-10", "2024-01-15")
	lv.Approver = nil
	src := &fakeLeaveSource{items: []leaves.LeaveResponse{lv}}

	rec := newReconciler(store, src, fixedNow("2024-01-12T23:30:00Z"))
	_, err := rec.RunDaily(context.Background())
	require.NoError(t, err)

	row, err := store.GetByUserDay(context.Background(), "HST-001", "2024-01-12")
	require.NoError(t, err)
	assert.Equal(t, "HST-001", row.MarkedBy)
}
