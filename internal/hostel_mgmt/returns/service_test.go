package returns

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== in-memory store =====

type fakeStore struct {
	rows   map[uint64]*returnRow
	seen   map[string]bool // student|leave の UNIQUE を模す
	nextID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uint64]*returnRow{}, seen: map[string]bool{}}
}

func uniqKey(student string, leaveID *uint64) string {
	if leaveID == nil {
		return student + "|nil"
	}
	return fmt.Sprintf("%s|%d", student, *leaveID)
}

func (f *fakeStore) Insert(_ context.Context, student string, leaveID *uint64, expected string, loc *Location) (uint64, error) {
	k := uniqKey(student, leaveID)
	if f.seen[k] {
		// 実ストアと同じく、leave 紐付きは 1062、未紐付けは事前チェックのエラー
		if leaveID == nil {
			return 0, errDuplicateReport
		}
		return 0, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	}
	f.seen[k] = true
	f.nextID++
	r := &returnRow{
		ReturnID:           f.nextID,
		StudentID:          student,
		LeaveID:            leaveID,
		ReportedDate:       time.Now().UTC(),
		ExpectedReturnDate: expected,
		Permission:         PermissionPending,
	}
	if loc != nil {
		r.Latitude, r.Longitude = &loc.Latitude, &loc.Longitude
	}
	f.rows[f.nextID] = r
	return f.nextID, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*returnRow, error) {
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) Grant(_ context.Context, id uint64, warden, decision string, remarks *string, now time.Time) (int64, error) {
	r, ok := f.rows[id]
	if !ok || r.Permission != PermissionPending {
		return 0, nil
	}
	r.Permission = decision
	r.PermissionGrantedBy = &warden
	r.PermissionGrantedAt = &now
	if remarks != nil {
		r.Remarks = remarks
	}
	if decision == PermissionApproved {
		r.ActualReturnDate = &now
	}
	return 1, nil
}

func (f *fakeStore) List(context.Context, ListQuery, Page) ([]returnRow, int64, error) {
	var out []returnRow
	for _, r := range f.rows {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func leaveID(v uint64) *uint64 { return &v }

// ===== tests =====

func TestReportValidatesExpectedDate(t *testing.T) {
	svc := newService(newFakeStore(), nil)

	_, err := svc.Report(context.Background(), "HST-001", ReportReturnRequest{
		ExpectedReturnDate: "15/01/2024",
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func TestReportDuplicateForSameLeaveConflicts(t *testing.T) {
	svc := newService(newFakeStore(), nil)

	req := ReportReturnRequest{LeaveID: leaveID(7), ExpectedReturnDate: "2024-01-15"}
	first, err := svc.Report(context.Background(), "HST-001", req)
	require.NoError(t, err)
	assert.Equal(t, PermissionPending, first.Permission)

	_, err = svc.Report(context.Background(), "HST-001", req)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
	assert.Equal(t, 409, toHTTPStatus(err))
}

// leave 未紐付けの報告も学生につき一件まで
func TestReportDuplicateWithoutLeaveConflicts(t *testing.T) {
	svc := newService(newFakeStore(), nil)

	req := ReportReturnRequest{ExpectedReturnDate: "2024-01-15"}
	_, err := svc.Report(context.Background(), "HST-001", req)
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), "HST-001", req)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
	assert.Equal(t, 409, toHTTPStatus(err))

	// 別の学生は弾かれない
	_, err = svc.Report(context.Background(), "HST-002", req)
	assert.NoError(t, err)
}

func TestGrantAccessApprovesOnce(t *testing.T) {
	store := newFakeStore()
	now := func() time.Time { return time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC) }
	svc := newService(store, now)

	rep, err := svc.Report(context.Background(), "HST-001", ReportReturnRequest{
		LeaveID: leaveID(7), ExpectedReturnDate: "2024-01-15",
	})
	require.NoError(t, err)

	res, err := svc.GrantAccess(context.Background(), rep.ReturnID, "warden1", GrantAccessRequest{
		Decision: PermissionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, PermissionApproved, res.Permission)
	require.NotNil(t, res.ActualReturnDate)
	assert.Equal(t, now().UTC(), res.ActualReturnDate.UTC())

	// 再決裁は Conflict
	_, err = svc.GrantAccess(context.Background(), rep.ReturnID, "warden2", GrantAccessRequest{
		Decision: PermissionDenied,
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

func TestGrantAccessDeniedLeavesNoActualDate(t *testing.T) {
	svc := newService(newFakeStore(), nil)

	rep, err := svc.Report(context.Background(), "HST-001", ReportReturnRequest{
		ExpectedReturnDate: "2024-01-15",
	})
	require.NoError(t, err)

	res, err := svc.GrantAccess(context.Background(), rep.ReturnID, "warden1", GrantAccessRequest{
		Decision: PermissionDenied,
	})
	require.NoError(t, err)
	assert.Equal(t, PermissionDenied, res.Permission)
	assert.Nil(t, res.ActualReturnDate)
}

func TestGrantAccessUnknownReportNotFound(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	_, err := svc.GrantAccess(context.Background(), 99, "warden1", GrantAccessRequest{
		Decision: PermissionApproved,
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)
}

func TestGrantAccessRejectsUnknownDecision(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	_, err := svc.GrantAccess(context.Background(), 1, "warden1", GrantAccessRequest{
		Decision: "later",
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}
