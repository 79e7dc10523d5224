package complaints

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HMS-backend/internal/platform/notify"
)

type fakeStore struct {
	rows   map[uint64]*complaintRow
	nextID uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[uint64]*complaintRow{}}
}

func (f *fakeStore) Insert(_ context.Context, student string, in FileComplaintRequest) (uint64, error) {
	f.nextID++
	f.rows[f.nextID] = &complaintRow{
		ComplaintID: f.nextID,
		StudentID:   student,
		Hostel:      in.Hostel,
		Category:    in.Category,
		Description: in.Description,
		Status:      StatusOpen,
		CreatedAt:   time.Now().UTC(),
	}
	return f.nextID, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*complaintRow, error) {
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) Update(_ context.Context, id uint64, in UpdateComplaintRequest, now time.Time) (int64, error) {
	r, ok := f.rows[id]
	if !ok || (r.Status != StatusOpen && r.Status != StatusInProgress) {
		return 0, nil
	}
	r.Status = in.Status
	if in.AssignedTo != nil {
		r.AssignedTo = in.AssignedTo
	}
	if in.Resolution != nil {
		r.Resolution = in.Resolution
	}
	if in.Status == StatusResolved || in.Status == StatusRejected {
		t := now.UTC()
		r.ResolvedAt = &t
	}
	return 1, nil
}

func (f *fakeStore) List(context.Context, ListQuery, Page) ([]complaintRow, int64, error) {
	var out []complaintRow
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

func TestFileRequiresDescription(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)
	_, err := svc.File(context.Background(), "HST-001", FileComplaintRequest{
		Hostel: "North Wing", Category: "plumbing", Description: "  ",
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func TestUpdateStatusPublishesEvent(t *testing.T) {
	store := newFakeStore()
	pub := &capturePub{}
	svc := newService(store, pub, nil)

	filed, err := svc.File(context.Background(), "HST-001", FileComplaintRequest{
		Hostel: "North Wing", Category: "plumbing", Description: "leaking tap",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, filed.Status)

	res, err := svc.UpdateStatus(context.Background(), filed.ComplaintID, UpdateComplaintRequest{
		Status: StatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, res.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, notify.KindComplaintUpdated, pub.events[0].Kind)
	assert.Equal(t, filed.ComplaintID, pub.events[0].EntityID)
	assert.Equal(t, StatusInProgress, pub.events[0].NewStatus)
}

// resolved/rejected からは動かせない
func TestUpdateStatusTerminalStatesAreFinal(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, nil)

	filed, err := svc.File(context.Background(), "HST-001", FileComplaintRequest{
		Hostel: "North Wing", Category: "food", Description: "stale food served",
	})
	require.NoError(t, err)

	res, err := svc.UpdateStatus(context.Background(), filed.ComplaintID, UpdateComplaintRequest{
		Status: StatusResolved,
	})
	require.NoError(t, err)
	assert.NotNil(t, res.ResolvedAt)

	_, err = svc.UpdateStatus(context.Background(), filed.ComplaintID, UpdateComplaintRequest{
		Status: StatusOpen,
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

func TestUpdateStatusUnknownComplaintNotFound(t *testing.T) {
	svc := newService(newFakeStore(), nil, nil)
	_, err := svc.UpdateStatus(context.Background(), 42, UpdateComplaintRequest{Status: StatusResolved})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeNotFound, api.Code)
}
