package rooms

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== in-memory store =====

type fakeStore struct {
	rooms     map[uint64]*roomRow
	occupants map[uint64][]string // roomID → students
	genders   map[string]string   // student → gender
	nextID    uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:     map[uint64]*roomRow{},
		occupants: map[uint64][]string{},
		genders:   map[string]string{},
	}
}

func (f *fakeStore) Insert(_ context.Context, in CreateRoomRequest) (uint64, error) {
	for _, r := range f.rooms {
		if r.Hostel == in.Hostel && r.Number == in.Number {
			return 0, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		}
	}
	f.nextID++
	f.rooms[f.nextID] = &roomRow{
		RoomID:            f.nextID,
		Hostel:            in.Hostel,
		Floor:             in.Floor,
		Number:            in.Number,
		RoomType:          in.RoomType,
		Capacity:          in.Capacity,
		Gender:            in.Gender,
		MaintenanceStatus: MaintenanceNone,
		CreatedAt:         time.Now().UTC(),
	}
	return f.nextID, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (*roomRow, error) {
	if r, ok := f.rooms[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) List(_ context.Context, _ SearchQuery, _ Page) ([]roomRow, int64, error) {
	var out []roomRow
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Update(_ context.Context, id uint64, in UpdateRoomRequest) (int64, error) {
	r, ok := f.rooms[id]
	if !ok {
		return 0, nil
	}
	if in.Capacity != nil {
		r.Capacity = *in.Capacity
	}
	if in.RoomType != nil {
		r.RoomType = *in.RoomType
	}
	if in.MaintenanceStatus != nil {
		r.MaintenanceStatus = *in.MaintenanceStatus
	}
	return 1, nil
}

func (f *fakeStore) Delete(_ context.Context, id uint64) (int64, error) {
	if _, ok := f.rooms[id]; !ok {
		return 0, nil
	}
	delete(f.rooms, id)
	delete(f.occupants, id)
	return 1, nil
}

func (f *fakeStore) Occupants(_ context.Context, roomID uint64) ([]string, error) {
	return append([]string(nil), f.occupants[roomID]...), nil
}

func (f *fakeStore) OccupantCount(_ context.Context, roomID uint64) (int, error) {
	return len(f.occupants[roomID]), nil
}

func (f *fakeStore) AssignOccupant(_ context.Context, roomID uint64, capacity int, student string) error {
	n := 0
	for _, occ := range f.occupants[roomID] {
		if occ != student {
			n++
		}
	}
	if n >= capacity {
		return errRoomFull
	}
	// 旧配属から除去してから追加（Store 実装と同じ一括動作）
	for id, occ := range f.occupants {
		kept := occ[:0]
		for _, s := range occ {
			if s != student {
				kept = append(kept, s)
			}
		}
		f.occupants[id] = kept
	}
	f.occupants[roomID] = append(f.occupants[roomID], student)
	return nil
}

func (f *fakeStore) RemoveOccupant(_ context.Context, student string) (int64, error) {
	var removed int64
	for id, occ := range f.occupants {
		kept := occ[:0]
		for _, s := range occ {
			if s != student {
				kept = append(kept, s)
			} else {
				removed++
			}
		}
		f.occupants[id] = kept
	}
	return removed, nil
}

func (f *fakeStore) RoomOfStudent(_ context.Context, student string) (uint64, bool, error) {
	for id, occ := range f.occupants {
		for _, s := range occ {
			if s == student {
				return id, true, nil
			}
		}
	}
	return 0, false, nil
}

func (f *fakeStore) StudentGender(_ context.Context, student string) (string, error) {
	g, ok := f.genders[student]
	if !ok {
		return "", sql.ErrNoRows
	}
	return g, nil
}

// 寮別の集計台帳を台帳側と同じ加算方式で模す
type fakeLedger struct {
	rooms    map[string]int
	capacity map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rooms: map[string]int{}, capacity: map[string]int{}}
}

func (l *fakeLedger) ApplyRoomCreated(_ context.Context, hostel string, capacity int) error {
	l.rooms[hostel]++
	l.capacity[hostel] += capacity
	return nil
}

func (l *fakeLedger) ApplyRoomCapacityChanged(_ context.Context, hostel string, delta int) error {
	l.capacity[hostel] += delta
	return nil
}

func (l *fakeLedger) ApplyRoomDeleted(_ context.Context, hostel string, capacity int) error {
	l.rooms[hostel]--
	l.capacity[hostel] -= capacity
	return nil
}

func makeRoom(t *testing.T, svc *Service, hostel, number string, capacity int, gender string) RoomResponse {
	t.Helper()
	res, err := svc.Create(context.Background(), CreateRoomRequest{
		Hostel: hostel, Floor: 1, Number: number, RoomType: "double",
		Capacity: capacity, Gender: gender,
	})
	require.NoError(t, err)
	return res
}

// ===== tests =====

func TestCreateDuplicateNumberConflicts(t *testing.T) {
	svc := newService(newFakeStore(), newFakeLedger())

	makeRoom(t, svc, "North Wing", "101", 2, "male")
	_, err := svc.Create(context.Background(), CreateRoomRequest{
		Hostel: "North Wing", Floor: 1, Number: "101", RoomType: "double",
		Capacity: 2, Gender: "male",
	})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

func TestLedgerTracksCreateUpdateDelete(t *testing.T) {
	ledger := newFakeLedger()
	svc := newService(newFakeStore(), ledger)

	r1 := makeRoom(t, svc, "North Wing", "101", 2, "male")
	makeRoom(t, svc, "North Wing", "102", 3, "male")
	assert.Equal(t, 2, ledger.rooms["North Wing"])
	assert.Equal(t, 5, ledger.capacity["North Wing"])

	four := 4
	_, err := svc.Update(context.Background(), r1.RoomID, UpdateRoomRequest{Capacity: &four})
	require.NoError(t, err)
	assert.Equal(t, 7, ledger.capacity["North Wing"])

	require.NoError(t, svc.Delete(context.Background(), r1.RoomID))
	assert.Equal(t, 1, ledger.rooms["North Wing"])
	assert.Equal(t, 3, ledger.capacity["North Wing"])
}

func TestAssignStudentGenderMismatch(t *testing.T) {
	store := newFakeStore()
	store.genders["HST-001"] = "female"
	svc := newService(store, newFakeLedger())

	room := makeRoom(t, svc, "North Wing", "101", 2, "male")
	_, err := svc.AssignStudent(context.Background(), room.RoomID, "HST-001")
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeGenderMismatch, api.Code)
	assert.Equal(t, 409, toHTTPStatus(err))
}

func TestAssignStudentCapacityExceeded(t *testing.T) {
	store := newFakeStore()
	store.genders["HST-001"] = "male"
	store.genders["HST-002"] = "male"
	store.genders["HST-003"] = "male"
	svc := newService(store, newFakeLedger())

	room := makeRoom(t, svc, "North Wing", "101", 2, "male")
	for _, s := range []string{"HST-001", "HST-002"} {
		_, err := svc.AssignStudent(context.Background(), room.RoomID, s)
		require.NoError(t, err)
	}

	_, err := svc.AssignStudent(context.Background(), room.RoomID, "HST-003")
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeCapacityExceeded, api.Code)
}

// 部屋替えしても学生の配属は常に1箇所
func TestAssignStudentMovesExactlyOnce(t *testing.T) {
	store := newFakeStore()
	store.genders["HST-001"] = "male"
	svc := newService(store, newFakeLedger())

	r1 := makeRoom(t, svc, "North Wing", "101", 2, "male")
	r2 := makeRoom(t, svc, "North Wing", "102", 2, "male")

	_, err := svc.AssignStudent(context.Background(), r1.RoomID, "HST-001")
	require.NoError(t, err)
	res, err := svc.AssignStudent(context.Background(), r2.RoomID, "HST-001")
	require.NoError(t, err)

	assert.Equal(t, []string{"HST-001"}, res.Occupants)
	old, err := svc.Get(context.Background(), r1.RoomID)
	require.NoError(t, err)
	assert.Empty(t, old.Occupants)
}

// 同じ部屋への再配属は満室でも成功する（自分の席は数えない）
func TestAssignStudentReassignSameRoomIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.genders["HST-001"] = "male"
	svc := newService(store, newFakeLedger())

	room := makeRoom(t, svc, "North Wing", "101", 1, "male")
	_, err := svc.AssignStudent(context.Background(), room.RoomID, "HST-001")
	require.NoError(t, err)

	res, err := svc.AssignStudent(context.Background(), room.RoomID, "HST-001")
	require.NoError(t, err)
	assert.Equal(t, []string{"HST-001"}, res.Occupants)
}

func TestUpdateCapacityBelowOccupancyConflicts(t *testing.T) {
	store := newFakeStore()
	store.genders["HST-001"] = "male"
	store.genders["HST-002"] = "male"
	svc := newService(store, newFakeLedger())

	room := makeRoom(t, svc, "North Wing", "101", 2, "male")
	for _, s := range []string{"HST-001", "HST-002"} {
		_, err := svc.AssignStudent(context.Background(), room.RoomID, s)
		require.NoError(t, err)
	}

	one := 1
	_, err := svc.Update(context.Background(), room.RoomID, UpdateRoomRequest{Capacity: &one})
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

func TestDeleteOccupiedRoomConflicts(t *testing.T) {
	store := newFakeStore()
	store.genders["HST-001"] = "male"
	svc := newService(store, newFakeLedger())

	room := makeRoom(t, svc, "North Wing", "101", 2, "male")
	_, err := svc.AssignStudent(context.Background(), room.RoomID, "HST-001")
	require.NoError(t, err)

	err = svc.Delete(context.Background(), room.RoomID)
	var api *APIError
	require.ErrorAs(t, err, &api)
	assert.Equal(t, CodeConflict, api.Code)
}

func TestUnassignUnknownStudentIsNoop(t *testing.T) {
	svc := newService(newFakeStore(), newFakeLedger())
	assert.NoError(t, svc.UnassignStudent(context.Background(), "HST-999"))
}
