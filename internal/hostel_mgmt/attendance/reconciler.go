package attendance

import (
	"context"
	"log"
	"time"

	"HMS-backend/internal/hostel_mgmt/leaves"
	"HMS-backend/internal/platform/db"
)

// 休暇中の学生の出欠を日次で埋めるジョブ。
// 対象: approved かつ未帰寮かつ auto_attendance 有効で、当日が期間内の休暇。
type Reconciler struct {
	store  AttendanceStore
	leaves LeaveSource
	now    func() time.Time
}

type LeaveSource interface {
	ListActive(ctx context.Context, today time.Time) ([]leaves.LeaveResponse, error)
}

func NewReconciler(store AttendanceStore, src LeaveSource) *Reconciler {
	return &Reconciler{store: store, leaves: src, now: time.Now}
}

// テスト用
func newReconciler(store AttendanceStore, src LeaveSource, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, leaves: src, now: now}
}

// RunDaily: 当日分を一括処理する。何度流しても結果は同じ
// （既存行は UNIQUE キーで弾かれ、1062 はスキップ扱い）。
//
// 1件の失敗でバッチ全体を止めない。失敗はログと件数に残して次へ進む。
func (r *Reconciler) RunDaily(ctx context.Context) (ReconcileResult, error) {
	today := r.now().UTC().Truncate(24 * time.Hour)

	active, err := r.leaves.ListActive(ctx, today)
	if err != nil {
		return ReconcileResult{}, err
	}

	res := ReconcileResult{Considered: len(active)}
	day := today.Format(DateLayout)

	for i := 0; i < len(active); i++ {
		lv := active[i]

		markedBy := lv.StudentID
		if lv.Approver != nil && *lv.Approver != "" {
			markedBy = *lv.Approver
		}
		remarks := "on approved leave: " + lv.Reason

		_, err := r.store.InsertOnly(ctx, NewRecord{
			UserID:   lv.StudentID,
			Day:      day,
			Status:   StatusLeave,
			MarkedBy: markedBy,
			Remarks:  &remarks,
		})
		if err != nil {
			if db.IsDuplicateKey(err) {
				continue // 既に記録済み（手動含む）。自動記録では上書きしない。
			}
			res.Failed++
			log.Printf("[ERROR] attendance reconcile: leave %d student %s: %v", lv.LeaveID, lv.StudentID, err)
			continue
		}
		res.Created++
	}

	res.Success = (res.Failed == 0)
	log.Printf("[INFO] attendance reconcile: day=%s considered=%d created=%d failed=%d",
		day, res.Considered, res.Created, res.Failed)
	return res, nil
}
