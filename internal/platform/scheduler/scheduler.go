package scheduler

import (
	"context"
	"log"
	"time"
)

// Daily: 起動直後に一度実行し、以後は毎分時計を見て hh:mm に一致したら実行する。
// ジョブは冪等であることが前提（多めに走っても安全）。ctx キャンセルで停止。
func Daily(ctx context.Context, hh, mm int, name string, job func(ctx context.Context)) {
	go func() {
		log.Printf("[INFO] scheduler: %s registered for %02d:%02d", name, hh, mm)

		// 起動時の一回（プロセス再起動で当日分を取りこぼさないため）
		job(ctx)

		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("[INFO] scheduler: %s stopped", name)
				return
			case now := <-ticker.C:
				if now.Hour() == hh && now.Minute() == mm {
					log.Printf("[INFO] scheduler: triggering %s [%02d:%02d]", name, hh, mm)
					job(ctx)
				}
			}
		}
	}()
}
