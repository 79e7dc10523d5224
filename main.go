package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"HMS-backend/internal/hostel_mgmt/attendance"
	"HMS-backend/internal/hostel_mgmt/complaints"
	"HMS-backend/internal/hostel_mgmt/health"
	"HMS-backend/internal/hostel_mgmt/hostels"
	"HMS-backend/internal/hostel_mgmt/leaves"
	"HMS-backend/internal/hostel_mgmt/messes"
	"HMS-backend/internal/hostel_mgmt/notices"
	"HMS-backend/internal/hostel_mgmt/returns"
	"HMS-backend/internal/hostel_mgmt/rooms"
	"HMS-backend/internal/platform/auth"
	"HMS-backend/internal/platform/db"
	"HMS-backend/internal/platform/geofence"
	"HMS-backend/internal/platform/notify"
	"HMS-backend/internal/platform/scheduler"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	// 動作モード取得
	mode := cfg.Mode
	log.Printf("[INFO] mode:%s\n", mode)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: go run main.go [dev|release]")
		return
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// プロセス内イベント
	hub := notify.NewHub()

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, auth.NewService(conn, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL))

	secret := []byte(cfg.Auth.JWTSecret)
	authed := api.Group("", auth.RequireAuth(secret))

	// ロール別のルートグループ。上位ロールは下位の操作もできる。
	adminG := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	wardenG := authed.Group("", auth.RequireRole(auth.RoleWarden, auth.RoleAdmin))
	studentG := authed.Group("", auth.RequireRole(auth.RoleStudent, auth.RoleWarden, auth.RoleAdmin))

	// SSE（認証必須）
	authed.GET("/events", hub.SSEHandler())

	hostelSvc := hostels.NewService(conn)
	hostels.RegisterRoutes(adminG, wardenG, studentG, hostelSvc)

	roomSvc := rooms.NewService(conn, hostels.NewStore(conn))
	rooms.RegisterRoutes(adminG, wardenG, roomSvc)

	leaveSvc := leaves.NewService(conn, hub)
	leaves.RegisterRoutes(wardenG, studentG, leaveSvc)

	returnSvc := returns.NewService(conn)
	returns.RegisterRoutes(wardenG, studentG, returnSvc)

	verifier := geofence.FromConfig(cfg.Geofence)
	attSvc := attendance.NewService(conn, verifier)
	reconciler := attendance.NewReconciler(attendance.NewStore(conn), leaveSvc)
	attendance.RegisterRoutes(adminG, wardenG, studentG, attSvc, reconciler)

	complaints.RegisterRoutes(wardenG, studentG, complaints.NewService(conn, hub))
	messes.RegisterRoutes(adminG, wardenG, studentG, messes.NewService(conn))
	notices.RegisterRoutes(wardenG, studentG, notices.NewService(conn))
	health.RegisterRoutes(wardenG, studentG, health.NewService(conn))

	// 自動出欠ジョブ（冪等。起動直後 + 毎日 HH:MM）
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	scheduler.Daily(jobCtx, cfg.Scheduler.Hour, cfg.Scheduler.Minute, "attendance-reconcile", func(ctx context.Context) {
		if _, err := reconciler.RunDaily(ctx); err != nil {
			log.Printf("[ERROR] attendance reconcile: %v", err)
		}
	})

	// TLS起動（:8443 例）
	srv := &http.Server{
		Addr:    ":8443",
		Handler: r,
	}

	var certFile, keyFile string

	// TLS設定
	if mode == "dev" {
		//開発用
		certFile = fmt.Sprintf("config/tls/dev/%s", cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/dev/%s", cfg.Certificate.Key)
	} else {
		//本番用
		certFile = fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/release/%s", cfg.Certificate.Key)
	}

	go func() {
		log.Println("[INFO] listening on https://0.0.0.0:8443")
		if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("[INFO] shutting down...")
	jobCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
