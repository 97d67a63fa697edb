package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "hcsc-backend/docs"
	"hcsc-backend/internal/dashboard"
	"hcsc-backend/internal/directory/students"
	"hcsc-backend/internal/directory/users"
	"hcsc-backend/internal/inventory/exportlogs"
	"hcsc-backend/internal/inventory/materials"
	"hcsc-backend/internal/lending/enrollments"
	"hcsc-backend/internal/lending/records"
	"hcsc-backend/internal/platform/api"
	"hcsc-backend/internal/platform/auth"
	"hcsc-backend/internal/platform/clock"
	"hcsc-backend/internal/platform/config"
	"hcsc-backend/internal/platform/db"
	"hcsc-backend/internal/platform/events"
	"hcsc-backend/internal/platform/logger"
	"hcsc-backend/internal/platform/metrics"
	"hcsc-backend/internal/platform/storage"
)

// 開発用の固定シークレット。release では config.Validate が必須にしている
const devSecret = "hcsc-dev-secret"

// @title        HCSC Lending API
// @version      1.0
// @description  Inventory and lending backend for the HCSC front desk.
// @BasePath     /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 設定読み込み
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Configure(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty || cfg.IsDev()})
	logger.Info().Str("mode", cfg.Mode).Str("version", cfg.Version).Msg("starting")

	if err := api.RegisterValidators(); err != nil {
		logger.Fatal().Err(err).Msg("register validators")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect DB")
	}
	defer conn.Close()
	logger.Info().Str("db", cfg.DB.DBName).Msg("connected to DB")

	if cfg.DB.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.EnsureSchema(ctx, conn)
		cancel()
		if err != nil {
			logger.Fatal().Err(err).Msg("ensure schema")
		}
	}

	// イベント通知（未設定なら捨てる）
	var pub events.Publisher = events.Nop{}
	if cfg.Events.AMQPURL != "" {
		rb, err := events.NewRabbit(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		} else {
			defer rb.Close()
			pub = rb
		}
	}

	strategy, err := auth.NewStrategy(cfg.Auth, auth.NewUserDirectory(conn))
	if err != nil {
		logger.Fatal().Err(err).Msg("auth strategy")
	}
	tokens := auth.NewTokens(orDev(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, clock.Real{})

	bucket, err := storage.NewLocal(cfg.Storage.Dir, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}
	signer := storage.NewSigner(orDev(cfg.Storage.SignSecret), cfg.Storage.URLTTL, clock.Real{})

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(api.Recovery(), logger.Middleware(), metrics.Middleware())
	_ = r.SetTrustedProxies(nil)

	if cfg.IsDev() {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
			ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := conn.PingContext(ctx); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// /api/v1
	pubAPI := r.Group("/api/v1")
	privAPI := r.Group("/api/v1")
	privAPI.Use(auth.RequireAuth(tokens, strategy))
	adminAPI := privAPI.Group("")
	adminAPI.Use(auth.RequireRole("manager", "admin"))

	recordSvc := records.NewService(conn)

	auth.RegisterRoutes(pubAPI, privAPI, auth.NewService(strategy, tokens))
	materials.RegisterRoutes(pubAPI, privAPI, materials.NewService(conn))
	students.RegisterRoutes(pubAPI, privAPI, students.NewService(conn))
	users.RegisterRoutes(pubAPI, adminAPI, users.NewService(conn))
	enrollments.RegisterRoutes(pubAPI, privAPI, enrollments.NewService(conn, pub, cfg.Lending.LoanDays))
	records.RegisterRoutes(privAPI, recordSvc)
	exportlogs.RegisterRoutes(privAPI, exportlogs.NewService(conn, pub))
	storage.RegisterRoutes(pubAPI, privAPI, storage.NewService(bucket, signer, cfg.Server.PublicURL, cfg.Storage.MaxBytes))
	dashboard.RegisterRoutes(privAPI, dashboard.NewService(conn))

	r.NoMethod(api.NoMethod)
	r.NoRoute(spaFallback(cfg.Server.StaticDir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 延滞の定期反映
	if cfg.Lending.OverdueSweep > 0 {
		go recordSvc.RunSweeper(ctx, cfg.Lending.OverdueSweep)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// TLS設定。証明書が無ければ平文で待ち受ける
	var certFile, keyFile string
	if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
		certFile = fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Cert)
		keyFile = fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Key)
	}

	go func() {
		var err error
		if certFile != "" {
			logger.Info().Str("addr", srv.Addr).Msg("listening (TLS)")
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logger.Info().Str("addr", srv.Addr).Msg("listening")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

func orDev(secret string) string {
	if secret == "" {
		return devSecret
	}
	return secret
}

// spaFallback: API 以外の未定義パスはフロントのビルド出力を返し、無ければ index.html
func spaFallback(dir string) gin.HandlerFunc {
	if dir == "" {
		return api.NoRoute
	}
	fileFS := http.FS(os.DirFS(dir))

	return func(c *gin.Context) {
		// API は対象外
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			api.NoRoute(c)
			return
		}

		reqPath := strings.TrimPrefix(path.Clean(c.Request.URL.Path), "/")
		if reqPath == "" {
			reqPath = "index.html"
		}

		// 実ファイルがあるならそれを返す（index.html 以外はキャッシュ付与）
		if f, err := fileFS.Open(reqPath); err == nil {
			defer f.Close()
			if st, err := f.Stat(); err == nil && !st.IsDir() {
				if ct := mime.TypeByExtension(path.Ext(reqPath)); ct != "" {
					c.Header("Content-Type", ct)
				}
				if !strings.HasSuffix(reqPath, "index.html") {
					c.Header("Cache-Control", "public, max-age=86400, immutable")
				}
				http.ServeContent(c.Writer, c.Request, reqPath, st.ModTime(), f)
				return
			}
		}

		idx, err := fileFS.Open("index.html")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				api.NoRoute(c)
				return
			}
			c.Status(http.StatusInternalServerError)
			return
		}
		defer idx.Close()
		st, err := idx.Stat()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Header("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(c.Writer, c.Request, "index.html", st.ModTime(), idx)
	}
}
