package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/notelog/internal/metrics"
	"github.com/hitoshi/notelog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.AccessTokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService  AuthServiceInterface
	TokenService TokenServiceInterface
	NoteService  NoteServiceInterface

	// 可観測性
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック用DB接続
	DB *sql.DB
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging
//
// 認証ルート（/auth/*）にはIP単位のレート制限、
// 保護ルート（/api/*）にはBearerトークン検証とユーザー単位のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	// Collector未指定の構成でもハンドラーが記録呼び出しで落ちないようにする
	collector := deps.Collector
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenService, collector)
	noteHandler := NewNoteHandler(deps.NoteService)

	// --- 認証不要のルート ---

	// 認証ルート。未認証で到達するためIP単位のレート制限を適用する。
	r.Route("/auth", func(r chi.Router) {
		authLimit := deps.RateLimiter.AuthMiddleware()

		r.With(authLimit).Post("/google/token", authHandler.GoogleToken)
		r.Get("/google/token", authHandler.GoogleTokenInfo)
		r.With(authLimit).Post("/register", authHandler.Register)
		r.With(authLimit).Post("/login", authHandler.Login)
		r.With(authLimit).Post("/refresh", authHandler.Refresh)

		// GET /auth/me はBearerトークンが必要
		r.With(middleware.NewAuthMiddleware(deps.TokenValidator)).Get("/me", authHandler.Me)
	})

	// ヘルスチェック
	r.Get("/health", healthHandler(deps.DB))

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/notes", func(r chi.Router) {
			r.Get("/", noteHandler.ListNotes)
			r.Post("/", noteHandler.CreateNote)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", noteHandler.GetNote)
				r.Put("/", noteHandler.UpdateNote)
				r.Delete("/", noteHandler.DeleteNote)
			})
		})
	})

	return r
}

// healthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
