// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/notelog/internal/metrics"
	"github.com/hitoshi/notelog/internal/middleware"
	"github.com/hitoshi/notelog/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// LoginWithGoogle は認可コードを交換しローカルユーザーを解決する。
	LoginWithGoogle(ctx context.Context, code string) (*model.User, bool, error)
	// Register はemailとパスワードで新規ユーザーを登録する。
	Register(ctx context.Context, email, name, password string) (*model.User, error)
	// LoginWithPassword はemailとパスワードでユーザーを認証する。
	LoginWithPassword(ctx context.Context, email, password string) (*model.User, error)
	// GetUser は指定IDのユーザーを取得する。
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// TokenServiceInterface はトークン発行に必要なサービスインターフェース。
type TokenServiceInterface interface {
	// IssuePair はアクセストークンとリフレッシュトークンを発行する。
	IssuePair(userID string) (*model.TokenPair, error)
	// Rotate はリフレッシュトークンを検証し新しいペアを発行する。
	Rotate(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	authService  AuthServiceInterface
	tokenService TokenServiceInterface
	collector    metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(authService AuthServiceInterface, tokenService TokenServiceInterface, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenService: tokenService,
		collector:    collector,
	}
}

// googleTokenRequest はGoogleログインリクエストのボディ。
// redirect_uriは受理するが、交換にはサーバー側設定のリダイレクトURLを使用する。
type googleTokenRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// loginRequest はパスワードログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest はトークン更新リクエストのボディ。
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// googleTokenResponse はGoogleログイン成功時のレスポンス。
type googleTokenResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    userResponse `json:"user"`
}

// loginResponse はパスワードログイン成功時のレスポンス。
type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Name    string `json:"name"`
}

// tokenPairResponse はトークン更新成功時のレスポンス。
type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GoogleToken はGoogle OAuthの認可コードを受け取りトークンペアを発行する。
// POST /auth/google/token
func (h *AuthHandler) GoogleToken(w http.ResponseWriter, r *http.Request) {
	var req googleTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	start := time.Now()
	user, created, err := h.authService.LoginWithGoogle(r.Context(), req.Code)
	elapsed := time.Since(start)
	if err != nil {
		// コード未指定などIdPに到達しない失敗は交換レイテンシに含めない
		if exchangeAttempted(err) {
			h.collector.RecordExchangeLatency(elapsed)
		}
		h.collector.RecordLoginFailure("google", loginFailureReason(err))
		handleServiceError(w, err)
		return
	}
	h.collector.RecordExchangeLatency(elapsed)

	pair, err := h.tokenService.IssuePair(user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordLoginSuccess("google")
	h.collector.RecordTokenPairIssued()
	if created {
		h.collector.RecordUserCreated()
	}

	writeJSON(w, http.StatusOK, googleTokenResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		User:    toUserResponse(user),
	})
}

// GoogleTokenInfo はGETでアクセスされた場合に使用方法を案内する。
// GET /auth/google/token
func (h *AuthHandler) GoogleTokenInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Send a POST request with an authorization code to obtain tokens",
	})
}

// Register はemailとパスワードで新規ユーザーを登録する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordUserCreated()
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login はemailとパスワードでログインしトークンペアを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}

	user, err := h.authService.LoginWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.collector.RecordLoginFailure("password", loginFailureReason(err))
		handleServiceError(w, err)
		return
	}

	pair, err := h.tokenService.IssuePair(user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordLoginSuccess("password")
	h.collector.RecordTokenPairIssued()

	writeJSON(w, http.StatusOK, loginResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		Name:    user.Name,
	})
}

// Refresh はリフレッシュトークンをローテーションし新しいペアを返す。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, invalidBodyError())
		return
	}
	if req.Refresh == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Refresh token is required"))
		return
	}

	pair, err := h.tokenService.Rotate(r.Context(), req.Refresh)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordTokenRotation()
	h.collector.RecordTokenPairIssued()

	writeJSON(w, http.StatusOK, tokenPairResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
	})
}

// Me は認証済みユーザー自身の情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError("missing bearer token"))
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- ヘルパー関数 ---

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

// invalidBodyError はJSONボディ解析失敗のエラーを返す。
func invalidBodyError() *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "Request body could not be parsed",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// exchangeAttempted はエラーがIdPへの交換呼び出し後に発生したものかを返す。
// リクエスト検証段階の失敗（コード未指定など）はIdPに到達していない。
func exchangeAttempted(err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationError:
		return false
	default:
		return true
	}
}

// loginFailureReason はメトリクスのラベル用に失敗理由を分類する。
func loginFailureReason(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return "internal"
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest:
		return "missing_code"
	case model.ErrCodeUpstreamAuthError:
		return "upstream_rejected"
	case model.ErrCodeUpstreamUnreachable:
		return "upstream_unreachable"
	case model.ErrCodeInvalidProfileData:
		return "invalid_profile"
	case model.ErrCodeInvalidCredentials:
		return "invalid_credentials"
	default:
		return "internal"
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// IdPが交換を拒否した場合はクライアント側のコード不備として400で返し、
// IdPに到達できなかった場合のみ502を返す。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationError, model.ErrCodeInvalidProfileData, model.ErrCodeUpstreamAuthError:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamUnreachable:
		return http.StatusBadGateway
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidCredentials, model.ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	case model.ErrCodeNoteNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
