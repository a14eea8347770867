package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/notelog/internal/model"
)

// トークン交換とユーザー情報取得が成功するケース
func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	// Google Token Endpoint
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token endpoint method = %q, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		form := string(body)
		for _, param := range []string{"grant_type=authorization_code", "code=test-auth-code", "client_id=test-client-id", "client_secret=test-client-secret"} {
			if !strings.Contains(form, param) {
				t.Errorf("token request should contain %q, got %q", param, form)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "test-access-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "test-refresh-token",
		})
	}))
	defer tokenServer.Close()

	// Google UserInfo Endpoint
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", authHeader)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":   "google-sub-12345",
			"email": "user@gmail.com",
			"name":  "Google User",
		})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	userInfo, err := provider.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if userInfo.Provider != "google" {
		t.Errorf("provider = %q, want %q", userInfo.Provider, "google")
	}
	if userInfo.ProviderUserID != "google-sub-12345" {
		t.Errorf("providerUserID = %q, want %q", userInfo.ProviderUserID, "google-sub-12345")
	}
	if userInfo.Email != "user@gmail.com" {
		t.Errorf("email = %q, want %q", userInfo.Email, "user@gmail.com")
	}
	if userInfo.Name != "Google User" {
		t.Errorf("name = %q, want %q", userInfo.Name, "Google User")
	}
}

// IdPが交換を拒否した場合、ステータスとボディが診断情報として保持されること
func TestGoogleOAuthProvider_ExchangeCode_UpstreamRejection(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		TokenURL: tokenServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "expired-code")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamAuthError {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamAuthError)
	}
	if apiErr.UpstreamStatus != http.StatusBadRequest {
		t.Errorf("upstream status = %d, want %d", apiErr.UpstreamStatus, http.StatusBadRequest)
	}
	if !strings.Contains(apiErr.UpstreamBody, "invalid_grant") {
		t.Errorf("upstream body should contain invalid_grant, got %q", apiErr.UpstreamBody)
	}
}

// IdPに到達できない場合はUPSTREAM_UNREACHABLEが返ること
func TestGoogleOAuthProvider_ExchangeCode_Unreachable(t *testing.T) {
	// 接続先のないURLを使用
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		TokenURL: "http://127.0.0.1:1/token",
	})

	_, err := provider.ExchangeCode(context.Background(), "some-code")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamUnreachable {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamUnreachable)
	}
}

// トークンレスポンスにaccess_tokenが無い場合は交換失敗として扱うこと
func TestGoogleOAuthProvider_ExchangeCode_EmptyAccessToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token_type": "Bearer",
		})
	}))
	defer tokenServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID: "test-client-id",
		TokenURL: tokenServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "some-code")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamAuthError {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamAuthError)
	}
}

// ユーザー情報にemailが無い場合はINVALID_PROFILE_DATAが返ること
func TestGoogleOAuthProvider_ExchangeCode_MissingEmail(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":  "google-sub-12345",
			"name": "No Email User",
		})
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "some-code")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidProfileData {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidProfileData)
	}
	if !strings.Contains(apiErr.Message, "email") {
		t.Errorf("message should name the missing field, got %q", apiErr.Message)
	}
}

// ユーザー情報取得がIdP側エラーの場合はUPSTREAM_AUTH_ERRORが返ること
func TestGoogleOAuthProvider_ExchangeCode_UserInfoRejection(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
		})
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token"}`))
	}))
	defer userInfoServer.Close()

	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "test-client-id",
		TokenURL:    tokenServer.URL,
		UserInfoURL: userInfoServer.URL,
	})

	_, err := provider.ExchangeCode(context.Background(), "some-code")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamAuthError {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamAuthError)
	}
	if apiErr.UpstreamStatus != http.StatusUnauthorized {
		t.Errorf("upstream status = %d, want %d", apiErr.UpstreamStatus, http.StatusUnauthorized)
	}
}
