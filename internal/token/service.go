// Package token はJWTアクセストークンとリフレッシュトークンの発行・検証・ローテーションを提供する。
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/notelog/internal/model"
	"github.com/hitoshi/notelog/internal/repository"
)

// トークン種別。アクセストークンをリフレッシュ用途に流用できないよう
// クレームに埋め込んで検証する。
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims はJWTのカスタムクレーム。
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// ServiceConfig はトークンサービスの設定。
type ServiceConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service はJWTトークンペアの発行とローテーションを提供する。
type Service struct {
	config    ServiceConfig
	tokenRepo repository.TokenRepository
}

// NewService はServiceを生成する。
func NewService(config ServiceConfig, tokenRepo repository.TokenRepository) *Service {
	return &Service{
		config:    config,
		tokenRepo: tokenRepo,
	}
}

// IssuePair はユーザーのアクセストークンとリフレッシュトークンを発行する。
// リフレッシュトークンにはローテーション追跡用のjtiが含まれる。
func (s *Service) IssuePair(userID string) (*model.TokenPair, error) {
	now := time.Now()

	access, err := s.sign(&Claims{
		UserID:    userID,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := s.sign(&Claims{
		UserID:    userID,
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &model.TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateAccess はアクセストークンを検証しユーザーIDを返す。
// 期限切れ、署名不正、トークン種別不一致はいずれもTOKEN_INVALIDとして返す。
func (s *Service) ValidateAccess(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TokenTypeAccess {
		return "", model.NewTokenInvalidError("not an access token")
	}
	return claims.UserID, nil
}

// Rotate はリフレッシュトークンを検証し、新しいトークンペアを発行する。
// 使用済みのリフレッシュトークンはデナイリストにより拒否される（単回使用）。
// 発行前に旧トークンのjtiを失効させるため、同一トークンの再使用は常に失敗する。
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, model.NewTokenInvalidError("not a refresh token")
	}
	if claims.ID == "" {
		return nil, model.NewTokenInvalidError("missing token ID")
	}

	revoked, err := s.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		slog.Warn("revoked refresh token presented",
			slog.String("user_id", claims.UserID),
			slog.String("jti", claims.ID),
		)
		return nil, model.NewTokenInvalidError("token has been revoked")
	}

	// Revokeは登録と重複判定を単一INSERTで行う。同一トークンの並行ローテーション
	// では1リクエストだけがinserted=trueを受け取り、残りはここで拒否される。
	inserted, err := s.tokenRepo.Revoke(ctx, &model.RevokedToken{
		JTI:       claims.ID,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
		RevokedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !inserted {
		slog.Warn("refresh token reuse detected",
			slog.String("user_id", claims.UserID),
			slog.String("jti", claims.ID),
		)
		return nil, model.NewTokenInvalidError("token has been revoked")
	}

	pair, err := s.IssuePair(claims.UserID)
	if err != nil {
		return nil, err
	}

	slog.Info("token pair rotated", slog.String("user_id", claims.UserID))
	return pair, nil
}

// sign はクレームをHS256で署名する。
func (s *Service) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.Secret)
}

// parse はトークン文字列を検証しクレームを取り出す。
func (s *Service) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewTokenInvalidError("token has expired")
		}
		return nil, model.NewTokenInvalidError("token could not be verified")
	}
	if !token.Valid {
		return nil, model.NewTokenInvalidError("token could not be verified")
	}
	return claims, nil
}
