// Package auth はGoogle OAuth認可コード交換、パスワード認証、ユーザー解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/notelog/internal/model"
	"github.com/hitoshi/notelog/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// パスワードの最小文字数。
const minPasswordLength = 8

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	userRepo  repository.UserRepository
	identRepo repository.IdentityRepository
	hasher    *PasswordHasher
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	hasher *PasswordHasher,
) *Service {
	return &Service{
		oauth:     oauth,
		userRepo:  userRepo,
		identRepo: identRepo,
		hasher:    hasher,
	}
}

// LoginWithGoogle は認可コードを交換し、ローカルユーザーを解決する。
// 戻り値のcreatedは新規ユーザーが作成された場合にtrue。
//
// ユーザー解決は3段階：
//  1. (provider, provider_user_id)で既存identityを検索
//  2. emailで既存ユーザーを検索し、identityを紐付け（表示名が空ならバックフィル）
//  3. どちらも無ければユーザーとidentityを同時に作成
//
// 同一emailの同時リクエストで作成が競合した場合は勝者のレコードを再取得して
// 使用するため、呼び出し元に重複エラーが漏れることはない。
func (s *Service) LoginWithGoogle(ctx context.Context, code string) (*model.User, bool, error) {
	// IdPへの呼び出し前に検証する。空コードで外部リクエストは発生させない。
	if strings.TrimSpace(code) == "" {
		return nil, false, model.NewMissingCodeError()
	}

	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, false, err
	}

	// 1. identitiesテーブルで既存ユーザーを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, false, fmt.Errorf("identity %s references missing user %s", identity.ID, identity.UserID)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", userInfo.Provider),
		)
		return user, false, nil
	}

	// 2. emailで既存ユーザーを検索し、identityを紐付け
	user, err := s.userRepo.FindByEmail(ctx, userInfo.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user != nil {
		if err := s.linkIdentity(ctx, user, userInfo); err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	// 3. 新規ユーザー: usersレコードとidentitiesレコードを同時に作成
	return s.createUserWithIdentity(ctx, userInfo)
}

// linkIdentity は既存ユーザーにidentityを紐付ける。
// 表示名が空の場合はIdPのプロフィールからバックフィルする。
func (s *Service) linkIdentity(ctx context.Context, user *model.User, userInfo *OAuthUserInfo) error {
	if user.Name == "" {
		name := displayName(userInfo)
		if err := s.userRepo.UpdateName(ctx, user.ID, name); err != nil {
			return fmt.Errorf("failed to backfill user name: %w", err)
		}
		user.Name = name
	}

	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      time.Now(),
	}
	err := s.identRepo.Create(ctx, newIdentity)
	if err != nil && !errors.Is(err, repository.ErrDuplicateIdentity) {
		return fmt.Errorf("failed to link identity: %w", err)
	}

	slog.Info("identity linked to existing user",
		slog.String("user_id", user.ID),
		slog.String("provider", userInfo.Provider),
	)
	return nil
}

// createUserWithIdentity は新規ユーザーとidentityを作成する。
// 作成が競合した場合は勝者のユーザーを再取得して返す。
func (s *Service) createUserWithIdentity(ctx context.Context, userInfo *OAuthUserInfo) (*model.User, bool, error) {
	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     userInfo.Email,
		Name:      displayName(userInfo),
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       userInfo.Provider,
		ProviderUserID: userInfo.ProviderUserID,
		CreatedAt:      now,
	}

	err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", newUser.ID),
			slog.String("provider", userInfo.Provider),
		)
		return newUser, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, false, fmt.Errorf("failed to create user and identity: %w", err)
	}

	// 同時リクエストとの競合。勝者のユーザーを再取得してidentityを紐付ける。
	user, findErr := s.userRepo.FindByEmail(ctx, userInfo.Email)
	if findErr != nil {
		return nil, false, fmt.Errorf("failed to refetch user after duplicate: %w", findErr)
	}
	if user == nil {
		return nil, false, fmt.Errorf("failed to create user and identity: %w", err)
	}
	if linkErr := s.linkIdentity(ctx, user, userInfo); linkErr != nil {
		return nil, false, linkErr
	}
	return user, false, nil
}

// Register はemailとパスワードで新規ユーザーを登録する。
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewValidationError("Email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, model.NewValidationError("Email is not a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, model.NewValidationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if name == "" {
		name = emailLocalPart(email)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// LoginWithPassword はemailとパスワードでユーザーを認証する。
// ユーザーが存在しない場合とパスワード不一致は同一のエラーを返す。
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	// OAuthのみで作成されたアカウントはPasswordHashが空であり、照合は常に失敗する。
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("user logged in with password", slog.String("user_id", user.ID))
	return user, nil
}

// GetUser は指定IDのユーザーを取得する。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// displayName はIdPプロフィールから表示名を決定する。
// nameが空の場合はemailのローカル部を使用する。
func displayName(userInfo *OAuthUserInfo) string {
	if userInfo.Name != "" {
		return userInfo.Name
	}
	return emailLocalPart(userInfo.Email)
}

// emailLocalPart はemailの@より前の部分を返す。
func emailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
