package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// UpstreamStatus/UpstreamBodyはIdP起因のエラーでのみ設定され、診断用に返却される。
type APIError struct {
	Code           string // エラーコード
	Message        string // エラーメッセージ
	Category       string // カテゴリ: auth, validation, upstream, system
	Action         string // ユーザー向け対処方法
	UpstreamStatus int    // IdPのHTTPステータス（upstream系のみ）
	UpstreamBody   string // IdPのレスポンスボディ（upstream系のみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUpstreamAuthError   = "UPSTREAM_AUTH_ERROR"
	ErrCodeUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
	ErrCodeInvalidProfileData  = "INVALID_PROFILE_DATA"
	ErrCodeValidationError     = "VALIDATION_ERROR"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeNoteNotFound        = "NOTE_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewMissingCodeError は認可コード未指定エラーを生成する。
// IdPへの呼び出しを行う前に返す。
func NewMissingCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Authorization code is required",
		Category: "validation",
		Action:   "Retry the login flow to obtain a fresh authorization code.",
	}
}

// NewUpstreamAuthError はIdPが交換を拒否した場合のエラーを生成する。
// IdPのステータスとボディを診断情報として保持する。
func NewUpstreamAuthError(message string, status int, body string) *APIError {
	return &APIError{
		Code:           ErrCodeUpstreamAuthError,
		Message:        message,
		Category:       "upstream",
		Action:         "Restart the login flow. Authorization codes are single-use.",
		UpstreamStatus: status,
		UpstreamBody:   body,
	}
}

// NewUpstreamUnreachableError はIdPに到達できなかった場合のエラーを生成する。
func NewUpstreamUnreachableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnreachable,
		Message:  fmt.Sprintf("Identity provider is unreachable: %s", reason),
		Category: "upstream",
		Action:   "Wait a moment and retry the login flow.",
	}
}

// NewInvalidProfileDataError はIdPが利用不能なプロフィールを返した場合のエラーを生成する。
// emailはローカルユーザー解決の結合キーであり、欠落すると処理を継続できない。
func NewInvalidProfileDataError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfileData,
		Message:  fmt.Sprintf("%s not found in identity provider user data", field),
		Category: "upstream",
		Action:   "Grant the email and profile scopes on the consent screen.",
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationError,
		Message:  message,
		Category: "validation",
		Action:   "Fix the request body and retry.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "A user with this email already exists",
		Category: "validation",
		Action:   "Log in with this email instead, or use another address.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// アカウント有無を漏らさないため、メッセージは存在しないユーザーとパスワード不一致で共通。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check the email and password and retry.",
	}
}

// NewTokenInvalidError はトークン検証失敗エラーを生成する。
// 期限切れ、署名不正、失効済みのいずれも同一コードで返す。
func NewTokenInvalidError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  fmt.Sprintf("Token is invalid: %s", reason),
		Category: "auth",
		Action:   "Log in again to obtain a new token pair.",
	}
}

// NewNoteNotFoundError はノート未検出エラーを生成する。
func NewNoteNotFoundError(noteID string) *APIError {
	return &APIError{
		Code:     ErrCodeNoteNotFound,
		Message:  fmt.Sprintf("Note not found: %s", noteID),
		Category: "validation",
		Action:   "Check the note ID.",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}
