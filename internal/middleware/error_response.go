package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/notelog/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// メッセージはerrorフィールドで返し、原因カテゴリと対処方法を含む。
// DetailsとStatusCodeはIdP起因のエラーでのみ設定され、診断用に返却される。
type ErrorResponseBody struct {
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Category   string          `json:"category"`
	Action     string          `json:"action"`
	Details    json.RawMessage `json:"details,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	body := ErrorResponseBody{
		Error:    apiErr.Message,
		Code:     apiErr.Code,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if apiErr.UpstreamBody != "" {
		// IdPのボディがJSONならそのまま埋め込み、そうでなければ文字列として返す
		if json.Valid([]byte(apiErr.UpstreamBody)) {
			body.Details = json.RawMessage(apiErr.UpstreamBody)
		} else {
			quoted, _ := json.Marshal(apiErr.UpstreamBody)
			body.Details = quoted
		}
		body.StatusCode = apiErr.UpstreamStatus
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "An internal error occurred",
		Category: "system",
		Action:   "Wait a moment and retry.",
	})
}
