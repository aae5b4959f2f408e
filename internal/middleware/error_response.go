package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/conduit/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ValidationErrorBody はフィールド単位の制約違反のレスポンス。
// {"errors": {"username": "is already taken"}} の形式。
type ValidationErrorBody struct {
	Errors map[string]string `json:"errors"`
}

// apiErrorStatus はAPIErrorのコードとHTTPステータスの対応。
var apiErrorStatus = map[string]int{
	model.ErrCodeNotFound:       http.StatusNotFound,
	model.ErrCodeUnauthorized:   http.StatusUnauthorized,
	model.ErrCodeForbidden:      http.StatusForbidden,
	model.ErrCodeInvalidRequest: http.StatusBadRequest,
	model.ErrCodeUnavailable:    http.StatusServiceUnavailable,
	model.ErrCodeInternal:       http.StatusInternalServerError,
}

// StatusForAPIError はAPIErrorのコードに対応するHTTPステータスを返す。未知のコードは500。
func StatusForAPIError(apiErr *model.APIError) int {
	if status, ok := apiErrorStatus[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteAPIError はコードから決まるステータスでAPIErrorを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForAPIError(apiErr), apiErr)
}

// WriteErrorResponse は指定ステータスで統一エラーフォーマットを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteValidationError は422とフィールドごとのメッセージを書き込む。
func WriteValidationError(w http.ResponseWriter, ve *model.ValidationError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(ValidationErrorBody{Errors: ve.Fields})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
