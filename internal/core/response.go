// AngelaMos | 2026
// response.go

package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

type Response struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
	Meta    *Meta         `json:"meta,omitempty"`
}

type ErrorPayload struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Response{Success: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Ack(w http.ResponseWriter, message string) {
	OK(w, MessageResponse{Message: message})
}

func Paginated(w http.ResponseWriter, data any, page, pageSize, total int) {
	JSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: TotalPages(total, pageSize),
		},
	})
}

func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func File(
	w http.ResponseWriter,
	contentType, filename string,
	data []byte,
) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filename),
	)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data) //nolint:errcheck // client went away
}

func JSONError(w http.ResponseWriter, appErr *AppError) {
	JSON(w, appErr.StatusCode, Response{
		Success: false,
		Error: &ErrorPayload{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// Error renders err with its kind's status. Errors without a kind are logged
// and surface as DEFAULT_ERROR so storage details never reach the client.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("request failed", "code", appErr.Code, "error", err)
		}
		JSONError(w, appErr)
		return
	}

	if errors.Is(err, ErrNotFound) {
		JSONError(w, NotFoundError("resource"))
		return
	}

	slog.Error("unhandled error", "error", err)
	JSONError(w, E(CodeDefault))
}

func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, Ef(CodeValidation, "%s", message))
}

func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	JSONError(w, E(CodeDefault))
}
