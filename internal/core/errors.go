// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrInvalidID     = errors.New("invalid identifier")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotVerified   = errors.New("not verified")
	ErrLocked        = errors.New("locked")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrExternal      = errors.New("external service failure")
	ErrInternal      = errors.New("internal error")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnsupportedOp = errors.New("unsupported operation")
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidID          = "INVALID_ID"
	CodeInvalidEntityName  = "INVALID_ENTITY_NAME"
	CodeDefault            = "DEFAULT_ERROR"
	CodeNotToken           = "NOT_TOKEN"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeEmailNotValidated  = "EMAIL_NOT_VALIDATED"
	CodeNotAllowed         = "NOT_ALLOWED"
	CodeUnauthorizedAction = "UNAUTHORIZED_ACTION"
	CodeUserNotExists      = "USER_NOT_EXISTS"
	CodeEmailExists        = "EMAIL_ALREADY_EXISTS"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeInvalidCode        = "INVALID_CODE"
	CodeMaxAttempts        = "MAX_ATTEMPTS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeSamePassword       = "SAME_PASSWORD"
	CodeNoFileUploaded     = "NO_FILE_UPLOADED"
	CodeInvalidFileType    = "INVALID_FILE_TYPE"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeUploadFailed       = "ERROR_UPLOADING_FILE"
	CodeFileURLInvalid     = "FILE_URL_INVALID"
	CodeCIDNotFound        = "CID_NOT_FOUND"
	CodePinataFetch        = "PINATA_FETCH_ERROR"
	CodeFileFetch          = "FILE_FETCH_ERROR"
	CodePinataAPI          = "PINATA_API_ERROR"
	CodeFileNotFound       = "TFG_FILE_NOT_FOUND"
	CodeDeleteFailed       = "ERROR_DELETING_FILE"
	CodeRateLimited        = "RATE_LIMITED"
)

// Entity-scoped kinds are built as <ENTITY><suffix>, e.g. YEAR_IN_USE.
const (
	SuffixNotFound      = "_NOT_FOUND"
	SuffixAlreadyExists = "_ALREADY_EXISTS"
	SuffixInUse         = "_IN_USE"
	SuffixNotVerified   = "_NOT_VERIFIED"
)

type kindInfo struct {
	status  int
	message string
	err     error
}

var kinds = map[string]kindInfo{
	CodeValidation:         {http.StatusUnprocessableEntity, "validation failed", ErrInvalidInput},
	CodeInvalidID:          {http.StatusBadRequest, "invalid identifier", ErrInvalidID},
	CodeInvalidEntityName:  {http.StatusBadRequest, "operation not supported for this entity", ErrUnsupportedOp},
	CodeDefault:            {http.StatusInternalServerError, "an unexpected error occurred", ErrInternal},
	CodeNotToken:           {http.StatusUnauthorized, "authentication token required", ErrUnauthorized},
	CodeInvalidToken:       {http.StatusUnauthorized, "invalid or expired token", ErrTokenInvalid},
	CodeEmailNotValidated:  {http.StatusUnauthorized, "email address has not been validated", ErrUnauthorized},
	CodeNotAllowed:         {http.StatusForbidden, "role not allowed to perform this action", ErrForbidden},
	CodeUnauthorizedAction: {http.StatusForbidden, "not authorized to perform this action", ErrForbidden},
	CodeUserNotExists:      {http.StatusNotFound, "user does not exist", ErrNotFound},
	CodeEmailExists:        {http.StatusConflict, "email already registered", ErrDuplicateKey},
	CodeInvalidPassword:    {http.StatusUnauthorized, "invalid password", ErrUnauthorized},
	CodeInvalidCode:        {http.StatusBadRequest, "invalid verification code", ErrInvalidInput},
	CodeMaxAttempts:        {http.StatusForbidden, "maximum attempts reached", ErrLocked},
	CodeAccountLocked:      {http.StatusForbidden, "account locked after too many failed attempts", ErrLocked},
	CodeSamePassword:       {http.StatusConflict, "new password must differ from the current one", ErrConflict},
	CodeNoFileUploaded:     {http.StatusBadRequest, "no file uploaded", ErrInvalidInput},
	CodeInvalidFileType:    {http.StatusBadRequest, "only PDF files are accepted", ErrInvalidInput},
	CodeFileTooLarge:       {http.StatusRequestEntityTooLarge, "file exceeds the upload limit", ErrInvalidInput},
	CodeUploadFailed:       {http.StatusInternalServerError, "error uploading file", ErrExternal},
	CodeFileURLInvalid:     {http.StatusBadRequest, "stored file URL is invalid", ErrInvalidInput},
	CodeCIDNotFound:        {http.StatusBadRequest, "content identifier not found in file URL", ErrInvalidInput},
	CodePinataFetch:        {http.StatusBadGateway, "error fetching file from pinning service", ErrExternal},
	CodeFileFetch:          {http.StatusBadGateway, "error fetching file", ErrExternal},
	CodePinataAPI:          {http.StatusBadGateway, "pinning service error", ErrExternal},
	CodeFileNotFound:       {http.StatusNotFound, "thesis has no file attached", ErrNotFound},
	CodeDeleteFailed:       {http.StatusBadGateway, "error deleting stored file", ErrExternal},
	CodeRateLimited:        {http.StatusTooManyRequests, "rate limit exceeded", ErrRateLimited},
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldViolation is returned by repositories when the store rejects a value
// for a specific column.
type FieldViolation struct {
	Field   string
	Message string
}

func (v *FieldViolation) Error() string {
	return fmt.Sprintf("field %s: %s", v.Field, v.Message)
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
	Details    []FieldError
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(
	err error,
	message string,
	statusCode int,
	code string,
) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given error kind.
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

// E builds an AppError of a known kind with its default message and status.
func E(code string) *AppError {
	info := lookupKind(code)
	return NewAppError(info.err, info.message, info.status, code)
}

// Ef is E with a custom message.
func Ef(code, format string, args ...any) *AppError {
	appErr := E(code)
	appErr.Message = fmt.Sprintf(format, args...)
	return appErr
}

func EntityCode(entity, suffix string) string {
	return strings.ToUpper(entity) + suffix
}

func NotFoundError(entity string) *AppError {
	return Ef(EntityCode(entity, SuffixNotFound), "%s not found", entity)
}

func AlreadyExistsError(entity string) *AppError {
	return Ef(EntityCode(entity, SuffixAlreadyExists), "%s already exists", entity)
}

func InUseError(entity string) *AppError {
	return Ef(
		EntityCode(entity, SuffixInUse),
		"%s is referenced by at least one thesis",
		entity,
	)
}

func NotVerifiedError(entity string) *AppError {
	return Ef(EntityCode(entity, SuffixNotVerified), "%s is not verified yet", entity)
}

func ValidationError(details ...FieldError) *AppError {
	appErr := E(CodeValidation)
	appErr.Details = details
	return appErr
}

// Wrap attaches the underlying cause, keeping kind and message.
func (e *AppError) Wrap(cause error) *AppError {
	e.Err = fmt.Errorf("%w: %w", lookupKind(e.Code).err, cause)
	return e
}

func lookupKind(code string) kindInfo {
	if info, ok := kinds[code]; ok {
		return info
	}

	switch {
	case strings.HasSuffix(code, SuffixNotFound):
		return kindInfo{http.StatusNotFound, "not found", ErrNotFound}
	case strings.HasSuffix(code, SuffixAlreadyExists):
		return kindInfo{http.StatusConflict, "already exists", ErrDuplicateKey}
	case strings.HasSuffix(code, SuffixInUse):
		return kindInfo{http.StatusConflict, "in use", ErrConflict}
	case strings.HasSuffix(code, SuffixNotVerified):
		return kindInfo{http.StatusForbidden, "not verified", ErrNotVerified}
	}

	return kinds[CodeDefault]
}

func StatusFor(code string) int {
	return lookupKind(code).status
}
