package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrTemplateUnreadable = &AppError{Code: "TMPL_001", Message: "template cannot be opened or parsed"}
	ErrTemplateNoFields   = &AppError{Code: "TMPL_002", Message: "template has no fillable text fields"}

	ErrMappingUnknownField = &AppError{Code: "MAP_001", Message: "mapping references a field not present in the template"}
	ErrMappingNoNameField  = &AppError{Code: "MAP_002", Message: "no name field could be mapped"}

	ErrRenderGeneration = &AppError{Code: "RENDER_001", Message: "certificate generation failed"}

	ErrMissingName = &AppError{Code: "INPUT_001", Message: "Missing first or last name"}

	ErrArchiveFailed = &AppError{Code: "ARCHIVE_001", Message: "archive packaging failed"}

	ErrBatchNotFound = &AppError{Code: "BATCH_001", Message: "batch not found"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
