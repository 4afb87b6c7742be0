package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roach88/runproof/internal/diff"
	"github.com/roach88/runproof/internal/replay"
	"github.com/roach88/runproof/internal/run"
	"github.com/roach88/runproof/internal/store"
)

// Error codes for failures that are not replay configuration or run
// validation errors; those carry their own codes.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeNoStore        = "STORE_DISABLED"
	CodeInternal       = "INTERNAL"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	StepIndex int    `json:"step_index,omitempty"`
}

var errNoStore = errors.New("server was started without a run store")

// requestError is a malformed request detected after binding.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func requestErrorf(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// refError answers a failure to resolve or record runs.
func (h *Handler) refError(c echo.Context, err error) error {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return h.badRequest(c, re.msg)
	case errors.Is(err, errNoStore):
		return h.noStore(c)
	default:
		return h.fail(c, err)
	}
}

func (h *Handler) badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Code: CodeInvalidRequest, Message: msg}})
}

func (h *Handler) noStore(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: ErrorDetail{
		Code:    CodeNoStore,
		Message: errNoStore.Error(),
	}})
}

// fail maps a domain error to a status code and error body.
func (h *Handler) fail(c echo.Context, err error) error {
	var (
		ce *replay.ConfigurationError
		ve *run.ValidationError
	)
	status := http.StatusInternalServerError
	detail := ErrorDetail{Code: CodeInternal, Message: err.Error()}

	switch {
	case errors.As(err, &ce):
		status = http.StatusUnprocessableEntity
		detail.Code = string(ce.Code)
		detail.StepIndex = ce.StepIndex
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		detail.Code = string(ve.Code)
	case errors.Is(err, diff.ErrInvalidOptions):
		status = http.StatusBadRequest
		detail.Code = CodeInvalidRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		detail.Code = CodeNotFound
	case errors.Is(err, store.ErrFingerprintConflict):
		status = http.StatusConflict
		detail.Code = CodeConflict
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}
	return c.JSON(status, ErrorBody{Error: detail})
}
