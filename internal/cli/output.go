package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jhoicas/inventario-reservas/internal/domain"
)

// Códigos de salida.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // la operación fue rechazada o falló
	ExitCommandError = 2 // uso incorrecto o backend inaccesible
)

// ExitError error con código de salida asociado.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extrae el código de salida; ExitFailure si err no es *ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode clase de error estable para scripts, la misma que expone la API HTTP.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, domain.ErrNegativeStock):
		return "NEGATIVE_STOCK"
	case errors.Is(err, domain.ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "CONCURRENT_MODIFICATION"
	default:
		return "INTERNAL"
	}
}

// OutputFormatter salida JSON o texto.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse envoltorio de la salida JSON.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" | "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	if t, ok := data.(interface{ Text() string }); ok {
		_, err := fmt.Fprintln(f.Writer, t.Text())
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

var errInvalidFlag = fmt.Errorf("%w: flag inválido", domain.ErrInvalidInput)
