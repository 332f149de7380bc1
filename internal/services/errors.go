package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProbe           = errors.New("probe error")
	ErrEncode          = errors.New("encode error")
	ErrSubtitleExtract = errors.New("subtitle extract error")
	ErrCaptionParse    = errors.New("caption parse error")
	ErrConnection      = errors.New("connection error")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrConfiguration   = errors.New("configuration error")
	ErrTimeout         = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ToolOutputError attaches captured stderr/stdout of an external tool to an error.
type ToolOutputError struct {
	Err    error
	Output string
}

func (e *ToolOutputError) Error() string {
	if e.Output == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Output)
}

func (e *ToolOutputError) Unwrap() error { return e.Err }

// WithOutput returns err annotated with tool output. Blank output leaves err unchanged.
func WithOutput(err error, output string) error {
	if err == nil {
		return nil
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return err
	}
	return &ToolOutputError{Err: err, Output: output}
}

// ToolOutput returns the captured tool output carried by err, if any.
func ToolOutput(err error) string {
	var toolErr *ToolOutputError
	if errors.As(err, &toolErr) {
		return toolErr.Output
	}
	return ""
}

// Kind returns a short machine-readable label for the error marker carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProbe):
		return "probe"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrSubtitleExtract):
		return "subtitle_extract"
	case errors.Is(err, ErrCaptionParse):
		return "caption_parse"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

// Details returns a single-line operator message for err, without tool output.
func Details(err error) string {
	if err == nil {
		return ""
	}
	var toolErr *ToolOutputError
	if errors.As(err, &toolErr) {
		msg := err.Error()
		if idx := strings.LastIndex(msg, ": "+toolErr.Output); idx > 0 {
			msg = msg[:idx]
		}
		return firstLine(msg)
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
