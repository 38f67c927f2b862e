package core

import (
	"errors"
	"fmt"
)

// QueryError is returned when a warehouse query fails (authentication,
// malformed SQL, transport).
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IOError is returned when a file artifact cannot be written, read or archived.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// SpreadsheetError is returned when a step of the workbook refresh fails.
type SpreadsheetError struct {
	Step string
	Err  error
}

func (e *SpreadsheetError) Error() string {
	return fmt.Sprintf("spreadsheet %s: %v", e.Step, e.Err)
}

func (e *SpreadsheetError) Unwrap() error { return e.Err }

// MailError is returned when the mail transport rejects a message.
type MailError struct {
	Subject string
	Err     error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("failed to send mail %q: %v", e.Subject, e.Err)
}

func (e *MailError) Unwrap() error { return e.Err }

// RenderError is returned when a summary table or email body cannot be rendered.
type RenderError struct {
	Part string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Part, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// StepOf names the pipeline step an error came from, for logging.
func StepOf(err error) string {
	switch {
	case asType[*QueryError](err):
		return "query"
	case asType[*IOError](err):
		return "io"
	case asType[*SpreadsheetError](err):
		return "spreadsheet"
	case asType[*MailError](err):
		return "mail"
	case asType[*RenderError](err):
		return "render"
	default:
		return "unknown"
	}
}

func asType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
