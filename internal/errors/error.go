package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Category represents the type of error.
type Category string

const (
	CategoryProtocol  Category = "protocol"
	CategoryNative    Category = "native"
	CategoryDecode    Category = "decode"
	CategoryConfig    Category = "config"
	CategoryTransport Category = "transport"
)

// RenderError is a structured error with the instruction context it
// occurred in.
type RenderError struct {
	// Code is a unique error identifier (e.g., "R001").
	Code string

	// Category is the error type (protocol, native, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Op is the name of the instruction being applied, if any.
	Op string

	// NodeID is the node the instruction referenced. Only meaningful
	// when HasNode is set.
	NodeID  uint64
	HasNode bool

	// Index is the position of the instruction within its batch, or -1.
	Index int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if where := e.where(); where != "" {
		b.WriteString(" (")
		b.WriteString(where)
		b.WriteString(")")
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RenderError) Unwrap() error {
	return e.Wrapped
}

func (e *RenderError) where() string {
	var parts []string
	if e.Index >= 0 {
		if e.Op != "" {
			parts = append(parts, fmt.Sprintf("instruction #%d %s", e.Index, e.Op))
		} else {
			parts = append(parts, fmt.Sprintf("instruction #%d", e.Index))
		}
	} else if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.HasNode {
		parts = append(parts, fmt.Sprintf("node %d", e.NodeID))
	}
	return strings.Join(parts, ", ")
}

// WithOp records the instruction name.
func (e *RenderError) WithOp(op string) *RenderError {
	e.Op = op
	return e
}

// WithNode records the node id the instruction referenced.
func (e *RenderError) WithNode(id uint64) *RenderError {
	e.NodeID = id
	e.HasNode = true
	return e
}

// WithIndex records the instruction position within its batch.
func (e *RenderError) WithIndex(i int) *RenderError {
	e.Index = i
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *RenderError) WithDetail(d string) *RenderError {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RenderError) WithSuggestion(s string) *RenderError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *RenderError) Wrap(err error) *RenderError {
	e.Wrapped = err
	return e
}

// New creates a RenderError from a registered error code.
func New(code string) *RenderError {
	template, ok := registry[code]
	if !ok {
		return &RenderError{
			Code:    code,
			Message: "Unknown error",
			Index:   -1,
		}
	}
	return &RenderError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
		Index:    -1,
	}
}

// Newf creates a new RenderError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RenderError {
	return &RenderError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Index:    -1,
	}
}

// FromError wraps a standard error in a RenderError.
func FromError(err error, code string) *RenderError {
	if err == nil {
		return nil
	}
	var re *RenderError
	if stderrors.As(err, &re) {
		return re
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first RenderError in err's chain, or "".
func CodeOf(err error) string {
	var re *RenderError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}

// CategoryOf returns the category of the first RenderError in err's chain.
func CategoryOf(err error) Category {
	var re *RenderError
	if stderrors.As(err, &re) {
		return re.Category
	}
	return ""
}

// IsProtocolViolation reports whether err is a fatal stream inconsistency.
func IsProtocolViolation(err error) bool {
	return CategoryOf(err) == CategoryProtocol
}

// IsNative reports whether err is a rejected native capability call.
func IsNative(err error) bool {
	return CategoryOf(err) == CategoryNative
}
