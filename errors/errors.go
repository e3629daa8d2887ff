package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseHeader   Phase = "header"   // magic and version
	PhaseScan     Phase = "scan"     // section table walk
	PhaseDecode   Phase = "decode"   // section payloads
	PhaseValidate Phase = "validate" // cross-references
	PhaseLoad     Phase = "load"     // buffer acquisition
	PhaseVerify   Phase = "verify"   // cross-check against wazero
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnexpectedEOF      Kind = "unexpected_eof"
	KindMalformedVarint    Kind = "malformed_varint"
	KindInvalidUTF8        Kind = "invalid_utf8"
	KindBadMagic           Kind = "bad_magic"
	KindUnsupportedVersion Kind = "unsupported_version"
	KindTruncatedSection   Kind = "truncated_section"
	KindUnknownValueKind   Kind = "unknown_value_kind"
	KindUnknownExportKind  Kind = "unknown_export_kind"
	KindInvalidTypeForm    Kind = "invalid_type_form"
	KindInvalidConstExpr   Kind = "invalid_const_expr"
	KindTooManyLocals      Kind = "too_many_locals"
	KindSectionOverrun     Kind = "section_overrun"
	KindInvalidModule      Kind = "invalid_module"
	KindVerifyMismatch     Kind = "verify_mismatch"
	KindTimeout            Kind = "timeout"
	KindInvalidInput       Kind = "invalid_input"
)

// Reason narrows KindInvalidModule to the structural check that failed.
type Reason string

const (
	ReasonFunctionCodeMismatch       Reason = "function_code_mismatch"
	ReasonTypeIndexOutOfBounds       Reason = "type_index_out_of_bounds"
	ReasonExportIndexOutOfBounds     Reason = "export_index_out_of_bounds"
	ReasonDuplicateExport            Reason = "duplicate_export"
	ReasonDuplicateSection           Reason = "duplicate_section"
	ReasonSectionOrder               Reason = "section_order"
	ReasonStartIndexOutOfBounds      Reason = "start_index_out_of_bounds"
	ReasonImportTypeIndexOutOfBounds Reason = "import_type_index_out_of_bounds"
	ReasonTableIndexOutOfBounds      Reason = "table_index_out_of_bounds"
	ReasonMemoryIndexOutOfBounds     Reason = "memory_index_out_of_bounds"
	ReasonFunctionIndexOutOfBounds   Reason = "function_index_out_of_bounds"
)

// NoOffset marks errors that are not tied to a byte position.
const NoOffset = -1

// Error is the structured error type returned by the reader
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Reason  Reason
	Section string
	Detail  string
	Offset  int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Reason != "" {
		b.WriteByte('{')
		b.WriteString(string(e.Reason))
		b.WriteByte('}')
	}

	if e.Section != "" {
		b.WriteString(" in ")
		b.WriteString(e.Section)
		b.WriteString(" section")
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset 0x%x", e.Offset)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Kind must match; Phase and
// Reason only participate when the target sets them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	if t.Reason != "" && e.Reason != t.Reason {
		return false
	}
	return true
}

// Sentinels for errors.Is matching by kind.
var (
	ErrUnexpectedEOF      = &Error{Kind: KindUnexpectedEOF, Offset: NoOffset}
	ErrMalformedVarint    = &Error{Kind: KindMalformedVarint, Offset: NoOffset}
	ErrInvalidUTF8        = &Error{Kind: KindInvalidUTF8, Offset: NoOffset}
	ErrBadMagic           = &Error{Kind: KindBadMagic, Offset: NoOffset}
	ErrUnsupportedVersion = &Error{Kind: KindUnsupportedVersion, Offset: NoOffset}
	ErrTruncatedSection   = &Error{Kind: KindTruncatedSection, Offset: NoOffset}
	ErrUnknownValueKind   = &Error{Kind: KindUnknownValueKind, Offset: NoOffset}
	ErrUnknownExportKind  = &Error{Kind: KindUnknownExportKind, Offset: NoOffset}
	ErrInvalidTypeForm    = &Error{Kind: KindInvalidTypeForm, Offset: NoOffset}
	ErrInvalidConstExpr   = &Error{Kind: KindInvalidConstExpr, Offset: NoOffset}
	ErrTooManyLocals      = &Error{Kind: KindTooManyLocals, Offset: NoOffset}
	ErrSectionOverrun     = &Error{Kind: KindSectionOverrun, Offset: NoOffset}
	ErrInvalidModule      = &Error{Kind: KindInvalidModule, Offset: NoOffset}
	ErrVerifyMismatch     = &Error{Kind: KindVerifyMismatch, Offset: NoOffset}
	ErrTimeout            = &Error{Kind: KindTimeout, Offset: NoOffset}
)

// InvalidModuleReason returns a target for errors.Is that matches only
// invalid-module errors with the given reason.
func InvalidModuleReason(r Reason) *Error {
	return &Error{Kind: KindInvalidModule, Reason: r, Offset: NoOffset}
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: NoOffset,
		},
	}
}

// Reason sets the invalid-module sub-kind
func (b *Builder) Reason(r Reason) *Builder {
	b.err.Reason = r
	return b
}

// Section sets the section name the error belongs to
func (b *Builder) Section(name string) *Builder {
	b.err.Section = name
	return b
}

// Offset sets the absolute byte offset in the module buffer
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnexpectedEOF creates an error for a read past the end of the buffer
func UnexpectedEOF(off, want, have int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUnexpectedEOF,
		Offset: off,
		Detail: fmt.Sprintf("need %d bytes, %d remaining", want, have),
	}
}

// MalformedVarint creates a LEB128 decoding error
func MalformedVarint(off int, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindMalformedVarint,
		Offset: off,
		Detail: detail,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(off int, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidUTF8,
		Offset: off,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// InvalidModule creates a validation error with the given reason
func InvalidModule(reason Reason, detail string, args ...any) *Error {
	return New(PhaseValidate, KindInvalidModule).
		Reason(reason).
		Detail(detail, args...).
		Build()
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Offset: NoOffset,
		Detail: detail,
		Cause:  cause,
	}
}

// Timeout creates an error for a parse that exceeded its time budget
func Timeout(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindTimeout,
		Offset: NoOffset,
		Detail: fmt.Sprintf("%s exceeded time budget", what),
		Cause:  cause,
	}
}

// InSection returns a copy of err annotated with a section name when err is
// an *Error that does not carry one yet. Other errors are returned unchanged.
func InSection(err error, section string) error {
	e, ok := err.(*Error)
	if !ok || e.Section != "" {
		return err
	}
	cp := *e
	cp.Section = section
	return &cp
}

// InPhase returns a copy of err moved to phase when err is an *Error.
// Cursor errors are built for decoding; callers that read outside a section
// payload use this to report where the failure really happened.
func InPhase(err error, phase Phase) error {
	e, ok := err.(*Error)
	if !ok || e.Phase == phase {
		return err
	}
	cp := *e
	cp.Phase = phase
	return &cp
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library so callers need a single import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
