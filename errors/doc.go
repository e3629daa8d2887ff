// Package errors provides structured error types for the wasm-inspect library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Validation failures use KindInvalidModule together with a Reason naming the
// structural check that failed. Decode errors carry the section name and the
// absolute byte offset in the module buffer.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindSectionOverrun).
//		Section("export").
//		Offset(off).
//		Detail("%d trailing bytes", n).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnexpectedEOF(off, want, have)
//	err := errors.InvalidModule(errors.ReasonDuplicateExport, "export %q declared twice", name)
//
// All errors implement the standard error interface and support errors.Is/As.
// Match by kind with the sentinels (errors.ErrTruncatedSection, ...) or by
// validation reason with InvalidModuleReason.
package errors
