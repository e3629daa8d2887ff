// Package wasm reads WebAssembly binary modules into a structural model
// without executing them.
//
// Reading runs in two passes. The section table is scanned first, then each
// section is decoded into a Module. Sections may appear in any order at
// decode time, so an export section placed before the function section it
// refers to decodes fine. Cross-references are checked afterwards by
// Validate.
//
// # Parsing
//
//	data, _ := os.ReadFile("module.wasm")
//	module, err := wasm.Parse(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Decode without cross-reference checks:
//
//	module, err := wasm.Decode(data)
//
// Validate with non-default options:
//
//	err := module.ValidateWith(wasm.Options{StrictSectionOrder: true})
//
// # Exports
//
// Export visibility comes solely from the export section. A function with a
// body but no export entry is internal:
//
//	for _, fn := range module.ExportedFunctions() {
//	    fmt.Printf("%s %s\n", fn.Name, fn.Type)
//	}
//
// # Module Structure
//
//	module.Types      []FuncType       // Function signatures
//	module.Imports    []Import         // Imported definitions
//	module.Functions  []Function       // Type indices of declared functions
//	module.Tables     []TableType      // Table definitions
//	module.Memories   []MemoryType     // Memory definitions
//	module.Globals    []Global         // Global definitions with init bytes
//	module.Exports    []Export         // Exports in declaration order
//	module.Start      *uint32          // Start function, if any
//	module.Code       []CodeBody       // Raw bodies aligned with Functions
//	module.Elements   []ElementSegment // Function-index element segments
//	module.Data       []DataSegment    // Data segments
//	module.Custom     []CustomSection  // Custom and unrecognized sections
//	module.Opaque     []RawSection     // Datacount, tag, expression elements
//
// Imported functions occupy the low end of the function index space, so
// export indices and FunctionType resolve through imports first.
//
// # Errors
//
// Every error is an *errors.Error from github.com/wippyai/wasm-inspect/errors
// carrying the phase, kind, section name and absolute byte offset. Decoding
// and validation never return a partial Module.
//
// # Encoding
//
// Encode writes a module back out in canonical section order. It exists to
// synthesize modules; encoding a decoded module and decoding the result
// yields the same records.
package wasm
