package wasm

import (
	"math"
	"strings"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm/internal/binary"
)

// Module is the decoded view of one binary module. It is built once by
// Decode and must be treated as read-only afterwards.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Functions []Function
	Tables    []TableType
	Memories  []MemoryType
	Globals   []Global
	Exports   []Export
	Start     *uint32
	Code      []CodeBody
	Elements  []ElementSegment
	Data      []DataSegment

	// Custom holds custom sections and sections with unrecognized IDs.
	Custom []CustomSection

	// Opaque holds standard sections the reader retains without decoding:
	// datacount, tag, and element sections using expression-based segments.
	Opaque []RawSection

	exportIdx map[string]int
	layout    []SectionID
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

func validValType(b byte) bool {
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		return true
	}
	return false
}

// Equal reports whether two signatures have identical params and results.
func (ft FuncType) Equal(other FuncType) bool {
	return valTypesEqual(ft.Params, other.Params) && valTypesEqual(ft.Results, other.Results)
}

func valTypesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders the signature as "(i32, i32) -> i32". An empty result list
// renders as "()".
func (ft FuncType) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range ft.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString(") -> ")
	switch len(ft.Results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(ft.Results[0].String())
	default:
		b.WriteByte('(')
		for i, r := range ft.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Function is a declared (non-imported) function. Its body lives in the
// CodeBody with the same position in Module.Code.
type Function struct {
	TypeIndex uint32
}

// Import describes an imported item. Exactly one of TypeIndex, Table, Memory
// or Global is meaningful, selected by Kind.
type Import struct {
	Table     *TableType
	Memory    *MemoryType
	Global    *GlobalType
	Module    string
	Name      string
	TypeIndex uint32
	Kind      ExternKind
}

// TableType describes a table with element type and size limits.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory with size limits.
type MemoryType struct {
	Limits Limits
}

// Limits describes size constraints for tables and memories.
type Limits struct {
	Max    *uint32
	Min    uint32
	Shared bool
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global represents a global variable with type and initialization.
type Global struct {
	Init []byte // Constant expression bytes, including the end opcode
	Type GlobalType
}

// ExportTarget is the entity an export name is bound to.
type ExportTarget struct {
	Kind  ExternKind
	Index uint32
}

// Export binds a name to an entity.
type Export struct {
	Name   string
	Target ExportTarget
}

// CodeBody is the raw payload of one function body: local declarations
// followed by the instruction stream. Body is owned by the Module.
type CodeBody struct {
	Body   []byte
	Offset int // Absolute offset of Body[0] in the module buffer
}

// SegmentMode says when a segment's contents are applied.
type SegmentMode byte

const (
	// SegmentActive segments are copied into a table or memory at
	// instantiation, at the position given by Offset.
	SegmentActive SegmentMode = iota
	// SegmentPassive segments are only used by bulk instructions.
	SegmentPassive
	// SegmentDeclarative element segments only forward-declare references.
	SegmentDeclarative
)

func (m SegmentMode) String() string {
	switch m {
	case SegmentActive:
		return "active"
	case SegmentPassive:
		return "passive"
	case SegmentDeclarative:
		return "declarative"
	}
	return "unknown"
}

// ElementSegment initializes a table with function references. Flags is the
// segment's encoding form (0 to 3) and is kept so re-encoding is exact.
type ElementSegment struct {
	Offset []byte // Constant expression including end; active segments only
	Init   []uint32
	Table  uint32
	Flags  uint32
}

// Mode reports how the segment is applied.
func (e ElementSegment) Mode() SegmentMode {
	switch {
	case e.Flags&elemPassive == 0:
		return SegmentActive
	case e.Flags&elemExplicitIndex != 0:
		return SegmentDeclarative
	default:
		return SegmentPassive
	}
}

// DataSegment initializes a linear memory. Flags is the encoding form
// (0 to 2).
type DataSegment struct {
	Offset []byte // Constant expression including end; active segments only
	Init   []byte
	Memory uint32
	Flags  uint32
}

// Mode reports how the segment is applied.
func (d DataSegment) Mode() SegmentMode {
	if d.Flags == dataPassive {
		return SegmentPassive
	}
	return SegmentActive
}

// LocalEntry is a run of locals sharing one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// Locals decodes the local declarations at the start of the body.
func (cb CodeBody) Locals() ([]LocalEntry, error) {
	locals, _, err := cb.split()
	return locals, err
}

// Instructions returns the instruction bytes that follow the local
// declarations, including the final end opcode.
func (cb CodeBody) Instructions() ([]byte, error) {
	_, rest, err := cb.split()
	return rest, err
}

// split separates the local declarations from the instructions. The locals
// of one function, summed over all runs, must stay below 2^32-1.
func (cb CodeBody) split() ([]LocalEntry, []byte, error) {
	c := binary.NewCursorAt(cb.Body, cb.Offset)
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, nil, err
	}
	locals := make([]LocalEntry, 0, vecCap(n, c))
	var total uint64
	for i := uint32(0); i < n; i++ {
		at := c.Offset()
		count, err := c.ReadVarU32()
		if err != nil {
			return nil, nil, err
		}
		total += uint64(count)
		if total >= math.MaxUint32 {
			return nil, nil, errors.New(errors.PhaseDecode, errors.KindTooManyLocals).
				Offset(at).
				Value(total).
				Detail("%d locals declared", total).
				Build()
		}
		at = c.Offset()
		vt, err := c.ReadByte()
		if err != nil {
			return nil, nil, err
		}
		if !validValType(vt) {
			return nil, nil, unknownValueKind(at, vt)
		}
		locals = append(locals, LocalEntry{Count: count, ValType: ValType(vt)})
	}
	return locals, c.Rest(), nil
}

// CustomSection holds a custom section, or a section whose ID the reader
// does not recognize. For ID 0 the name is read from the payload; Data is
// whatever follows it.
type CustomSection struct {
	Name string
	Data []byte
	ID   SectionID

	// Malformed is set for an ID 0 section whose name could not be read.
	// Data then holds the whole payload.
	Malformed bool
}

// RawSection is a standard section kept as opaque bytes.
type RawSection struct {
	Data []byte
	ID   SectionID
}

// ExportedFunction resolves a function export to its signature.
type ExportedFunction struct {
	Name     string
	Type     FuncType
	Index    uint32
	Imported bool
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	return m.countImports(ExternFunc)
}

// NumImportedTables returns the number of imported tables
func (m *Module) NumImportedTables() int {
	return m.countImports(ExternTable)
}

// NumImportedMemories returns the number of imported memories
func (m *Module) NumImportedMemories() int {
	return m.countImports(ExternMemory)
}

// NumImportedGlobals returns the number of imported globals
func (m *Module) NumImportedGlobals() int {
	return m.countImports(ExternGlobal)
}

func (m *Module) countImports(kind ExternKind) int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			count++
		}
	}
	return count
}

// NumFunctions returns the size of the function index space: imported
// functions first, then declared ones.
func (m *Module) NumFunctions() int {
	return m.NumImportedFuncs() + len(m.Functions)
}

// FunctionType returns the signature of the function at funcIdx in the
// function index space.
func (m *Module) FunctionType(funcIdx uint32) (FuncType, bool) {
	typeIdx, ok := m.typeIndexOf(funcIdx)
	if !ok || int(typeIdx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[typeIdx], true
}

func (m *Module) typeIndexOf(funcIdx uint32) (uint32, bool) {
	imported := uint32(m.NumImportedFuncs())
	if funcIdx < imported {
		for _, imp := range m.Imports {
			if imp.Kind != ExternFunc {
				continue
			}
			if funcIdx == 0 {
				return imp.TypeIndex, true
			}
			funcIdx--
		}
	}
	local := funcIdx - imported
	if int(local) >= len(m.Functions) {
		return 0, false
	}
	return m.Functions[local].TypeIndex, true
}

// Body returns the code body of the function at funcIdx. Imported
// functions have no body.
func (m *Module) Body(funcIdx uint32) (CodeBody, bool) {
	imported := uint32(m.NumImportedFuncs())
	if funcIdx < imported {
		return CodeBody{}, false
	}
	local := funcIdx - imported
	if int(local) >= len(m.Code) {
		return CodeBody{}, false
	}
	return m.Code[local], true
}

// Export looks up an export by name. When a name is declared more than once
// the first declaration wins; Validate rejects such modules.
func (m *Module) Export(name string) (Export, bool) {
	if m.exportIdx != nil {
		i, ok := m.exportIdx[name]
		if !ok {
			return Export{}, false
		}
		return m.Exports[i], true
	}
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

// ExportMap returns a fresh name -> target mapping.
func (m *Module) ExportMap() map[string]ExportTarget {
	out := make(map[string]ExportTarget, len(m.Exports))
	for _, e := range m.Exports {
		if _, dup := out[e.Name]; !dup {
			out[e.Name] = e.Target
		}
	}
	return out
}

// IsExported reports whether any export names the function at funcIdx.
func (m *Module) IsExported(funcIdx uint32) bool {
	for _, e := range m.Exports {
		if e.Target.Kind == ExternFunc && e.Target.Index == funcIdx {
			return true
		}
	}
	return false
}

// ExportedFunctions resolves every function export to its signature, in
// declaration order. Exports whose target cannot be resolved are skipped;
// a validated module has none.
func (m *Module) ExportedFunctions() []ExportedFunction {
	imported := uint32(m.NumImportedFuncs())
	seen := make(map[string]struct{}, len(m.Exports))
	var out []ExportedFunction
	for _, e := range m.Exports {
		if _, dup := seen[e.Name]; dup {
			continue
		}
		seen[e.Name] = struct{}{}
		if e.Target.Kind != ExternFunc {
			continue
		}
		ft, ok := m.FunctionType(e.Target.Index)
		if !ok {
			continue
		}
		out = append(out, ExportedFunction{
			Name:     e.Name,
			Index:    e.Target.Index,
			Type:     ft,
			Imported: e.Target.Index < imported,
		})
	}
	return out
}
