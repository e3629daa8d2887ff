package wasm

import "fmt"

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the only supported binary format version.
	Version uint32 = 0x01
)

// SectionID is the one-byte kind tag that starts every section.
type SectionID byte

// Standard section IDs. Anything else is retained as a custom section.
const (
	SectionCustom    SectionID = 0
	SectionType      SectionID = 1
	SectionImport    SectionID = 2
	SectionFunction  SectionID = 3
	SectionTable     SectionID = 4
	SectionMemory    SectionID = 5
	SectionGlobal    SectionID = 6
	SectionExport    SectionID = 7
	SectionStart     SectionID = 8
	SectionElement   SectionID = 9
	SectionCode      SectionID = 10
	SectionData      SectionID = 11
	SectionDataCount SectionID = 12
	SectionTag       SectionID = 13
)

var sectionNames = [...]string{
	SectionCustom:    "custom",
	SectionType:      "type",
	SectionImport:    "import",
	SectionFunction:  "function",
	SectionTable:     "table",
	SectionMemory:    "memory",
	SectionGlobal:    "global",
	SectionExport:    "export",
	SectionStart:     "start",
	SectionElement:   "element",
	SectionCode:      "code",
	SectionData:      "data",
	SectionDataCount: "datacount",
	SectionTag:       "tag",
}

func (id SectionID) String() string {
	if int(id) < len(sectionNames) {
		return sectionNames[id]
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(id))
}

// Standard reports whether id names a section kind defined by the format.
func (id SectionID) Standard() bool {
	return id != SectionCustom && id <= SectionTag
}

// order returns the canonical position of a standard section. Tag and
// DataCount sit between the MVP sections, so the ID is not the order.
func (id SectionID) order() int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	default:
		return 0
	}
}

// ExternKind tags the entity an import or export refers to.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0x00
	ExternTable  ExternKind = 0x01
	ExternMemory ExternKind = 0x02
	ExternGlobal ExternKind = 0x03
	// ExternTag is the exception-handling tag kind. Exports of this kind are
	// retained but never resolved.
	ExternTag ExternKind = 0x04
)

func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	case ExternTag:
		return "tag"
	}
	return fmt.Sprintf("%#x", byte(k))
}

// Value type encodings.
const (
	ValI32     ValType = 0x7F
	ValI64     ValType = 0x7E
	ValF32     ValType = 0x7D
	ValF64     ValType = 0x7C
	ValV128    ValType = 0x7B
	ValFuncRef ValType = 0x70
	ValExtern  ValType = 0x6F
)

// FuncTypeForm prefixes every entry of the type section.
const FuncTypeForm byte = 0x60

// Limits flags.
const (
	limitsMin       byte = 0x00
	limitsMinMax    byte = 0x01
	limitsSharedMax byte = 0x03
)

// Opcodes permitted in constant (global initializer) expressions.
const (
	opEnd       byte = 0x0B
	opGlobalGet byte = 0x23
	opI32Const  byte = 0x41
	opI64Const  byte = 0x42
	opF32Const  byte = 0x43
	opF64Const  byte = 0x44
	opI32Add    byte = 0x6A
	opI32Sub    byte = 0x6B
	opI32Mul    byte = 0x6C
	opI64Add    byte = 0x7C
	opI64Sub    byte = 0x7D
	opI64Mul    byte = 0x7E
	opRefNull   byte = 0xD0
	opRefFunc   byte = 0xD2
)

// Segment flag bits.
const (
	elemPassive       uint32 = 0x01 // passive or declarative
	elemExplicitIndex uint32 = 0x02 // active: table index present; otherwise declarative
	elemExprs         uint32 = 0x04 // initializers are expressions, not function indices

	dataActive         uint32 = 0x00
	dataPassive        uint32 = 0x01
	dataActiveExplicit uint32 = 0x02
)
