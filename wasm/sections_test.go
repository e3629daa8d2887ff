package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm"
)

func TestDecodeTypeSection(t *testing.T) {
	data := module(section(wasm.SectionType,
		0x03,
		0x60, 0x02, 0x7f, 0x7e, 0x01, 0x7d,
		0x60, 0x00, 0x00,
		0x60, 0x01, 0x7b, 0x02, 0x70, 0x6f,
	))

	m, err := wasm.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []string{
		"(i32, i64) -> f32",
		"() -> ()",
		"(v128) -> (funcref, externref)",
	}
	if len(m.Types) != len(want) {
		t.Fatalf("got %d types, want %d", len(m.Types), len(want))
	}
	for i, w := range want {
		if got := m.Types[i].String(); got != w {
			t.Errorf("type %d: got %s, want %s", i, got, w)
		}
	}
}

func TestDecodeSectionErrors(t *testing.T) {
	tests := []struct {
		name    string
		sec     []byte
		target  error
		section string
		offset  int
	}{
		{
			name:    "unknown value kind",
			sec:     section(wasm.SectionType, 0x01, 0x60, 0x01, 0x40, 0x00),
			target:  errors.ErrUnknownValueKind,
			section: "type",
			offset:  13,
		},
		{
			name:    "bad type form",
			sec:     section(wasm.SectionType, 0x01, 0x5f, 0x00, 0x00),
			target:  errors.ErrInvalidTypeForm,
			section: "type",
			offset:  11,
		},
		{
			name:    "type vector cut short",
			sec:     section(wasm.SectionType, 0x02, 0x60, 0x00, 0x00),
			target:  errors.ErrUnexpectedEOF,
			section: "type",
			offset:  14,
		},
		{
			name:    "trailing bytes",
			sec:     section(wasm.SectionFunction, 0x01, 0x00, 0x00),
			target:  errors.ErrSectionOverrun,
			section: "function",
			offset:  12,
		},
		{
			name:    "unknown export kind",
			sec:     section(wasm.SectionExport, 0x01, 0x01, 'a', 0x05, 0x00),
			target:  errors.ErrUnknownExportKind,
			section: "export",
			offset:  13,
		},
		{
			name:    "unknown import kind",
			sec:     section(wasm.SectionImport, 0x01, 0x01, 'm', 0x01, 'n', 0x07),
			target:  errors.ErrUnknownExportKind,
			section: "import",
			offset:  15,
		},
		{
			name:    "export name not utf8",
			sec:     section(wasm.SectionExport, 0x01, 0x01, 0xff, 0x00, 0x00),
			target:  errors.ErrInvalidUTF8,
			section: "export",
			offset:  12,
		},
		{
			name:    "code body past section end",
			sec:     section(wasm.SectionCode, 0x01, 0x05, 0x00, 0x0b),
			target:  errors.ErrUnexpectedEOF,
			section: "code",
			offset:  12,
		},
		{
			name:    "too many locals",
			sec:     section(wasm.SectionCode, 0x01, 0x08, 0x01, 0xff, 0xff, 0xff, 0xff, 0x0f, 0x7f, 0x0b),
			target:  errors.ErrTooManyLocals,
			section: "code",
			offset:  13,
		},
		{
			name:    "local of unknown type",
			sec:     section(wasm.SectionCode, 0x01, 0x04, 0x01, 0x01, 0x40, 0x0b),
			target:  errors.ErrUnknownValueKind,
			section: "code",
			offset:  14,
		},
		{
			name:    "element kind not funcref",
			sec:     section(wasm.SectionElement, 0x01, 0x01, 0x70, 0x00),
			target:  errors.ErrInvalidTypeForm,
			section: "element",
			offset:  12,
		},
		{
			name:    "element flags out of range",
			sec:     section(wasm.SectionElement, 0x01, 0x08, 0x00),
			target:  errors.ErrInvalidTypeForm,
			section: "element",
			offset:  11,
		},
		{
			name:    "call in element offset",
			sec:     section(wasm.SectionElement, 0x01, 0x00, 0x10, 0x00, 0x0b, 0x00),
			target:  errors.ErrInvalidConstExpr,
			section: "element",
			offset:  12,
		},
		{
			name:    "data flags out of range",
			sec:     section(wasm.SectionData, 0x01, 0x03, 0x00),
			target:  errors.ErrInvalidTypeForm,
			section: "data",
			offset:  11,
		},
		{
			name:    "data init past section end",
			sec:     section(wasm.SectionData, 0x01, 0x01, 0x05, 0x00),
			target:  errors.ErrUnexpectedEOF,
			section: "data",
			offset:  13,
		},
		{
			name:    "bad limits flags",
			sec:     section(wasm.SectionMemory, 0x01, 0x02, 0x01),
			target:  errors.ErrInvalidTypeForm,
			section: "memory",
			offset:  11,
		},
		{
			name:    "table of i32",
			sec:     section(wasm.SectionTable, 0x01, 0x7f, 0x00, 0x01),
			target:  errors.ErrUnknownValueKind,
			section: "table",
			offset:  11,
		},
		{
			name:    "bad mutability",
			sec:     section(wasm.SectionGlobal, 0x01, 0x7f, 0x02, 0x41, 0x00, 0x0b),
			target:  errors.ErrInvalidTypeForm,
			section: "global",
			offset:  12,
		},
		{
			name:    "call in global init",
			sec:     section(wasm.SectionGlobal, 0x01, 0x7f, 0x00, 0x10, 0x00, 0x0b),
			target:  errors.ErrInvalidConstExpr,
			section: "global",
			offset:  13,
		},
		{
			name:    "global init without end",
			sec:     section(wasm.SectionGlobal, 0x01, 0x7f, 0x00, 0x41, 0x00),
			target:  errors.ErrUnexpectedEOF,
			section: "global",
			offset:  15,
		},
		{
			name:    "start with trailing bytes",
			sec:     section(wasm.SectionStart, 0x00, 0x00),
			target:  errors.ErrSectionOverrun,
			section: "start",
			offset:  11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := wasm.Decode(module(tt.sec))
			if !errors.Is(err, tt.target) {
				t.Fatalf("got %v, want %v", err, tt.target)
			}
			var e *errors.Error
			if !errors.As(err, &e) {
				t.Fatal("expected *errors.Error")
			}
			if e.Section != tt.section {
				t.Errorf("Section = %q, want %q", e.Section, tt.section)
			}
			if e.Offset != tt.offset {
				t.Errorf("Offset = %d, want %d", e.Offset, tt.offset)
			}
		})
	}
}

func TestDecodeImports(t *testing.T) {
	data := module(
		section(wasm.SectionType, 0x01, 0x60, 0x00, 0x00),
		section(wasm.SectionImport,
			0x04,
			0x03, 'e', 'n', 'v', 0x01, 'f', 0x00, 0x00,
			0x03, 'e', 'n', 'v', 0x01, 't', 0x01, 0x70, 0x01, 0x01, 0x10,
			0x03, 'e', 'n', 'v', 0x01, 'm', 0x02, 0x03, 0x01, 0x02,
			0x03, 'e', 'n', 'v', 0x01, 'g', 0x03, 0x7e, 0x01,
		),
	)

	m, err := wasm.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Imports) != 4 {
		t.Fatalf("got %d imports, want 4", len(m.Imports))
	}

	if imp := m.Imports[0]; imp.Kind != wasm.ExternFunc || imp.Name != "f" || imp.TypeIndex != 0 {
		t.Errorf("func import: %+v", imp)
	}
	tbl := m.Imports[1].Table
	if tbl == nil || tbl.ElemType != wasm.ValFuncRef || tbl.Limits.Min != 1 || tbl.Limits.Max == nil || *tbl.Limits.Max != 16 {
		t.Errorf("table import: %+v", m.Imports[1])
	}
	mem := m.Imports[2].Memory
	if mem == nil || !mem.Limits.Shared || mem.Limits.Min != 1 || *mem.Limits.Max != 2 {
		t.Errorf("memory import: %+v", m.Imports[2])
	}
	glb := m.Imports[3].Global
	if glb == nil || glb.ValType != wasm.ValI64 || !glb.Mutable {
		t.Errorf("global import: %+v", m.Imports[3])
	}

	if m.NumImportedFuncs() != 1 || m.NumImportedTables() != 1 ||
		m.NumImportedMemories() != 1 || m.NumImportedGlobals() != 1 {
		t.Error("import counts wrong")
	}
}

func TestDecodeGlobals(t *testing.T) {
	data := module(section(wasm.SectionGlobal,
		0x04,
		0x7f, 0x00, 0x41, 0x7f, 0x0b, // i32.const -1
		0x7e, 0x01, 0x42, 0x80, 0x01, 0x42, 0x02, 0x7e, 0x0b, // i64.const 128 * 2
		0x7d, 0x00, 0x43, 0x00, 0x00, 0x80, 0x3f, 0x0b, // f32.const 1.0
		0x70, 0x00, 0xd0, 0x70, 0x0b, // ref.null func
	))

	m, err := wasm.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Globals) != 4 {
		t.Fatalf("got %d globals, want 4", len(m.Globals))
	}

	inits := [][]byte{
		{0x41, 0x7f, 0x0b},
		{0x42, 0x80, 0x01, 0x42, 0x02, 0x7e, 0x0b},
		{0x43, 0x00, 0x00, 0x80, 0x3f, 0x0b},
		{0xd0, 0x70, 0x0b},
	}
	for i, want := range inits {
		if !bytes.Equal(m.Globals[i].Init, want) {
			t.Errorf("global %d init: got %x, want %x", i, m.Globals[i].Init, want)
		}
	}
	if !m.Globals[1].Type.Mutable || m.Globals[0].Type.Mutable {
		t.Error("mutability decoded wrong")
	}
}

func TestDecodeCustomSections(t *testing.T) {
	data := module(
		section(wasm.SectionCustom, 0x04, 'n', 'a', 'm', 'e', 0x01, 0x02),
		section(wasm.SectionCustom, 0x05, 'x'),
		section(wasm.SectionCustom, 0x01, 0xff, 0x09),
		section(wasm.SectionID(0x2a), 0xde, 0xad),
	)

	m, err := wasm.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []wasm.CustomSection{
		{ID: wasm.SectionCustom, Name: "name", Data: []byte{0x01, 0x02}},
		{ID: wasm.SectionCustom, Data: []byte{0x05, 'x'}, Malformed: true},
		{ID: wasm.SectionCustom, Data: []byte{0x01, 0xff, 0x09}, Malformed: true},
		{ID: 0x2a, Data: []byte{0xde, 0xad}},
	}
	if len(m.Custom) != len(want) {
		t.Fatalf("got %d custom sections, want %d", len(m.Custom), len(want))
	}
	for i, w := range want {
		got := m.Custom[i]
		if got.ID != w.ID || got.Name != w.Name || got.Malformed != w.Malformed || !bytes.Equal(got.Data, w.Data) {
			t.Errorf("custom %d: got %+v, want %+v", i, got, w)
		}
	}

	if got := m.Encode(); !bytes.Equal(got, data) {
		t.Errorf("custom sections not re-encoded verbatim\ngot  %x\nwant %x", got, data)
	}
}

func TestDecodeOpaqueSections(t *testing.T) {
	data := module(
		// a function-index segment followed by an expression segment
		section(wasm.SectionElement,
			0x02,
			0x00, 0x41, 0x00, 0x0b, 0x00,
			0x05, 0x70, 0x01, 0xd2, 0x00, 0x0b,
		),
		section(wasm.SectionDataCount, 0x00),
	)

	m, err := wasm.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Elements) != 0 {
		t.Errorf("got %d element segments, want none", len(m.Elements))
	}
	if len(m.Opaque) != 2 {
		t.Fatalf("got %d opaque sections, want 2", len(m.Opaque))
	}
	ids := []wasm.SectionID{wasm.SectionElement, wasm.SectionDataCount}
	for i, id := range ids {
		if m.Opaque[i].ID != id {
			t.Errorf("opaque %d: got %s, want %s", i, m.Opaque[i].ID, id)
		}
	}
	if len(m.Opaque[0].Data) != 12 {
		t.Errorf("opaque element payload has %d bytes, want 12", len(m.Opaque[0].Data))
	}
}

func TestDecodeElementSegments(t *testing.T) {
	data := module(section(wasm.SectionElement,
		0x04,
		0x00, 0x41, 0x00, 0x0b, 0x02, 0x00, 0x01, // active, table 0
		0x02, 0x01, 0x41, 0x05, 0x0b, 0x00, 0x01, 0x02, // active, table 1
		0x01, 0x00, 0x01, 0x03, // passive
		0x03, 0x00, 0x00, // declarative, empty
	))

	m, err := wasm.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []struct {
		mode   wasm.SegmentMode
		table  uint32
		offset []byte
		init   []uint32
	}{
		{wasm.SegmentActive, 0, []byte{0x41, 0x00, 0x0b}, []uint32{0, 1}},
		{wasm.SegmentActive, 1, []byte{0x41, 0x05, 0x0b}, []uint32{2}},
		{wasm.SegmentPassive, 0, nil, []uint32{3}},
		{wasm.SegmentDeclarative, 0, nil, []uint32{}},
	}
	if len(m.Elements) != len(want) {
		t.Fatalf("got %d segments, want %d", len(m.Elements), len(want))
	}
	for i, w := range want {
		seg := m.Elements[i]
		if seg.Mode() != w.mode || seg.Table != w.table || !bytes.Equal(seg.Offset, w.offset) {
			t.Errorf("segment %d: got %s table %d offset %x", i, seg.Mode(), seg.Table, seg.Offset)
		}
		if len(seg.Init) != len(w.init) {
			t.Errorf("segment %d: got %d indices, want %d", i, len(seg.Init), len(w.init))
			continue
		}
		for j := range w.init {
			if seg.Init[j] != w.init[j] {
				t.Errorf("segment %d index %d: got %d, want %d", i, j, seg.Init[j], w.init[j])
			}
		}
	}
	if len(m.Opaque) != 0 {
		t.Errorf("decoded element section also kept opaque")
	}
}

func TestDecodeDataSegments(t *testing.T) {
	data := module(section(wasm.SectionData,
		0x03,
		0x00, 0x41, 0x08, 0x0b, 0x02, 'h', 'i', // active, memory 0
		0x01, 0x01, 0xff, // passive
		0x02, 0x01, 0x41, 0x00, 0x0b, 0x00, // active, memory 1, empty
	))

	m, err := wasm.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []wasm.DataSegment{
		{Flags: 0, Offset: []byte{0x41, 0x08, 0x0b}, Init: []byte("hi")},
		{Flags: 1, Init: []byte{0xff}},
		{Flags: 2, Memory: 1, Offset: []byte{0x41, 0x00, 0x0b}, Init: []byte{}},
	}
	if len(m.Data) != len(want) {
		t.Fatalf("got %d segments, want %d", len(m.Data), len(want))
	}
	for i, w := range want {
		got := m.Data[i]
		if got.Flags != w.Flags || got.Memory != w.Memory ||
			!bytes.Equal(got.Offset, w.Offset) || !bytes.Equal(got.Init, w.Init) {
			t.Errorf("segment %d: got %+v, want %+v", i, got, w)
		}
	}
	if m.Data[1].Mode() != wasm.SegmentPassive || m.Data[2].Mode() != wasm.SegmentActive {
		t.Error("data segment modes wrong")
	}

	data[16] = 'X'
	if m.Data[0].Init[0] != 'h' {
		t.Error("data segment aliases the input buffer")
	}
}

func TestDecodeStart(t *testing.T) {
	m := arith()
	start := uint32(3)
	m.Start = &start

	parsed, err := wasm.Parse(m.Encode())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Start == nil || *parsed.Start != 3 {
		t.Errorf("Start = %v, want 3", parsed.Start)
	}
}

func TestDecodeHugeCountDoesNotPreallocate(t *testing.T) {
	// count of 2^32-1 types with nothing behind it
	data := module(section(wasm.SectionType, 0xff, 0xff, 0xff, 0xff, 0x0f))

	_, err := wasm.Decode(data)
	if !errors.Is(err, errors.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}
