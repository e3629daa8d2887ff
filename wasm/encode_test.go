package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-inspect/wasm"
)

func TestEncodeEmptyModule(t *testing.T) {
	m := &wasm.Module{}
	data := m.Encode()

	if len(data) != 8 {
		t.Errorf("expected 8 bytes for empty module, got %d", len(data))
	}
	if !bytes.Equal(data[:4], []byte{0x00, 0x61, 0x73, 0x6D}) {
		t.Error("invalid magic number")
	}
	if !bytes.Equal(data[4:8], []byte{0x01, 0x00, 0x00, 0x00}) {
		t.Error("invalid version")
	}
}

func TestEncodeMinimalBytes(t *testing.T) {
	m := &wasm.Module{
		Types:     []wasm.FuncType{{}},
		Functions: []wasm.Function{{TypeIndex: 0}},
		Exports:   []wasm.Export{{Name: "f", Target: wasm.ExportTarget{Kind: wasm.ExternFunc}}},
		Code:      []wasm.CodeBody{{Body: []byte{0x00, 0x0b}}},
	}

	want := module(
		section(wasm.SectionType, 0x01, 0x60, 0x00, 0x00),
		section(wasm.SectionFunction, 0x01, 0x00),
		section(wasm.SectionExport, 0x01, 0x01, 'f', 0x00, 0x00),
		section(wasm.SectionCode, 0x01, 0x02, 0x00, 0x0b),
	)
	if got := m.Encode(); !bytes.Equal(got, want) {
		t.Errorf("got  %x\nwant %x", got, want)
	}
}

func TestEncodeIsFixedPoint(t *testing.T) {
	hi := uint32(4)
	start := uint32(2)
	m := arith()
	m.Imports = []wasm.Import{
		{Module: "env", Name: "f", Kind: wasm.ExternFunc, TypeIndex: 2},
		{Module: "env", Name: "t", Kind: wasm.ExternTable, Table: &wasm.TableType{ElemType: wasm.ValExtern, Limits: wasm.Limits{Min: 1}}},
		{Module: "env", Name: "m", Kind: wasm.ExternMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1, Max: &hi, Shared: true}}},
		{Module: "env", Name: "g", Kind: wasm.ExternGlobal, Global: &wasm.GlobalType{ValType: wasm.ValF64}},
		{Module: "env", Name: "e", Kind: wasm.ExternTag, TypeIndex: 2},
	}
	m.Tables = []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 2, Max: &hi}}}
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	m.Globals = []wasm.Global{{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: []byte{0x41, 0x2a, 0x0b}}}
	m.Start = &start
	m.Custom = []wasm.CustomSection{
		{Name: "producers", Data: []byte("clang")},
		{ID: 0x20, Data: []byte{1}},
		{Data: []byte{0x05, 'x'}, Malformed: true},
	}
	m.Elements = []wasm.ElementSegment{
		{Offset: []byte{0x41, 0x00, 0x0b}, Init: []uint32{1, 2}},
		{Flags: 2, Table: 1, Offset: []byte{0x41, 0x01, 0x0b}, Init: []uint32{0}},
		{Flags: 1, Init: []uint32{3}},
		{Flags: 3, Init: []uint32{4}},
	}
	m.Data = []wasm.DataSegment{
		{Offset: []byte{0x41, 0x10, 0x0b}, Init: []byte("hi")},
		{Flags: 1, Init: []byte{1, 2}},
		{Flags: 2, Memory: 1, Offset: []byte{0x41, 0x00, 0x0b}, Init: []byte{3}},
	}
	m.Opaque = []wasm.RawSection{{ID: wasm.SectionDataCount, Data: []byte{0x03}}}

	first := m.Encode()
	parsed, err := wasm.Parse(first)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second := parsed.Encode()
	if !bytes.Equal(first, second) {
		t.Errorf("re-encoding changed the module\nfirst  %x\nsecond %x", first, second)
	}

	if len(parsed.Imports) != 5 || len(parsed.Tables) != 1 || len(parsed.Globals) != 1 || len(parsed.Custom) != 3 {
		t.Errorf("records lost: %d imports, %d tables, %d globals, %d custom",
			len(parsed.Imports), len(parsed.Tables), len(parsed.Globals), len(parsed.Custom))
	}
	if len(parsed.Elements) != 4 || len(parsed.Data) != 3 || len(parsed.Opaque) != 1 {
		t.Errorf("segments lost: %d elements, %d data, %d opaque",
			len(parsed.Elements), len(parsed.Data), len(parsed.Opaque))
	}
	if !parsed.Custom[2].Malformed || !bytes.Equal(parsed.Custom[2].Data, []byte{0x05, 'x'}) {
		t.Errorf("malformed custom section changed: %+v", parsed.Custom[2])
	}
}

func TestEncodeSkipsImportsWithoutDescriptor(t *testing.T) {
	m := arith()
	m.Imports = []wasm.Import{
		{Module: "env", Name: "t", Kind: wasm.ExternTable},
		{Module: "env", Name: "m", Kind: wasm.ExternMemory},
		{Module: "env", Name: "g", Kind: wasm.ExternGlobal},
		{Module: "env", Name: "x", Kind: wasm.ExternKind(0x09)},
		{Module: "env", Name: "f", Kind: wasm.ExternFunc, TypeIndex: 2},
	}

	parsed, err := wasm.Decode(m.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(parsed.Imports) != 1 || parsed.Imports[0].Name != "f" {
		t.Errorf("got imports %+v, want only f", parsed.Imports)
	}
}

func TestEncodeCodeBodiesVerbatim(t *testing.T) {
	m := arith()
	parsed, err := wasm.Decode(m.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range m.Code {
		if !bytes.Equal(parsed.Code[i].Body, m.Code[i].Body) {
			t.Errorf("body %d: got %x, want %x", i, parsed.Code[i].Body, m.Code[i].Body)
		}
		if parsed.Code[i].Offset <= 8 {
			t.Errorf("body %d: offset %d inside header", i, parsed.Code[i].Offset)
		}
	}
}
