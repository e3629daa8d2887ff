package wasm_test

import (
	"testing"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm"
)

func TestFuncTypeString(t *testing.T) {
	tests := []struct {
		ft   wasm.FuncType
		want string
	}{
		{wasm.FuncType{}, "() -> ()"},
		{sigBinary, "(i32, i32) -> i32"},
		{wasm.FuncType{Results: []wasm.ValType{i32, i64}}, "() -> (i32, i64)"},
		{wasm.FuncType{Params: []wasm.ValType{wasm.ValType(0x01)}}, "(unknown) -> ()"},
	}

	for _, tt := range tests {
		if got := tt.ft.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestFuncTypeEqual(t *testing.T) {
	if !sigVoid.Equal(wasm.FuncType{}) {
		t.Error("empty and nil vectors should compare equal")
	}
	if sigBinary.Equal(sigUnary) {
		t.Error("different params compared equal")
	}
	if sigUnary.Equal(wasm.FuncType{Params: []wasm.ValType{i32}, Results: []wasm.ValType{i64}}) {
		t.Error("different results compared equal")
	}
}

func TestSectionIDString(t *testing.T) {
	tests := []struct {
		id   wasm.SectionID
		want string
	}{
		{wasm.SectionCustom, "custom"},
		{wasm.SectionCode, "code"},
		{wasm.SectionDataCount, "datacount"},
		{wasm.SectionTag, "tag"},
		{wasm.SectionID(0x42), "unknown(0x42)"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("SectionID(%d): got %q, want %q", byte(tt.id), got, tt.want)
		}
	}
	if wasm.SectionCustom.Standard() || !wasm.SectionTag.Standard() || wasm.SectionID(14).Standard() {
		t.Error("Standard misclassifies section IDs")
	}
}

func TestCodeBodyLocals(t *testing.T) {
	cb := wasm.CodeBody{
		Body:   []byte{0x02, 0x03, 0x7f, 0x01, 0x7c, 0x20, 0x00, 0x0b},
		Offset: 100,
	}

	locals, err := cb.Locals()
	if err != nil {
		t.Fatalf("Locals: %v", err)
	}
	want := []wasm.LocalEntry{{Count: 3, ValType: wasm.ValI32}, {Count: 1, ValType: wasm.ValF64}}
	if len(locals) != len(want) {
		t.Fatalf("got %d entries, want %d", len(locals), len(want))
	}
	for i := range want {
		if locals[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, locals[i], want[i])
		}
	}

	instrs, err := cb.Instructions()
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	if len(instrs) != 3 || instrs[2] != 0x0b {
		t.Errorf("Instructions = %x", instrs)
	}
}

func TestCodeBodyLocalsErrors(t *testing.T) {
	cb := wasm.CodeBody{Body: []byte{0x01, 0x01, 0x55, 0x0b}, Offset: 100}
	_, err := cb.Locals()
	if !errors.Is(err, errors.ErrUnknownValueKind) {
		t.Fatalf("expected unknown value kind, got %v", err)
	}
	var e *errors.Error
	if errors.As(err, &e) && e.Offset != 102 {
		t.Errorf("Offset = %d, want 102", e.Offset)
	}

	cb = wasm.CodeBody{Body: []byte{0x02, 0x01}}
	if _, err := cb.Locals(); !errors.Is(err, errors.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF, got %v", err)
	}

	// two runs of 2^31 locals each
	cb = wasm.CodeBody{
		Body: []byte{
			0x02,
			0x80, 0x80, 0x80, 0x80, 0x08, 0x7f,
			0x80, 0x80, 0x80, 0x80, 0x08, 0x7f,
			0x0b,
		},
		Offset: 100,
	}
	_, err = cb.Locals()
	if !errors.Is(err, errors.ErrTooManyLocals) {
		t.Fatalf("expected too many locals, got %v", err)
	}
	if errors.As(err, &e) && e.Offset != 107 {
		t.Errorf("Offset = %d, want 107", e.Offset)
	}
	if _, err := cb.Instructions(); !errors.Is(err, errors.ErrTooManyLocals) {
		t.Errorf("Instructions: expected too many locals, got %v", err)
	}

	cb = wasm.CodeBody{Body: []byte{0x01, 0xff, 0xff, 0xff, 0xff, 0x0f, 0x7e, 0x0b}}
	if _, err := cb.Locals(); !errors.Is(err, errors.ErrTooManyLocals) {
		t.Errorf("a single run of 2^32-1 locals: got %v", err)
	}

	cb = wasm.CodeBody{Body: []byte{0x01, 0xfe, 0xff, 0xff, 0xff, 0x0f, 0x7e, 0x0b}}
	locals, err := cb.Locals()
	if err != nil || len(locals) != 1 || locals[0].Count != 0xfffffffe {
		t.Errorf("2^32-2 locals should be accepted, got %v, %v", locals, err)
	}
}

func TestModuleLookups(t *testing.T) {
	m := arith()

	if e, ok := m.Export("inc"); !ok || e.Target.Index != 2 {
		t.Errorf("Export(inc) = %+v, %v", e, ok)
	}
	if _, ok := m.Export("sub"); ok {
		t.Error("Export(sub) should not resolve")
	}
	if ft, ok := m.FunctionType(3); !ok || !ft.Equal(sigVoid) {
		t.Errorf("FunctionType(3) = %s, %v", ft, ok)
	}
	if _, ok := m.FunctionType(4); ok {
		t.Error("FunctionType(4) should not resolve")
	}
	if !m.IsExported(0) || m.IsExported(1) {
		t.Error("IsExported wrong for add/sub")
	}
}

func TestExportedFunctionsFirstNameWins(t *testing.T) {
	m := arith()
	m.Exports = append(m.Exports, wasm.Export{Name: "add", Target: wasm.ExportTarget{Kind: wasm.ExternFunc, Index: 1}})

	fns := m.ExportedFunctions()
	if len(fns) != 3 {
		t.Fatalf("got %d exported functions, want 3", len(fns))
	}
	if fns[0].Name != "add" || fns[0].Index != 0 {
		t.Errorf("first add should win, got %+v", fns[0])
	}
	if m.ExportMap()["add"].Index != 0 {
		t.Error("ExportMap: first add should win")
	}
}
