package wasm

import (
	"bytes"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm/internal/binary"
)

// vecCap bounds a preallocation by the bytes left in c. Every record takes at
// least one byte, so a declared count larger than that is a lie the decode
// loop will catch.
func vecCap(n uint32, c *binary.Cursor) int {
	if r := c.Remaining(); int64(n) > int64(r) {
		return r
	}
	return int(n)
}

func unknownValueKind(at int, vt byte) error {
	return errors.New(errors.PhaseDecode, errors.KindUnknownValueKind).
		Offset(at).
		Value(vt).
		Detail("value type 0x%02x", vt).
		Build()
}

// finish rejects bytes left over after a section's declared records.
func finish(c *binary.Cursor, records uint32) error {
	if c.Done() {
		return nil
	}
	return errors.New(errors.PhaseDecode, errors.KindSectionOverrun).
		Offset(c.Offset()).
		Value(c.Remaining()).
		Detail("%d trailing bytes after %d records", c.Remaining(), records).
		Build()
}

func readValType(c *binary.Cursor) (ValType, error) {
	at := c.Offset()
	b, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	if !validValType(b) {
		return 0, unknownValueKind(at, b)
	}
	return ValType(b), nil
}

func readValTypes(c *binary.Cursor) ([]ValType, error) {
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		vt, err := readValType(c)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func decodeTypeSection(sec Section) ([]FuncType, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	types := make([]FuncType, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		at := c.Offset()
		form, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != FuncTypeForm {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidTypeForm).
				Offset(at).
				Value(form).
				Detail("type %d: form 0x%02x, want 0x%02x", i, form, FuncTypeForm).
				Build()
		}
		params, err := readValTypes(c)
		if err != nil {
			return nil, err
		}
		results, err := readValTypes(c)
		if err != nil {
			return nil, err
		}
		types = append(types, FuncType{Params: params, Results: results})
	}
	return types, finish(c, n)
}

func decodeImportSection(sec Section) ([]Import, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	imports := make([]Import, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		var imp Import
		if imp.Module, err = c.ReadName(); err != nil {
			return nil, err
		}
		if imp.Name, err = c.ReadName(); err != nil {
			return nil, err
		}
		at := c.Offset()
		kind, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		imp.Kind = ExternKind(kind)

		switch imp.Kind {
		case ExternFunc:
			imp.TypeIndex, err = c.ReadVarU32()
		case ExternTable:
			var tt TableType
			tt, err = readTableType(c)
			imp.Table = &tt
		case ExternMemory:
			var mt MemoryType
			mt.Limits, err = readLimits(c)
			imp.Memory = &mt
		case ExternGlobal:
			var gt GlobalType
			gt, err = readGlobalType(c)
			imp.Global = &gt
		case ExternTag:
			// attribute byte, then the tag's signature
			if _, err = c.ReadByte(); err == nil {
				imp.TypeIndex, err = c.ReadVarU32()
			}
		default:
			return nil, errors.New(errors.PhaseDecode, errors.KindUnknownExportKind).
				Offset(at).
				Value(kind).
				Detail("import %q.%q: kind 0x%02x", imp.Module, imp.Name, kind).
				Build()
		}
		if err != nil {
			return nil, err
		}
		imports = append(imports, imp)
	}
	return imports, finish(c, n)
}

func decodeFunctionSection(sec Section) ([]Function, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	funcs := make([]Function, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		idx, err := c.ReadVarU32()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, Function{TypeIndex: idx})
	}
	return funcs, finish(c, n)
}

func readLimits(c *binary.Cursor) (Limits, error) {
	at := c.Offset()
	flags, err := c.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	var l Limits
	switch flags {
	case limitsMin:
	case limitsMinMax, limitsSharedMax:
		l.Shared = flags == limitsSharedMax
	default:
		return Limits{}, errors.New(errors.PhaseDecode, errors.KindInvalidTypeForm).
			Offset(at).
			Value(flags).
			Detail("limits flags 0x%02x", flags).
			Build()
	}
	if l.Min, err = c.ReadVarU32(); err != nil {
		return Limits{}, err
	}
	if flags != limitsMin {
		hi, err := c.ReadVarU32()
		if err != nil {
			return Limits{}, err
		}
		l.Max = &hi
	}
	return l, nil
}

func readTableType(c *binary.Cursor) (TableType, error) {
	at := c.Offset()
	elem, err := c.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	if ValType(elem) != ValFuncRef && ValType(elem) != ValExtern {
		return TableType{}, unknownValueKind(at, elem)
	}
	limits, err := readLimits(c)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: ValType(elem), Limits: limits}, nil
}

func readGlobalType(c *binary.Cursor) (GlobalType, error) {
	vt, err := readValType(c)
	if err != nil {
		return GlobalType{}, err
	}
	at := c.Offset()
	mut, err := c.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, errors.New(errors.PhaseDecode, errors.KindInvalidTypeForm).
			Offset(at).
			Value(mut).
			Detail("mutability 0x%02x", mut).
			Build()
	}
	return GlobalType{ValType: vt, Mutable: mut == 1}, nil
}

// readConstExpr consumes a constant expression up to and including its end
// opcode and returns a copy of its bytes. Immediates are decoded only to
// find where each instruction stops.
func readConstExpr(c *binary.Cursor) ([]byte, error) {
	mark := c.Clone()
	for {
		at := c.Offset()
		op, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		switch op {
		case opEnd:
			raw, err := mark.ReadFixed(mark.Remaining() - c.Remaining())
			if err != nil {
				return nil, err
			}
			return bytes.Clone(raw), nil
		case opI32Const:
			_, err = c.ReadVarS32()
		case opI64Const:
			_, err = c.ReadVarS64()
		case opF32Const:
			_, err = c.ReadF32()
		case opF64Const:
			_, err = c.ReadF64()
		case opGlobalGet, opRefFunc:
			_, err = c.ReadVarU32()
		case opRefNull:
			_, err = readValType(c)
		case opI32Add, opI32Sub, opI32Mul, opI64Add, opI64Sub, opI64Mul:
		default:
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidConstExpr).
				Offset(at).
				Value(op).
				Detail("opcode 0x%02x not allowed in constant expression", op).
				Build()
		}
		if err != nil {
			return nil, err
		}
	}
}

func decodeTableSection(sec Section) ([]TableType, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	tables := make([]TableType, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		tt, err := readTableType(c)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tt)
	}
	return tables, finish(c, n)
}

func decodeMemorySection(sec Section) ([]MemoryType, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	mems := make([]MemoryType, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		limits, err := readLimits(c)
		if err != nil {
			return nil, err
		}
		mems = append(mems, MemoryType{Limits: limits})
	}
	return mems, finish(c, n)
}

func decodeGlobalSection(sec Section) ([]Global, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	globals := make([]Global, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		gt, err := readGlobalType(c)
		if err != nil {
			return nil, err
		}
		init, err := readConstExpr(c)
		if err != nil {
			return nil, err
		}
		globals = append(globals, Global{Type: gt, Init: init})
	}
	return globals, finish(c, n)
}

func decodeExportSection(sec Section) ([]Export, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	exports := make([]Export, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		name, err := c.ReadName()
		if err != nil {
			return nil, err
		}
		at := c.Offset()
		kind, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		if ExternKind(kind) > ExternTag {
			return nil, errors.New(errors.PhaseDecode, errors.KindUnknownExportKind).
				Offset(at).
				Value(kind).
				Detail("export %q: kind 0x%02x", name, kind).
				Build()
		}
		idx, err := c.ReadVarU32()
		if err != nil {
			return nil, err
		}
		exports = append(exports, Export{
			Name:   name,
			Target: ExportTarget{Kind: ExternKind(kind), Index: idx},
		})
	}
	return exports, finish(c, n)
}

func decodeStartSection(sec Section) (uint32, error) {
	c := sec.cursor()
	idx, err := c.ReadVarU32()
	if err != nil {
		return 0, err
	}
	return idx, finish(c, 1)
}

func readFuncIndices(c *binary.Cursor) ([]uint32, error) {
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		idx, err := c.ReadVarU32()
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// readElemKind accepts the only element kind defined so far, funcref (0x00).
func readElemKind(c *binary.Cursor) error {
	at := c.Offset()
	kind, err := c.ReadByte()
	if err != nil {
		return err
	}
	if kind != 0x00 {
		return errors.New(errors.PhaseDecode, errors.KindInvalidTypeForm).
			Offset(at).
			Value(kind).
			Detail("element kind 0x%02x", kind).
			Build()
	}
	return nil
}

// decodeElementSection decodes segments whose initializers are function
// indices. ok is false when the section also holds expression-based
// segments; the caller then keeps the whole section opaque.
func decodeElementSection(sec Section) (segs []ElementSegment, ok bool, err error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, false, err
	}
	segs = make([]ElementSegment, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		at := c.Offset()
		flags, err := c.ReadVarU32()
		if err != nil {
			return nil, false, err
		}
		if flags > elemPassive|elemExplicitIndex|elemExprs {
			return nil, false, errors.New(errors.PhaseDecode, errors.KindInvalidTypeForm).
				Offset(at).
				Value(flags).
				Detail("element segment %d: flags 0x%x", i, flags).
				Build()
		}
		if flags&elemExprs != 0 {
			return nil, false, nil
		}

		seg := ElementSegment{Flags: flags}
		if flags&elemPassive == 0 {
			if flags&elemExplicitIndex != 0 {
				if seg.Table, err = c.ReadVarU32(); err != nil {
					return nil, false, err
				}
			}
			if seg.Offset, err = readConstExpr(c); err != nil {
				return nil, false, err
			}
		}
		if flags != 0 {
			if err := readElemKind(c); err != nil {
				return nil, false, err
			}
		}
		if seg.Init, err = readFuncIndices(c); err != nil {
			return nil, false, err
		}
		segs = append(segs, seg)
	}
	return segs, true, finish(c, n)
}

func decodeDataSection(sec Section) ([]DataSegment, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	segs := make([]DataSegment, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		at := c.Offset()
		flags, err := c.ReadVarU32()
		if err != nil {
			return nil, err
		}
		seg := DataSegment{Flags: flags}
		switch flags {
		case dataActive:
		case dataActiveExplicit:
			if seg.Memory, err = c.ReadVarU32(); err != nil {
				return nil, err
			}
		case dataPassive:
		default:
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidTypeForm).
				Offset(at).
				Value(flags).
				Detail("data segment %d: flags 0x%x", i, flags).
				Build()
		}
		if flags != dataPassive {
			if seg.Offset, err = readConstExpr(c); err != nil {
				return nil, err
			}
		}
		size, err := c.ReadVarU32()
		if err != nil {
			return nil, err
		}
		init, err := c.ReadFixed(int(size))
		if err != nil {
			return nil, err
		}
		seg.Init = bytes.Clone(init)
		segs = append(segs, seg)
	}
	return segs, finish(c, n)
}

func decodeCodeSection(sec Section) ([]CodeBody, error) {
	c := sec.cursor()
	n, err := c.ReadVarU32()
	if err != nil {
		return nil, err
	}
	bodies := make([]CodeBody, 0, vecCap(n, c))
	for i := uint32(0); i < n; i++ {
		size, err := c.ReadVarU32()
		if err != nil {
			return nil, err
		}
		at := c.Offset()
		body, err := c.ReadFixed(int(size))
		if err != nil {
			return nil, err
		}
		cb := CodeBody{Body: bytes.Clone(body), Offset: at}
		if _, _, err := cb.split(); err != nil {
			return nil, err
		}
		bodies = append(bodies, cb)
	}
	return bodies, finish(c, n)
}

// decodeCustomSection never fails. A custom section whose name cannot be
// read keeps its whole payload under an empty name.
func decodeCustomSection(sec Section) CustomSection {
	if sec.ID == SectionCustom {
		c := sec.cursor()
		name, err := c.ReadName()
		if err != nil {
			return CustomSection{ID: sec.ID, Data: bytes.Clone(sec.Data), Malformed: true}
		}
		return CustomSection{ID: sec.ID, Name: name, Data: bytes.Clone(c.Rest())}
	}
	return CustomSection{ID: sec.ID, Data: bytes.Clone(sec.Data)}
}

func decodeRawSection(sec Section) RawSection {
	return RawSection{ID: sec.ID, Data: bytes.Clone(sec.Data)}
}
