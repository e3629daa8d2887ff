package wasm

import (
	"github.com/wippyai/wasm-inspect/wasm/internal/binary"
)

// Encode serializes the module. Standard sections are written in canonical
// order, opaque sections in their canonical slots, and custom sections last.
// Decoding the result yields the same records. Imports of an unknown kind, or
// whose kind has no matching descriptor, cannot be written and are left out.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeForm)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.WriteSection(byte(SectionType), sec.Bytes())
	}

	if imports := m.encodableImports(); len(imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(imports)))
		for _, imp := range imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(byte(imp.Kind))
			switch imp.Kind {
			case ExternFunc:
				sec.WriteU32(imp.TypeIndex)
			case ExternTable:
				writeTableType(sec, *imp.Table)
			case ExternMemory:
				writeLimits(sec, imp.Memory.Limits)
			case ExternGlobal:
				writeGlobalType(sec, *imp.Global)
			case ExternTag:
				sec.Byte(0)
				sec.WriteU32(imp.TypeIndex)
			}
		}
		w.WriteSection(byte(SectionImport), sec.Bytes())
	}

	if len(m.Functions) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Functions)))
		for _, f := range m.Functions {
			sec.WriteU32(f.TypeIndex)
		}
		w.WriteSection(byte(SectionFunction), sec.Bytes())
	}

	if len(m.Tables) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Tables)))
		for _, t := range m.Tables {
			writeTableType(sec, t)
		}
		w.WriteSection(byte(SectionTable), sec.Bytes())
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		w.WriteSection(byte(SectionMemory), sec.Bytes())
	}

	m.writeOpaque(w, SectionTag)

	if len(m.Globals) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(sec, g.Type)
			sec.WriteBytes(g.Init)
		}
		w.WriteSection(byte(SectionGlobal), sec.Bytes())
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			sec.WriteName(e.Name)
			sec.Byte(byte(e.Target.Kind))
			sec.WriteU32(e.Target.Index)
		}
		w.WriteSection(byte(SectionExport), sec.Bytes())
	}

	if m.Start != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.Start)
		w.WriteSection(byte(SectionStart), sec.Bytes())
	}

	if len(m.Elements) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Elements)))
		for _, e := range m.Elements {
			writeElementSegment(sec, e)
		}
		w.WriteSection(byte(SectionElement), sec.Bytes())
	}
	m.writeOpaque(w, SectionElement)
	m.writeOpaque(w, SectionDataCount)

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, cb := range m.Code {
			sec.WriteVec(cb.Body)
		}
		w.WriteSection(byte(SectionCode), sec.Bytes())
	}

	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for _, d := range m.Data {
			writeDataSegment(sec, d)
		}
		w.WriteSection(byte(SectionData), sec.Bytes())
	}
	m.writeOpaque(w, SectionData)

	for _, cs := range m.Custom {
		if cs.ID == SectionCustom && !cs.Malformed {
			sec := binary.NewWriter()
			sec.WriteName(cs.Name)
			sec.WriteBytes(cs.Data)
			w.WriteSection(byte(SectionCustom), sec.Bytes())
			continue
		}
		w.WriteSection(byte(cs.ID), cs.Data)
	}

	return w.Bytes()
}

func (m *Module) encodableImports() []Import {
	out := make([]Import, 0, len(m.Imports))
	for _, imp := range m.Imports {
		switch {
		case imp.Kind == ExternTable && imp.Table == nil,
			imp.Kind == ExternMemory && imp.Memory == nil,
			imp.Kind == ExternGlobal && imp.Global == nil,
			imp.Kind > ExternTag:
			continue
		}
		out = append(out, imp)
	}
	return out
}

func writeElementSegment(w *binary.Writer, e ElementSegment) {
	w.WriteU32(e.Flags)
	if e.Flags&elemPassive == 0 {
		if e.Flags&elemExplicitIndex != 0 {
			w.WriteU32(e.Table)
		}
		w.WriteBytes(e.Offset)
	}
	if e.Flags != 0 {
		w.Byte(0x00) // funcref
	}
	w.WriteU32(uint32(len(e.Init)))
	for _, idx := range e.Init {
		w.WriteU32(idx)
	}
}

func writeDataSegment(w *binary.Writer, d DataSegment) {
	w.WriteU32(d.Flags)
	if d.Flags == dataActiveExplicit {
		w.WriteU32(d.Memory)
	}
	if d.Flags != dataPassive {
		w.WriteBytes(d.Offset)
	}
	w.WriteVec(d.Init)
}

func (m *Module) writeOpaque(w *binary.Writer, id SectionID) {
	for _, raw := range m.Opaque {
		if raw.ID == id {
			w.WriteSection(byte(id), raw.Data)
		}
	}
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	switch {
	case l.Max == nil:
		w.Byte(limitsMin)
		w.WriteU32(l.Min)
		return
	case l.Shared:
		w.Byte(limitsSharedMax)
	default:
		w.Byte(limitsMinMax)
	}
	w.WriteU32(l.Min)
	w.WriteU32(*l.Max)
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
