package wasm

import (
	"github.com/wippyai/wasm-inspect/errors"
	"go.uber.org/zap"
)

// Decode parses a binary module into a Module without checking
// cross-references. It runs in two passes: the whole section table is
// scanned first, then each section is decoded in physical order. Sections
// may appear in any order and any decode error aborts with no Module.
func Decode(data []byte) (*Module, error) {
	sections, err := Sections(data)
	if err != nil {
		return nil, err
	}

	b := &builder{m: &Module{layout: make([]SectionID, 0, len(sections))}}
	for _, sec := range sections {
		if err := b.add(sec); err != nil {
			return nil, errors.InSection(err, sec.ID.String())
		}
	}
	m := b.build()

	Logger().Debug("decoded module",
		zap.Int("bytes", len(data)),
		zap.Int("sections", len(sections)),
		zap.Int("types", len(m.Types)),
		zap.Int("imports", len(m.Imports)),
		zap.Int("functions", len(m.Functions)),
		zap.Int("exports", len(m.Exports)),
		zap.Int("bodies", len(m.Code)),
		zap.Int("elements", len(m.Elements)),
		zap.Int("data", len(m.Data)),
	)
	return m, nil
}

// builder accumulates decoded records. Repeated standard sections append to
// what is already there; Validate reports them.
type builder struct {
	m *Module
}

func (b *builder) add(sec Section) error {
	m := b.m
	m.layout = append(m.layout, sec.ID)

	switch sec.ID {
	case SectionType:
		types, err := decodeTypeSection(sec)
		if err != nil {
			return err
		}
		m.Types = append(m.Types, types...)
	case SectionImport:
		imports, err := decodeImportSection(sec)
		if err != nil {
			return err
		}
		m.Imports = append(m.Imports, imports...)
	case SectionFunction:
		funcs, err := decodeFunctionSection(sec)
		if err != nil {
			return err
		}
		m.Functions = append(m.Functions, funcs...)
	case SectionTable:
		tables, err := decodeTableSection(sec)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, tables...)
	case SectionMemory:
		mems, err := decodeMemorySection(sec)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, mems...)
	case SectionGlobal:
		globals, err := decodeGlobalSection(sec)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, globals...)
	case SectionExport:
		exports, err := decodeExportSection(sec)
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, exports...)
	case SectionStart:
		idx, err := decodeStartSection(sec)
		if err != nil {
			return err
		}
		m.Start = &idx
	case SectionCode:
		bodies, err := decodeCodeSection(sec)
		if err != nil {
			return err
		}
		m.Code = append(m.Code, bodies...)
	case SectionElement:
		segs, ok, err := decodeElementSection(sec)
		if err != nil {
			return err
		}
		if !ok {
			Logger().Debug("kept element section opaque",
				zap.Int("size", sec.Size()),
				zap.Int("offset", sec.Offset),
			)
			m.Opaque = append(m.Opaque, decodeRawSection(sec))
			return nil
		}
		m.Elements = append(m.Elements, segs...)
	case SectionData:
		segs, err := decodeDataSection(sec)
		if err != nil {
			return err
		}
		m.Data = append(m.Data, segs...)
	case SectionDataCount, SectionTag:
		m.Opaque = append(m.Opaque, decodeRawSection(sec))
	default:
		cs := decodeCustomSection(sec)
		Logger().Debug("kept custom section",
			zap.Stringer("id", sec.ID),
			zap.String("name", cs.Name),
			zap.Int("size", sec.Size()),
			zap.Int("offset", sec.Offset),
		)
		m.Custom = append(m.Custom, cs)
	}
	return nil
}

// build indexes exports by name. The first declaration of a name wins.
func (b *builder) build() *Module {
	m := b.m
	m.exportIdx = make(map[string]int, len(m.Exports))
	for i, e := range m.Exports {
		if _, ok := m.exportIdx[e.Name]; !ok {
			m.exportIdx[e.Name] = i
		}
	}
	return m
}
