package wasm

import (
	"github.com/wippyai/wasm-inspect/errors"
)

// Options controls the structural checks Validate performs.
type Options struct {
	// StrictSectionOrder rejects modules whose standard sections are not in
	// canonical order. Decoding itself never depends on order.
	StrictSectionOrder bool

	// LenientExports restricts the export bounds check to function exports.
	// Table, memory and global exports are then accepted unresolved.
	LenientExports bool
}

// DefaultOptions returns the default validation options: every export kind
// is bounds checked and section order is not enforced.
func DefaultOptions() Options {
	return Options{}
}

// Validate checks the module's cross-references with default options and
// returns the first violation found.
func (m *Module) Validate() error {
	return m.ValidateWith(DefaultOptions())
}

// ValidateWith checks the module's cross-references. Checks run in a fixed
// order and the first violation is returned as an invalid-module error. The
// module is never modified.
func (m *Module) ValidateWith(opts Options) error {
	if err := m.validateCodeCount(); err != nil {
		return err
	}
	if err := m.validateTypeIndices(); err != nil {
		return err
	}
	if err := m.validateExportIndices(opts); err != nil {
		return err
	}
	if err := m.validateExportNames(); err != nil {
		return err
	}
	if err := m.validateSectionLayout(opts); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	if err := m.validateImportTypes(); err != nil {
		return err
	}
	if err := m.validateElements(); err != nil {
		return err
	}
	if err := m.validateData(); err != nil {
		return err
	}
	return nil
}

// Parse decodes and validates a module with default options.
func Parse(data []byte) (*Module, error) {
	return ParseWithOptions(data, DefaultOptions())
}

// ParseWithOptions decodes and validates a module. Either step failing
// yields no Module.
func ParseWithOptions(data []byte, opts Options) (*Module, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := m.ValidateWith(opts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) validateCodeCount() error {
	if len(m.Functions) != len(m.Code) {
		return errors.InvalidModule(errors.ReasonFunctionCodeMismatch,
			"%d functions declared, %d code bodies", len(m.Functions), len(m.Code))
	}
	return nil
}

func (m *Module) validateTypeIndices() error {
	numTypes := uint32(len(m.Types))
	imported := m.NumImportedFuncs()
	for i, f := range m.Functions {
		if f.TypeIndex >= numTypes {
			err := errors.InvalidModule(errors.ReasonTypeIndexOutOfBounds,
				"function %d: type index %d, %d types", imported+i, f.TypeIndex, numTypes)
			err.Value = f.TypeIndex
			return err
		}
	}
	return nil
}

func (m *Module) validateExportIndices(opts Options) error {
	for _, e := range m.Exports {
		var limit int
		switch e.Target.Kind {
		case ExternFunc:
			limit = m.NumFunctions()
		case ExternTable:
			limit = m.NumImportedTables() + len(m.Tables)
		case ExternMemory:
			limit = m.NumImportedMemories() + len(m.Memories)
		case ExternGlobal:
			limit = m.NumImportedGlobals() + len(m.Globals)
		default:
			continue
		}
		if opts.LenientExports && e.Target.Kind != ExternFunc {
			continue
		}
		if int64(e.Target.Index) >= int64(limit) {
			err := errors.InvalidModule(errors.ReasonExportIndexOutOfBounds,
				"export %q: %s index %d, %d in index space", e.Name, e.Target.Kind, e.Target.Index, limit)
			err.Value = e.Name
			return err
		}
	}
	return nil
}

func (m *Module) validateExportNames() error {
	seen := make(map[string]struct{}, len(m.Exports))
	for _, e := range m.Exports {
		if _, dup := seen[e.Name]; dup {
			err := errors.InvalidModule(errors.ReasonDuplicateExport, "export %q declared twice", e.Name)
			err.Value = e.Name
			return err
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

func (m *Module) validateSectionLayout(opts Options) error {
	var seen [SectionTag + 1]bool
	for _, id := range m.layout {
		if !id.Standard() {
			continue
		}
		if seen[id] {
			return errors.InvalidModule(errors.ReasonDuplicateSection, "%s section appears more than once", id)
		}
		seen[id] = true
	}

	if !opts.StrictSectionOrder {
		return nil
	}
	var last SectionID
	for _, id := range m.layout {
		if !id.Standard() {
			continue
		}
		if last != SectionCustom && id.order() < last.order() {
			return errors.InvalidModule(errors.ReasonSectionOrder, "%s section after %s section", id, last)
		}
		last = id
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}
	if int64(*m.Start) >= int64(m.NumFunctions()) {
		err := errors.InvalidModule(errors.ReasonStartIndexOutOfBounds,
			"start function %d, %d functions", *m.Start, m.NumFunctions())
		err.Value = *m.Start
		return err
	}
	return nil
}

func (m *Module) validateImportTypes() error {
	numTypes := uint32(len(m.Types))
	for _, imp := range m.Imports {
		if imp.Kind != ExternFunc && imp.Kind != ExternTag {
			continue
		}
		if imp.TypeIndex >= numTypes {
			err := errors.InvalidModule(errors.ReasonImportTypeIndexOutOfBounds,
				"import %q.%q: type index %d, %d types", imp.Module, imp.Name, imp.TypeIndex, numTypes)
			err.Value = imp.TypeIndex
			return err
		}
	}
	return nil
}

func (m *Module) validateElements() error {
	tables := m.NumImportedTables() + len(m.Tables)
	funcs := uint32(m.NumFunctions())
	for i, seg := range m.Elements {
		if seg.Mode() == SegmentActive && int64(seg.Table) >= int64(tables) {
			err := errors.InvalidModule(errors.ReasonTableIndexOutOfBounds,
				"element segment %d: table %d, %d tables", i, seg.Table, tables)
			err.Value = seg.Table
			return err
		}
		for _, idx := range seg.Init {
			if idx >= funcs {
				err := errors.InvalidModule(errors.ReasonFunctionIndexOutOfBounds,
					"element segment %d: function %d, %d functions", i, idx, funcs)
				err.Value = idx
				return err
			}
		}
	}
	return nil
}

func (m *Module) validateData() error {
	mems := m.NumImportedMemories() + len(m.Memories)
	for i, seg := range m.Data {
		if seg.Mode() == SegmentActive && int64(seg.Memory) >= int64(mems) {
			err := errors.InvalidModule(errors.ReasonMemoryIndexOutOfBounds,
				"data segment %d: memory %d, %d memories", i, seg.Memory, mems)
			err.Value = seg.Memory
			return err
		}
	}
	return nil
}
