// Package inspect turns decoded modules into reports, parses many modules
// concurrently under a time budget, and cross-checks the reader against
// wazero's decoder.
package inspect

import (
	"fmt"
	"os"
	"time"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm"
)

// Options configures inspection.
type Options struct {
	// Reader controls structural validation.
	Reader wasm.Options

	// Workers bounds how many modules Batch parses at once.
	// 0 means DefaultWorkers.
	Workers int

	// Timeout is the per-module budget in Batch. 0 disables it.
	Timeout time.Duration

	// MaxBytes rejects files larger than this before reading them.
	// 0 means no limit.
	MaxBytes int64

	// Verify cross-checks every parsed module against wazero.
	Verify bool
}

// DefaultWorkers is the Batch concurrency when Options.Workers is 0.
const DefaultWorkers = 4

// DefaultOptions returns the default inspection options.
func DefaultOptions() Options {
	return Options{
		Reader:  wasm.DefaultOptions(),
		Workers: DefaultWorkers,
		Timeout: 10 * time.Second,
	}
}

// Function describes one function in a report.
type Function struct {
	Name      string   `json:"name,omitempty" cbor:"name,omitempty"`
	Signature string   `json:"signature" cbor:"signature"`
	Params    []string `json:"params" cbor:"params"`
	Results   []string `json:"results" cbor:"results"`
	Index     uint32   `json:"index" cbor:"index"`
	BodySize  int      `json:"body_size,omitempty" cbor:"body_size,omitempty"`
	Imported  bool     `json:"imported,omitempty" cbor:"imported,omitempty"`
}

// Entity is a non-function export or any import.
type Entity struct {
	Module string `json:"module,omitempty" cbor:"module,omitempty"`
	Name   string `json:"name" cbor:"name"`
	Kind   string `json:"kind" cbor:"kind"`
	Index  uint32 `json:"index" cbor:"index"`
}

// Counts summarizes the size of each index space.
type Counts struct {
	Types     int `json:"types" cbor:"types"`
	Imports   int `json:"imports" cbor:"imports"`
	Functions int `json:"functions" cbor:"functions"`
	Tables    int `json:"tables" cbor:"tables"`
	Memories  int `json:"memories" cbor:"memories"`
	Globals   int `json:"globals" cbor:"globals"`
	Exports   int `json:"exports" cbor:"exports"`
	Bodies    int `json:"bodies" cbor:"bodies"`
	Elements  int `json:"elements" cbor:"elements"`
	Data      int `json:"data" cbor:"data"`
}

// Report is the externally visible contract of one module: which functions
// can be called from outside and with what signatures, plus the internal
// functions that only have bodies.
type Report struct {
	Start    *uint32    `json:"start,omitempty" cbor:"start,omitempty"`
	Name     string     `json:"name" cbor:"name"`
	Exported []Function `json:"exported" cbor:"exported"`
	Internal []Function `json:"internal" cbor:"internal"`
	Others   []Entity   `json:"other_exports,omitempty" cbor:"other_exports,omitempty"`
	Imports  []Entity   `json:"imports,omitempty" cbor:"imports,omitempty"`
	Custom   []string   `json:"custom,omitempty" cbor:"custom,omitempty"`
	Counts   Counts     `json:"counts" cbor:"counts"`
	Size     int        `json:"size" cbor:"size"`
	Verified bool       `json:"verified,omitempty" cbor:"verified,omitempty"`
}

// NewReport summarizes a decoded module. The module should already be
// validated; unresolvable exports are left out.
func NewReport(name string, size int, m *wasm.Module) *Report {
	r := &Report{
		Name:  name,
		Size:  size,
		Start: m.Start,
		Counts: Counts{
			Types:     len(m.Types),
			Imports:   len(m.Imports),
			Functions: m.NumFunctions(),
			Tables:    m.NumImportedTables() + len(m.Tables),
			Memories:  m.NumImportedMemories() + len(m.Memories),
			Globals:   m.NumImportedGlobals() + len(m.Globals),
			Exports:   len(m.Exports),
			Bodies:    len(m.Code),
			Elements:  len(m.Elements),
			Data:      len(m.Data),
		},
		Exported: []Function{},
		Internal: []Function{},
	}

	for _, fn := range m.ExportedFunctions() {
		f := describe(m, fn.Index, fn.Type)
		f.Name = fn.Name
		r.Exported = append(r.Exported, f)
	}

	imported := m.NumImportedFuncs()
	for i := range m.Functions {
		idx := uint32(imported + i)
		if m.IsExported(idx) {
			continue
		}
		ft, ok := m.FunctionType(idx)
		if !ok {
			continue
		}
		r.Internal = append(r.Internal, describe(m, idx, ft))
	}

	for _, e := range m.Exports {
		if e.Target.Kind == wasm.ExternFunc {
			continue
		}
		r.Others = append(r.Others, Entity{Name: e.Name, Kind: e.Target.Kind.String(), Index: e.Target.Index})
	}

	var counters [wasm.ExternTag + 1]uint32
	for _, imp := range m.Imports {
		ent := Entity{Module: imp.Module, Name: imp.Name, Kind: imp.Kind.String()}
		if imp.Kind <= wasm.ExternTag {
			ent.Index = counters[imp.Kind]
			counters[imp.Kind]++
		}
		r.Imports = append(r.Imports, ent)
	}

	for _, cs := range m.Custom {
		if cs.ID == wasm.SectionCustom {
			r.Custom = append(r.Custom, cs.Name)
		} else {
			r.Custom = append(r.Custom, cs.ID.String())
		}
	}
	return r
}

func describe(m *wasm.Module, idx uint32, ft wasm.FuncType) Function {
	f := Function{
		Index:     idx,
		Signature: ft.String(),
		Params:    names(ft.Params),
		Results:   names(ft.Results),
	}
	if body, ok := m.Body(idx); ok {
		f.BodySize = len(body.Body)
	} else {
		f.Imported = true
	}
	return f
}

func names(types []wasm.ValType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// Inspect parses and validates data and summarizes it.
func Inspect(name string, data []byte, opts wasm.Options) (*Report, error) {
	r, _, err := inspect(name, data, opts)
	return r, err
}

func inspect(name string, data []byte, opts wasm.Options) (*Report, *wasm.Module, error) {
	m, err := wasm.ParseWithOptions(data, opts)
	if err != nil {
		return nil, nil, err
	}
	return NewReport(name, len(data), m), m, nil
}

// LoadFile reads a module from disk. Files above maxBytes are rejected
// without being read; 0 disables the check.
func LoadFile(path string, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Load(fmt.Sprintf("stat %s", path), err)
		}
		if info.Size() > maxBytes {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
				Value(info.Size()).
				Detail("%s is %d bytes, limit %d", path, info.Size(), maxBytes).
				Build()
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("read %s", path), err)
	}
	return data, nil
}
