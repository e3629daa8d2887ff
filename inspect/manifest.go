package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ManifestVersion is bumped whenever the manifest layout changes.
const ManifestVersion = 1

// Failure records a module that could not be inspected.
type Failure struct {
	Path  string `json:"path" cbor:"path"`
	Error string `json:"error" cbor:"error"`
}

// Manifest collects the reports of one Batch run.
type Manifest struct {
	Modules  []*Report `json:"modules" cbor:"modules"`
	Failures []Failure `json:"failures,omitempty" cbor:"failures,omitempty"`
	Version  int       `json:"version" cbor:"version"`
}

// NewManifest builds a manifest from batch results, keeping input order.
func NewManifest(results []Result) *Manifest {
	m := &Manifest{Version: ManifestVersion, Modules: []*Report{}}
	for _, r := range results {
		if r.Err != nil {
			m.Failures = append(m.Failures, Failure{Path: r.Path, Error: r.Err.Error()})
			continue
		}
		m.Modules = append(m.Modules, r.Report)
	}
	return m
}

// cborEncMode uses canonical options so equal manifests encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("inspect: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeCBOR serializes a manifest to canonical CBOR.
func EncodeCBOR(m *Manifest) ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// DecodeCBOR deserializes a manifest from CBOR bytes.
func DecodeCBOR(data []byte) (*Manifest, error) {
	var m Manifest
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("inspect: unmarshal manifest: %w", err)
	}
	return &m, nil
}

// EncodeJSON serializes a manifest as indented JSON. Signatures keep their
// arrows unescaped.
func EncodeJSON(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("inspect: marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}
