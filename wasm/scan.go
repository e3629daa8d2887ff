package wasm

import (
	"iter"

	"github.com/wippyai/wasm-inspect/errors"
	"github.com/wippyai/wasm-inspect/wasm/internal/binary"
)

// headerSize is the length of the magic number plus version.
const headerSize = 8

// Section describes one top-level section. Data aliases the module buffer;
// decoders copy whatever they retain.
type Section struct {
	Data   []byte
	ID     SectionID
	Offset int // Absolute offset of the section's first byte (the ID)
	Start  int // Absolute offset of Data[0]
}

// Size returns the payload length.
func (s Section) Size() int {
	return len(s.Data)
}

func (s Section) cursor() *binary.Cursor {
	return binary.NewCursorAt(s.Data, s.Start)
}

// ReadHeader checks the magic number and version at the start of data.
func ReadHeader(data []byte) error {
	c := binary.NewCursor(data)
	magic, err := c.ReadU32LE()
	if err != nil {
		return errors.New(errors.PhaseHeader, errors.KindBadMagic).
			Offset(0).
			Detail("module shorter than magic number").
			Cause(err).
			Build()
	}
	if magic != Magic {
		return errors.New(errors.PhaseHeader, errors.KindBadMagic).
			Offset(0).
			Value(magic).
			Detail("got 0x%08x, want 0x%08x", magic, Magic).
			Build()
	}
	version, err := c.ReadU32LE()
	if err != nil {
		return errors.New(errors.PhaseHeader, errors.KindUnsupportedVersion).
			Offset(4).
			Detail("module shorter than version field").
			Cause(err).
			Build()
	}
	if version != Version {
		return errors.New(errors.PhaseHeader, errors.KindUnsupportedVersion).
			Offset(4).
			Value(version).
			Detail("version %d, only %d is supported", version, Version).
			Build()
	}
	return nil
}

// Scanner walks the section table of a module without decoding payloads.
// It is single-use: once Next reports the end or an error, it stays there.
type Scanner struct {
	c    *binary.Cursor
	err  error
	done bool
}

// NewScanner validates the header and returns a scanner positioned at the
// first section.
func NewScanner(data []byte) (*Scanner, error) {
	if err := ReadHeader(data); err != nil {
		return nil, err
	}
	c := binary.NewCursor(data)
	if _, err := c.ReadFixed(headerSize); err != nil {
		return nil, err
	}
	return &Scanner{c: c}, nil
}

// Next returns the next section. ok is false once the buffer is exhausted
// or after an error.
func (s *Scanner) Next() (sec Section, ok bool, err error) {
	if s.done {
		return Section{}, false, s.err
	}
	if s.c.Done() {
		s.done = true
		return Section{}, false, nil
	}

	start := s.c.Offset()
	id, err := s.c.ReadByte()
	if err != nil {
		return s.fail(errors.InPhase(err, errors.PhaseScan))
	}

	sizeAt := s.c.Offset()
	size, err := s.c.ReadVarU32()
	if err != nil {
		if errors.Is(err, errors.ErrUnexpectedEOF) {
			return s.fail(errors.New(errors.PhaseScan, errors.KindTruncatedSection).
				Section(SectionID(id).String()).
				Offset(sizeAt).
				Detail("section header cut off").
				Cause(err).
				Build())
		}
		return s.fail(errors.InPhase(errors.InSection(err, SectionID(id).String()), errors.PhaseScan))
	}

	dataAt := s.c.Offset()
	remaining := s.c.Remaining()
	payload, err := s.c.ReadFixed(int(size))
	if err != nil {
		return s.fail(errors.New(errors.PhaseScan, errors.KindTruncatedSection).
			Section(SectionID(id).String()).
			Offset(start).
			Value(size).
			Detail("declares %d bytes, %d remaining", size, remaining).
			Build())
	}

	return Section{
		ID:     SectionID(id),
		Offset: start,
		Start:  dataAt,
		Data:   payload,
	}, true, nil
}

func (s *Scanner) fail(err error) (Section, bool, error) {
	s.done = true
	s.err = err
	return Section{}, false, err
}

// All returns an iterator over the remaining sections. Iteration stops
// after the first error, which is yielded with a zero Section.
func (s *Scanner) All() iter.Seq2[Section, error] {
	return func(yield func(Section, error) bool) {
		for {
			sec, ok, err := s.Next()
			if err != nil {
				yield(Section{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(sec, nil) {
				return
			}
		}
	}
}

// Sections collects every section of data, checking the header first.
func Sections(data []byte) ([]Section, error) {
	s, err := NewScanner(data)
	if err != nil {
		return nil, err
	}
	var out []Section
	for sec, err := range s.All() {
		if err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, nil
}
