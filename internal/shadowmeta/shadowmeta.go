// Package shadowmeta is the external shadow-metadata codec: it reads the
// small textual document that stands in for a regular file in the shadow
// tree and returns the attributes and extent list the rest of the daemon
// needs. It never touches the icache or any kernel-protocol type — a pure
// leaf library, mirroring the way the teacher keeps its small, dependency-
// light codecs (e.g. gcsproxy) isolated from the dispatcher core.
package shadowmeta

import (
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// MaxDocumentSize bounds how much of a shadow document this package will
// ever read, matching the "bounded input size (a few KiB per file)"
// contract in the spec this package implements.
const MaxDocumentSize = 8 * 1024

// Extent is a single (offset, length) range into the shared DAX device.
type Extent struct {
	Offset uint64
	Length uint64
}

// Meta is the parsed content of one shadow document.
type Meta struct {
	Path    string
	Mode    uint32
	UID     uint32
	GID     uint32
	Size    uint64
	Flags   uint32
	Extents []Extent
}

// hexOrDecimal accepts the same plain-scalar numeric forms the original
// shadow-metadata emitter writes: decimal ("4096"), leading-zero octal
// ("0644"), and "0x"-prefixed hex ("0x1000"). strconv.ParseUint's base-0
// mode implements exactly this rule.
type hexOrDecimal uint64

func (h *hexOrDecimal) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("shadowmeta: bad numeric scalar %q: %w", node.Value, err)
	}
	*h = hexOrDecimal(v)
	return nil
}

type extentDoc struct {
	Offset hexOrDecimal `yaml:"offset"`
	Length hexOrDecimal `yaml:"length"`
}

type fileDoc struct {
	Path     string       `yaml:"path"`
	Size     uint64       `yaml:"size"`
	Flags    uint32       `yaml:"flags"`
	Mode     hexOrDecimal `yaml:"mode"`
	UID      uint32       `yaml:"uid"`
	GID      uint32       `yaml:"gid"`
	NExtents int          `yaml:"nextents"`
	Extents  []extentDoc  `yaml:"simple_ext_list"`
}

type shadowDoc struct {
	File fileDoc `yaml:"file"`
}

// Decode parses a shadow document read from r. It bounds its read at
// MaxDocumentSize+1 bytes so an oversized document is rejected rather than
// silently truncated.
func Decode(r io.Reader) (*Meta, error) {
	buf, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("shadowmeta: read: %w", err)
	}
	if len(buf) > MaxDocumentSize {
		return nil, fmt.Errorf("shadowmeta: document exceeds %d bytes", MaxDocumentSize)
	}

	return DecodeBytes(buf)
}

// DecodeBytes parses an already-read shadow document.
func DecodeBytes(buf []byte) (*Meta, error) {
	var doc shadowDoc
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, fmt.Errorf("shadowmeta: parse: %w", err)
	}

	if doc.File.NExtents != len(doc.File.Extents) {
		return nil, fmt.Errorf("shadowmeta: nextents=%d but found %d entries in simple_ext_list",
			doc.File.NExtents, len(doc.File.Extents))
	}

	m := &Meta{
		Path:    doc.File.Path,
		Mode:    uint32(doc.File.Mode),
		UID:     doc.File.UID,
		GID:     doc.File.GID,
		Size:    doc.File.Size,
		Flags:   doc.File.Flags,
		Extents: make([]Extent, len(doc.File.Extents)),
	}
	for i, e := range doc.File.Extents {
		m.Extents[i] = Extent{Offset: uint64(e.Offset), Length: uint64(e.Length)}
	}

	return m, nil
}

// Encode renders a Meta back into the shadow-document textual form. Not
// required by the daemon's read-oriented request paths, but kept symmetric
// with Decode for tests and for any future shadow-tree authoring tool.
func Encode(w io.Writer, m *Meta) error {
	doc := shadowDoc{File: fileDoc{
		Path:     m.Path,
		Size:     m.Size,
		Flags:    m.Flags,
		Mode:     hexOrDecimal(m.Mode),
		UID:      m.UID,
		GID:      m.GID,
		NExtents: len(m.Extents),
		Extents:  make([]extentDoc, len(m.Extents)),
	}}
	for i, e := range m.Extents {
		doc.File.Extents[i] = extentDoc{Offset: hexOrDecimal(e.Offset), Length: hexOrDecimal(e.Length)}
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&doc)
}
