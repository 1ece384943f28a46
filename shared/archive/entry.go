package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// EntryType identifies the kind of filesystem object an entry header
// describes, and selects the tag used to frame it.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryImage
	EntryDirectory
	EntryLink
	EntryHardlink
	EntrySpecial
)

// TagForEntryType returns the chunk tag used to frame the given entry type.
func TagForEntryType(t EntryType) (Tag, error) {
	switch t {
	case EntryFile:
		return TagFIL0, nil
	case EntryImage:
		return TagIMG0, nil
	case EntryDirectory:
		return TagDIR0, nil
	case EntryLink:
		return TagLNK0, nil
	case EntryHardlink:
		return TagHLN0, nil
	case EntrySpecial:
		return TagSPC0, nil
	default:
		return Tag{}, fmt.Errorf("archive: unknown entry type %d", t)
	}
}

// EntryTypeForTag is the inverse of TagForEntryType.
func EntryTypeForTag(tag Tag) (EntryType, bool) {
	switch tag {
	case TagFIL0:
		return EntryFile, true
	case TagIMG0:
		return EntryImage, true
	case TagDIR0:
		return EntryDirectory, true
	case TagLNK0:
		return EntryLink, true
	case TagHLN0:
		return EntryHardlink, true
	case TagSPC0:
		return EntrySpecial, true
	default:
		return 0, false
	}
}

// EntryHeader is the per-entry metadata chunk written after an
// entry's fragment data, recording what was stored and how.
type EntryHeader struct {
	Type            EntryType
	Name            string
	Size            uint64
	TimeLastChanged time.Time
	UserID          uint32
	GroupID         uint32
	Permission      uint32
	ContentHash     []byte // empty when hash algorithm = none
	HashAlgorithm   string
	CompressAlgo    string
	CryptAlgo       string
	FragmentCount   uint32
	LinkTarget      string // set for EntryLink
}

// Encode renders the header into the payload of its entry-type chunk.
func (h *EntryHeader) Encode() ([]byte, error) {
	var buf bytes.Buffer
	writeString(&buf, h.Name)
	writeUvarint(&buf, h.Size)
	writeUvarint(&buf, uint64(h.TimeLastChanged.Unix()))
	writeUvarint(&buf, uint64(h.UserID))
	writeUvarint(&buf, uint64(h.GroupID))
	writeUvarint(&buf, uint64(h.Permission))
	writeString(&buf, h.HashAlgorithm)
	writeBytes(&buf, h.ContentHash)
	writeString(&buf, h.CompressAlgo)
	writeString(&buf, h.CryptAlgo)
	writeUvarint(&buf, uint64(h.FragmentCount))
	writeString(&buf, h.LinkTarget)
	return buf.Bytes(), nil
}

// DecodeEntryHeader parses a header chunk payload for the given entry type.
func DecodeEntryHeader(t EntryType, payload []byte) (*EntryHeader, error) {
	r := bytes.NewReader(payload)
	h := &EntryHeader{Type: t}

	var err error
	if h.Name, err = readString(r); err != nil {
		return nil, fmt.Errorf("archive: decode entry name: %w", err)
	}
	if h.Size, err = readUvarint(r); err != nil {
		return nil, fmt.Errorf("archive: decode entry size: %w", err)
	}
	unixTime, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode entry time: %w", err)
	}
	h.TimeLastChanged = time.Unix(int64(unixTime), 0).UTC()
	uid, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode entry uid: %w", err)
	}
	h.UserID = uint32(uid)
	gid, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode entry gid: %w", err)
	}
	h.GroupID = uint32(gid)
	perm, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode entry permission: %w", err)
	}
	h.Permission = uint32(perm)
	if h.HashAlgorithm, err = readString(r); err != nil {
		return nil, fmt.Errorf("archive: decode hash algorithm: %w", err)
	}
	if h.ContentHash, err = readBytes(r); err != nil {
		return nil, fmt.Errorf("archive: decode content hash: %w", err)
	}
	if h.CompressAlgo, err = readString(r); err != nil {
		return nil, fmt.Errorf("archive: decode compress algorithm: %w", err)
	}
	if h.CryptAlgo, err = readString(r); err != nil {
		return nil, fmt.Errorf("archive: decode crypt algorithm: %w", err)
	}
	fragCount, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode fragment count: %w", err)
	}
	h.FragmentCount = uint32(fragCount)
	if h.LinkTarget, err = readString(r); err != nil {
		return nil, fmt.Errorf("archive: decode link target: %w", err)
	}
	return h, nil
}

// FragmentHeader is the FHD0 chunk preceding a run of FDA0 data
// chunks, recording the fragment's position within the entry's logical
// byte stream and, for multi-volume archives, which volume fragment
// this is.
type FragmentHeader struct {
	FragmentIndex uint32
	Offset        uint64
	Size          uint64
}

// Encode renders the fragment header into an FHD0 chunk payload.
func (f *FragmentHeader) Encode() []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(f.FragmentIndex))
	writeUvarint(&buf, f.Offset)
	writeUvarint(&buf, f.Size)
	return buf.Bytes()
}

// DecodeFragmentHeader parses an FHD0 chunk payload.
func DecodeFragmentHeader(payload []byte) (*FragmentHeader, error) {
	r := bytes.NewReader(payload)
	index, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode fragment index: %w", err)
	}
	offset, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode fragment offset: %w", err)
	}
	size, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: decode fragment size: %w", err)
	}
	return &FragmentHeader{FragmentIndex: uint32(index), Offset: offset, Size: size}, nil
}

// --- small encoding helpers shared by header/metadata chunks ---

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
