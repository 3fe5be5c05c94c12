package fusewire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encode serialises a fixed-layout wire struct (or InHeader/OutHeader) in
// the field order declared in fusewire.go, independent of Go's in-memory
// struct alignment. All types there are built from fixed-width integers and
// explicit padding fields for exactly this reason.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("fusewire: encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Decode parses b into v, which must be a pointer to one of the structs
// in fusewire.go.
func Decode(b []byte, v interface{}) error {
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("fusewire: decode %T: %w", v, err)
	}
	return nil
}

// AppendDirent appends one raw directory entry (header + name + padding to
// an 8-byte boundary) to buf in the layout parse_dirfile expects, returning
// the new slice and the number of bytes appended. It returns buf unchanged
// and n == 0 if the entry would not fit within maxLen additional bytes.
func AppendDirent(buf []byte, maxLen int, d Dirent, name string) (out []byte, n int) {
	const direntSize = 8 + 8 + 4 + 4
	const align = 8

	pad := 0
	if rem := len(name) % align; rem != 0 {
		pad = align - rem
	}
	total := direntSize + len(name) + pad
	if total > maxLen {
		return buf, 0
	}

	head, err := Encode(d)
	if err != nil {
		return buf, 0
	}
	out = append(buf, head...)
	out = append(out, name...)
	if pad > 0 {
		var padding [align]byte
		out = append(out, padding[:pad]...)
	}
	return out, total
}
