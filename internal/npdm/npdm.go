// Package npdm produces the exefs manifest descriptor (main.npdm) the
// console's loader needs before it will start the runtime module.
//
// The descriptor is generated from an embedded template by writing the
// title id, little-endian, over the ACI0 program id field.
// The template is a minimal META/ACID/ACI0 layout with empty service
// and kernel capability tables; titles that need more should ship
// their own descriptor.
package npdm

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	skyerr "skyctl/internal/errors"
)

// TitleIDOffset is where the 8-byte program id sits in the template.
const TitleIDOffset = 0x340

//go:embed template.npdm
var template []byte

// Template returns a copy of the embedded template.
func Template() []byte {
	return append([]byte(nil), template...)
}

// ParseTitleID parses a title id written as exactly 16 hex digits,
// in either case.
func ParseTitleID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, skyerr.ErrNoTitleID
	}
	if len(s) != 16 {
		return 0, fmt.Errorf("%q: %w", s, skyerr.ErrBadTitleID)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, skyerr.ErrBadTitleID)
	}
	return v, nil
}

// FormatTitleID renders tid the way the console names its directories.
func FormatTitleID(tid uint64) string {
	return fmt.Sprintf("%016X", tid)
}

// Patch returns a copy of tmpl with tid written little-endian at
// TitleIDOffset.  Every other byte is copied unchanged.
func Patch(tmpl []byte, tid uint64) ([]byte, error) {
	if len(tmpl) < TitleIDOffset+8 {
		return nil, fmt.Errorf("npdm template is %d bytes, need at least %d", len(tmpl), TitleIDOffset+8)
	}
	out := append([]byte(nil), tmpl...)
	binary.LittleEndian.PutUint64(out[TitleIDOffset:TitleIDOffset+8], tid)
	return out, nil
}

// Generate builds a descriptor for the title id string from the
// embedded template.
func Generate(titleID string) ([]byte, error) {
	tid, err := ParseTitleID(titleID)
	if err != nil {
		return nil, err
	}
	return Patch(template, tid)
}

// TitleID reads the program id back out of a descriptor.
func TitleID(desc []byte) (uint64, error) {
	if len(desc) < TitleIDOffset+8 {
		return 0, fmt.Errorf("npdm is %d bytes, too short", len(desc))
	}
	return binary.LittleEndian.Uint64(desc[TitleIDOffset : TitleIDOffset+8]), nil
}
