package npdm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skyerr "skyctl/internal/errors"
)

func TestTemplate(t *testing.T) {
	tmpl := Template()
	require.Greater(t, len(tmpl), TitleIDOffset+8)
	assert.Equal(t, []byte("META"), tmpl[:4])
	assert.Equal(t, []byte("ACI0"), tmpl[TitleIDOffset-0x10:TitleIDOffset-0x0C])

	// Template returns a copy.
	tmpl[0] = 'X'
	assert.Equal(t, byte('M'), Template()[0])
}

func TestParseTitleID(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0100000000000000", 0x0100000000000000},
		{"01006A800016E000", 0x01006A800016E000},
		{"01006a800016e000", 0x01006A800016E000},
		{" 01006A800016E000\n", 0x01006A800016E000},
	}
	for _, tt := range tests {
		got, err := ParseTitleID(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseTitleID_Invalid(t *testing.T) {
	_, err := ParseTitleID("")
	assert.ErrorIs(t, err, skyerr.ErrNoTitleID)

	for _, in := range []string{"1234", "01006A800016E0000", "01006A800016E00G", "0x006A800016E000"} {
		_, err := ParseTitleID(in)
		assert.ErrorIs(t, err, skyerr.ErrBadTitleID, in)
		assert.Equal(t, skyerr.CategoryUserInput, skyerr.Classify(err))
	}
}

func TestFormatTitleID(t *testing.T) {
	assert.Equal(t, "01006A800016E000", FormatTitleID(0x01006A800016E000))
	assert.Equal(t, "0000000000000001", FormatTitleID(1))
}

func TestGenerate_PatchesOnlyTitleID(t *testing.T) {
	tmpl := Template()
	out, err := Generate("01006A800016E000")
	require.NoError(t, err)
	require.Len(t, out, len(tmpl))

	want := make([]byte, 8)
	binary.LittleEndian.PutUint64(want, 0x01006A800016E000)
	assert.Equal(t, want, out[0x340:0x348])
	assert.Equal(t, []byte{0x00, 0xE0, 0x16, 0x00, 0x80, 0x6A, 0x00, 0x01}, out[0x340:0x348])

	assert.True(t, bytes.Equal(tmpl[:0x340], out[:0x340]), "bytes before the field must be untouched")
	assert.True(t, bytes.Equal(tmpl[0x348:], out[0x348:]), "bytes after the field must be untouched")

	tid, err := TitleID(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x01006A800016E000), tid)
}

func TestPatch_DoesNotMutateInput(t *testing.T) {
	in := bytes.Repeat([]byte{0xEE}, 0x400)
	out, err := Patch(in, 0x0102030405060708)
	require.NoError(t, err)
	assert.Equal(t, byte(0xEE), in[0x340])
	assert.Equal(t, byte(0x08), out[0x340])
	assert.Equal(t, byte(0x01), out[0x347])
}

func TestPatch_ShortTemplate(t *testing.T) {
	_, err := Patch(make([]byte, 0x347), 1)
	assert.Error(t, err)
	_, err = TitleID(make([]byte, 10))
	assert.Error(t, err)
}

func TestGenerate_BadTitle(t *testing.T) {
	_, err := Generate("nope")
	assert.ErrorIs(t, err, skyerr.ErrBadTitleID)
}
