package ftp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skyerr "skyctl/internal/errors"
)

func TestParsePassiveAddress(t *testing.T) {
	tests := []struct {
		text string
		host [4]byte
		port uint16
	}{
		{"Entering Passive Mode (127,0,0,1,19,136).", [4]byte{127, 0, 0, 1}, 5000},
		{"(192,168,1,20,195,80)", [4]byte{192, 168, 1, 20}, 50000},
		{"10,0,0,5,0,21", [4]byte{10, 0, 0, 5}, 21},
		{"=10, 0, 0, 5, 255, 255, 7", [4]byte{10, 0, 0, 5}, 65535},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			addr, err := ParsePassiveAddress(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.host, addr.Host)
			assert.Equal(t, tt.port, addr.Port)
		})
	}
}

func TestParsePassiveAddress_PortFormula(t *testing.T) {
	for hi := 0; hi < 256; hi += 17 {
		for lo := 0; lo < 256; lo += 13 {
			text := "(1,2,3,4," + strconv.Itoa(hi) + "," + strconv.Itoa(lo) + ")"
			addr, err := ParsePassiveAddress(text)
			require.NoError(t, err)
			assert.Equal(t, uint16(hi*256+lo), addr.Port)
			assert.Equal(t, "1.2.3.4:"+strconv.Itoa(hi*256+lo), addr.String())
		}
	}
}

func TestParsePassiveAddress_Malformed(t *testing.T) {
	for _, text := range []string{
		"",
		"Entering Passive Mode",
		"(127,0,0,1,19)",
		"(127,0,,1,19,136)",
		"(127,0,0,1,19,999)",
		"(a,b,c,d,e,f)",
	} {
		t.Run(text, func(t *testing.T) {
			var pe *skyerr.ProtocolError
			assert.NotPanics(t, func() {
				_, err := ParsePassiveAddress(text)
				assert.ErrorAs(t, err, &pe)
			})
		})
	}
}
