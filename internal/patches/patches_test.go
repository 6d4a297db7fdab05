package patches

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTwo() Patches {
	return Patches{0x10: 0x11, 0x11: 0x22, 0x30: 0x33}
}

func TestEncodeIPS_MatchesSpecScenario(t *testing.T) {
	out, err := EncodeIPS(sampleTwo())
	require.NoError(t, err)

	expected := []byte{
		'P', 'A', 'T', 'C', 'H',
		0x00, 0x00, 0x10, 0x00, 0x02, 0x11, 0x22,
		0x00, 0x00, 0x30, 0x00, 0x01, 0x33,
		'E', 'O', 'F',
	}
	assert.Equal(t, expected, out)
}

func TestIPSRoundTrip(t *testing.T) {
	p := sampleTwo()
	enc, err := EncodeIPS(p)
	require.NoError(t, err)

	dec, err := DecodeIPS(enc)
	require.NoError(t, err)
	assert.Equal(t, p, dec)
}

func TestIPS32RoundTrip(t *testing.T) {
	p := Patches{0x10000000: 0xAB, 0x10000001: 0xCD}
	enc, err := EncodeIPS32(p)
	require.NoError(t, err)
	assert.Equal(t, "IPS32", string(enc[:5]))
	assert.Equal(t, "EEOF", string(enc[len(enc)-4:]))

	dec, err := DecodeIPS32(enc)
	require.NoError(t, err)
	assert.Equal(t, p, dec)
}

func TestEncodeIPS_AddressOutOfRange(t *testing.T) {
	p := Patches{0x01000000: 0x01}
	_, err := EncodeIPS(p)
	require.Error(t, err)
}

func TestDecodeIPS_InvalidHeader(t *testing.T) {
	_, err := DecodeIPS([]byte("NOPE"))
	require.Error(t, err)
}

func TestDecodeIPS_MissingTerminator(t *testing.T) {
	data := []byte{'P', 'A', 'T', 'C', 'H', 0x00, 0x00, 0x10, 0x00, 0x01, 0x11}
	_, err := DecodeIPS(data)
	require.Error(t, err)
}

func TestEncodeDecodeEmpty(t *testing.T) {
	enc, err := EncodeIPS(Patches{})
	require.NoError(t, err)
	assert.Equal(t, "PATCHEOF", string(enc))

	dec, err := DecodeIPS(enc)
	require.NoError(t, err)
	assert.Empty(t, dec)
}
