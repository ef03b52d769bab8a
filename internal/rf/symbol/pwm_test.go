package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePWM(t *testing.T) {
	got, err := EncodePWM("00110011")
	require.NoError(t, err)
	assert.Equal(t, "001001011011001001011011", got)

	_, err = EncodePWM("0120")
	assert.ErrorIs(t, err, ErrInvalidBits)

	_, err = EncodePWM("")
	assert.ErrorIs(t, err, ErrInvalidBits)
}

func TestDecodePWM(t *testing.T) {
	tests := []struct {
		name    string
		symbols string
		want    string
		wantErr bool
	}{
		{"two bits", "001011", "01", false},
		{"clock stripped", StripClock("1001011001011"), "0101", false},
		{"extra low chip", "0001011001011", "0101", false},
		{"too short", "00101", "", true},
		{"three highs", "001001111001", "", true},
		{"leading high", "1001011", "", true},
		{"trailing lows", "0010110", "", true},
		{"foreign character", "001021001", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePWM(tt.symbols)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSymbols)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPWMRoundTrip(t *testing.T) {
	// Every bit string of length 2..10.
	for n := 2; n <= 10; n++ {
		for v := 0; v < 1<<n; v++ {
			bits := ""
			for i := n - 1; i >= 0; i-- {
				if v&(1<<i) != 0 {
					bits += "1"
				} else {
					bits += "0"
				}
			}
			symbols, err := EncodePWM(bits)
			require.NoError(t, err)
			got, err := DecodePWM(symbols)
			require.NoError(t, err, bits)
			assert.Equal(t, bits, got)

			// Leading clock chip as received over the air.
			got, err = DecodePWM(StripClock("1" + symbols))
			require.NoError(t, err)
			assert.Equal(t, bits, got)
		}
	}
}

func TestEncodeTwoChip(t *testing.T) {
	got, err := EncodeTwoChip("00110011")
	require.NoError(t, err)
	assert.Equal(t, "0000101000001010", got)
}

func TestStripClock(t *testing.T) {
	assert.Equal(t, "001", StripClock("1001"))
	assert.Equal(t, "001", StripClock("001"))
	assert.Equal(t, "", StripClock(""))
}
