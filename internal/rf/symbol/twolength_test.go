package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoLengthRun(t *testing.T) {
	c := TwoLength{Unit: 100}
	assert.Equal(t, "000", c.Run('0', 260))
	assert.Equal(t, "000", c.Run('0', 300))
	assert.Equal(t, "000", c.Run('0', 340))
	assert.Equal(t, "", c.Run('1', 0))
	assert.Equal(t, "1110000", c.Pair(Timing{300, 400}))
}

func TestTwoLengthBit(t *testing.T) {
	c := TwoLength{Unit: 100, Zero: Timing{300, 700}, One: Timing{700, 300}}
	assert.Equal(t, "1110000000", c.Bit('0'))
	assert.Equal(t, "1111111000", c.Bit('1'))

	c.SpaceFirst = true
	assert.Equal(t, "0000000111", c.Bit('0'))
	assert.Equal(t, "0001111111", c.Bit('1'))
}

func TestTwoLengthEncode(t *testing.T) {
	c := TwoLength{Unit: 100, Zero: Timing{300, 700}, One: Timing{700, 300}}
	assert.Equal(t, "1111111000111000000011111110001111111000", c.Encode(0x0b, 4))

	c.Reverse = true
	assert.Equal(t, "1111111000111111100011100000001111111000", c.Encode(0x0b, 4))

	short := TwoLength{Unit: 100, Zero: Timing{100, 200}, One: Timing{200, 100}}
	assert.Equal(t, "100100100100100100100100100100100100110100110110", short.Encode(0x0b, 16))

	short.Reverse = true
	assert.Equal(t, "110110100110100100100100100100100100100100100100", short.Encode(0x0b, 16))
}

func TestTwoLengthRoundTrip(t *testing.T) {
	for _, reverse := range []bool{false, true} {
		for _, spaceFirst := range []bool{false, true} {
			c := TwoLength{
				Unit:       190,
				Zero:       Timing{190, 380},
				One:        Timing{380, 190},
				Reverse:    reverse,
				SpaceFirst: spaceFirst,
			}
			require.NoError(t, c.Validate())
			for _, v := range []uint64{0, 1, 0x0b, 0x71, 0x74, 0x79, 0x7f} {
				got, err := c.Decode(c.Encode(v, 7), 7)
				require.NoError(t, err)
				assert.Equal(t, v, got, "reverse=%v spaceFirst=%v", reverse, spaceFirst)
			}
		}
	}
}

func TestTwoLengthDecodeErrors(t *testing.T) {
	c := TwoLength{Unit: 100, Zero: Timing{100, 200}, One: Timing{200, 100}}

	_, err := c.Decode("1001", 3)
	assert.ErrorIs(t, err, ErrInvalidSymbols)

	_, err = c.Decode("1111000", 1)
	assert.ErrorIs(t, err, ErrInvalidSymbols)

	_, err = TwoLength{}.Decode("10", 1)
	assert.ErrorIs(t, err, ErrInvalidTiming)
}
