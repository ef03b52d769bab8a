package lirc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `
# comment line
begin remote
  name  TEST   # trailing comment
  bits  7
  header 400   300

  begin codes
    ONE   0x01
    ONE   0x02
    TWO   0x03
  end codes
end remote
`
	root, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	remote := root.Sections["remote"]
	require.NotNil(t, remote)
	assert.Equal(t, "TEST", remote.Values["name"])
	assert.Equal(t, "7", remote.Values["bits"])
	assert.Equal(t, "400   300", remote.Values["header"])
	assert.Equal(t, []string{"name", "bits", "header"}, remote.Keys)

	codes := remote.Sections["codes"]
	require.NotNil(t, codes)
	assert.Equal(t, map[string]string{"ONE": "0x02", "TWO": "0x03"}, codes.Values)
	assert.Equal(t, []string{"ONE", "TWO"}, codes.Keys)
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"end without begin", "end remote\n"},
		{"unterminated", "begin remote\n name x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseBundledHampton(t *testing.T) {
	f, err := profileFS.Open("profiles/hampton_bay_UC7078T.conf")
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // Test cleanup

	root, err := Parse(f)
	require.NoError(t, err)

	remote := root.Sections["remote"]
	require.NotNil(t, remote)
	assert.Equal(t, map[string]string{
		"name":          "UC7078T",
		"bits":          "7",
		"flags":         "SPACE_FIRST|REVERSE",
		"eps":           "30",
		"aeps":          "100",
		"pre_data_bits": "4",
		"pre_data":      "0x0b",
		"header":        "400   300",
		"plead":         "700",
		"zero":          "300   700",
		"one":           "700   300",
		"min_repeat":    "5",
		"gap":           "12000",
	}, remote.Values)
	assert.Equal(t, map[string]string{
		"FAN_HIGH":          "0x02",
		"FAN_MED":           "0x04",
		"FAN_LOW":           "0x08",
		"FAN_OFF":           "0x20",
		"KEY_LIGHTS_TOGGLE": "0x40",
	}, remote.Sections["codes"].Values)
}
