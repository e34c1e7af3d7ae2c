package seed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coreInitLog = `2018-05-10T09:47:14.101 GA3DX [default INFO] Config from /opt/stellar-core/stellar-core.cfg
2018-05-10T09:47:14.117 GA3DX [Database INFO] Connecting to: postgresql://dbname=core user=postgres
2018-05-10T09:47:14.250 GA3DX [Ledger INFO] Root account seed: SDHOAMBNLGCE2MV5ZYAOV4IQ2B3R3E4OMQ5NJLZB4XHXGWVAPY76VZ5N
2018-05-10T09:47:14.251 GA3DX [Ledger INFO] Established genesis ledger, closing
`

func TestExtract_Scenario(t *testing.T) {
	got, err := Extract("Starting...\nRoot account seed abc123XYZ extra\nDone", DefaultPattern())
	require.NoError(t, err)
	assert.Equal(t, "abc123XYZ", got)
}

func TestExtract_CoreLog(t *testing.T) {
	want := "SDHOAMBNLGCE2MV5ZYAOV4IQ2B3R3E4OMQ5NJLZB4XHXGWVAPY76VZ5N"

	got, err := Extract(coreInitLog, DefaultPattern())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = Extract(coreInitLog, Pattern{Marker: DefaultMarker, Index: 7, Anchor: AnchorLine})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExtract_FirstMatchingLineWins(t *testing.T) {
	log := "Root account seed first\nRoot account seed second\n"
	got, err := Extract(log, DefaultPattern())
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestExtract_CarriageReturns(t *testing.T) {
	got, err := Extract("Root account seed SABC\r\nDone\r\n", DefaultPattern())
	require.NoError(t, err)
	assert.Equal(t, "SABC", got)
}

func TestExtract_CustomDelimiter(t *testing.T) {
	p := Pattern{Marker: "seed", Delimiter: "|", Index: 1, Anchor: AnchorMarker}
	got, err := Extract("ts|ledger|seed|SXYZ|tail", p)
	require.NoError(t, err)
	assert.Equal(t, "SXYZ", got)
}

func TestExtract_NotFound(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{"empty", ""},
		{"no marker", "Starting...\nDone\n"},
		{"marker without token", "Root account seed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.log, DefaultPattern())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSeedNotFound))
		})
	}
}

func TestExtract_InvalidPattern(t *testing.T) {
	_, err := Extract("Root account seed x", Pattern{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSeedNotFound))

	_, err = Extract("Root account seed x", Pattern{Marker: DefaultMarker, Index: -1})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSeedNotFound))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "SDHO...", Redact("SDHOAMBNLGCE"))
	assert.Equal(t, "****", Redact("abc"))
}
