package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalnetwork/bridge/types"
)

func TestParseMode(t *testing.T) {
	testCases := []struct {
		input     string
		expected  Mode
		expectErr bool
	}{
		{input: "latest", expected: Mode{Kind: ModeLatest}},
		{input: "e2hs:100-103", expected: Mode{Kind: ModeE2HS, Lo: 100, Hi: 103}},
		{input: "e2hs:100-103:random", expected: Mode{Kind: ModeE2HS, Lo: 100, Hi: 103, Randomize: true}},
		{input: "single:r50-52", expected: Mode{Kind: ModeSingle, Lo: 50, Hi: 52}},
		{input: "single:r52-52", expected: Mode{Kind: ModeSingle, Lo: 52, Hi: 52}},
		{input: "snapshot:1000000", expected: Mode{Kind: ModeSnapshot, Height: 1000000}},
		{input: "test:fixtures/content.json", expected: Mode{Kind: ModeTest, File: "fixtures/content.json"}},

		{input: "", expectErr: true},
		{input: "bogus", expectErr: true},
		{input: "bogus:1-2", expectErr: true},
		{input: "single:50-52", expectErr: true},     // missing r prefix
		{input: "single:r52-50", expectErr: true},    // hi < lo
		{input: "e2hs:103-100", expectErr: true},     // hi < lo
		{input: "e2hs:abc-100", expectErr: true},     // non-numeric
		{input: "snapshot:", expectErr: true},        // missing height
		{input: "snapshot:-5", expectErr: true},      // negative height
		{input: "test:", expectErr: true},            // missing file
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			mode, err := ParseMode(tc.input)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, mode)
		})
	}
}

func TestModeSubnetwork(t *testing.T) {
	assert.Equal(t, types.SubnetworkHistory, Mode{Kind: ModeE2HS}.Subnetwork())
	assert.Equal(t, types.SubnetworkBeacon, Mode{Kind: ModeLatest}.Subnetwork())
	assert.Equal(t, types.SubnetworkState, Mode{Kind: ModeSingle}.Subnetwork())
	assert.Equal(t, types.SubnetworkState, Mode{Kind: ModeSnapshot}.Subnetwork())
}

func TestModeRoundTrip(t *testing.T) {
	for _, s := range []string{
		"latest",
		"e2hs:100-103",
		"e2hs:100-103:random",
		"single:r50-52",
		"snapshot:1000000",
		"test:content.json",
	} {
		mode, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, s, mode.String())
	}
}

func TestConfigValidateBasic(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Mode = "single:r50-52"
		cfg.ExecutionEndpoint = "http://localhost:8545"
		cfg.OverlayEndpoints = []string{"http://localhost:8000"}
		return cfg
	}

	require.NoError(t, valid().ValidateBasic())

	cfg := valid()
	cfg.Mode = "single:r52-50"
	require.Error(t, cfg.ValidateBasic())

	cfg = valid()
	cfg.OverlayEndpoints = nil
	require.Error(t, cfg.ValidateBasic())

	cfg = valid()
	cfg.DispatchConcurrency = 0
	require.Error(t, cfg.ValidateBasic())

	cfg = valid()
	cfg.Mode = "e2hs:100-103"
	cfg.ArchiveDir = ""
	require.Error(t, cfg.ValidateBasic())

	cfg = valid()
	cfg.Mode = "latest"
	cfg.ConsensusEndpoint = "http://localhost:5052"
	require.NoError(t, cfg.ValidateBasic())
}
