package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "Oracle", cfg.Platform.Name)
	require.Equal(t, int64(5), cfg.Platform.ServiceFeePercent)
	require.Equal(t, 6, cfg.Platform.PipelineMaxLength)
	require.Equal(t, []string{"local-user"}, cfg.Platform.Owners)
	require.False(t, cfg.Pipeline.BlockDeleteBelowActive)
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
platform:
  owners: [alice, bob]
  service_fee_percent: 7
token:
  initial_supply:
    tenant:acme: 5000
`))
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, cfg.Platform.Owners)
	require.Equal(t, int64(7), cfg.Platform.ServiceFeePercent)
	require.Equal(t, 6, cfg.Platform.PipelineMaxLength)
	require.Equal(t, "platform", cfg.Platform.Account)
	require.Equal(t, int64(5000), cfg.Token.InitialSupply["tenant:acme"])
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"fee over 100":   "platform:\n  service_fee_percent: 101\n",
		"negative fee":   "platform:\n  service_fee_percent: -1\n",
		"zero max":       "platform:\n  pipeline_max_length: 0\n",
		"no owners":      "platform:\n  owners: []\n",
		"empty owner":    "platform:\n  owners: [\"\"]\n",
		"escrow owner":   "platform:\n  owners: [\"tenant:acme\"]\n",
		"spender owner":  "platform:\n  owners: [platform]\n",
		"hook no url":    "webhooks:\n  - events: [settlement.completed]\n",
		"negative mint":  "token:\n  initial_supply:\n    alice: -5\n",
		"malformed yaml": "platform: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.ErrorContains(t, err, "hl config init")

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	require.Equal(t, "Oracle", cfg.Platform.Name)

	require.NoError(t, os.WriteFile(Path(dir), []byte("platform:\n  name: Hirely\n"), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	require.Equal(t, "Hirely", cfg.Platform.Name)
}
