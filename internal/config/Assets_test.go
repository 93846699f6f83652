package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amun/limavault/internal/types"
)

const manifestYAML = `
share_token:
  name: Lima Vault Shares
  symbol: LVS
current_underlying: "0x6b175474e89094c44da98b954eedeac495271d0f"
underlyings:
  - address: "0x6b175474e89094c44da98b954eedeac495271d0f"
    symbol: DAI
  - address: "0xdac17f958d2ee523a2206206994597c13d831ec7"
    symbol: USDT
interest_bearing:
  - address: "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643"
    symbol: cDAI
    backend: compound
    wraps: "0x6b175474e89094c44da98b954eedeac495271d0f"
governance_token: "0xc00e94cb662c3520282e6f5717214004a7f26888"
fee_funding_asset: "0x514910771af9ca656af840dff83e8264ecf986ca"
fee_settlement_asset: "0x6b175474e89094c44da98b954eedeac495271d0f"
restricted: true
allowed_users:
  - "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
`

func writeManifest(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAssetManifest(t *testing.T) {
	manifest, err := LoadAssetManifest(writeManifest(t, manifestYAML))
	require.NoError(t, err)

	require.Equal(t, "LVS", manifest.ShareToken.Symbol)
	require.Len(t, manifest.Underlyings, 2)
	require.True(t, manifest.Restricted)

	assets := manifest.UnderlyingAddresses()
	require.Len(t, assets, 2)
	require.Equal(t, types.MustParseAddress("0x6b175474e89094c44da98b954eedeac495271d0f"), assets[0])

	require.Equal(t, types.ZeroAddress, OptionalAddress(""))
	require.False(t, OptionalAddress(manifest.GovernanceToken).IsZero())
}

func TestLoadAssetManifestRejectsBadAddress(t *testing.T) {
	bad := `
share_token:
  name: Lima Vault Shares
  symbol: LVS
current_underlying: "not-an-address"
underlyings:
  - address: "0x6b175474e89094c44da98b954eedeac495271d0f"
    symbol: DAI
`
	_, err := LoadAssetManifest(writeManifest(t, bad))
	require.Error(t, err)
}

func TestLoadAssetManifestRejectsUnknownBackend(t *testing.T) {
	bad := `
share_token:
  name: Lima Vault Shares
  symbol: LVS
current_underlying: "0x6b175474e89094c44da98b954eedeac495271d0f"
underlyings:
  - address: "0x6b175474e89094c44da98b954eedeac495271d0f"
    symbol: DAI
interest_bearing:
  - address: "0x5d3a536e4d6dbd6114cc1ead35777bab948e3643"
    symbol: cDAI
    backend: maker
    wraps: "0x6b175474e89094c44da98b954eedeac495271d0f"
`
	_, err := LoadAssetManifest(writeManifest(t, bad))
	require.Error(t, err)
}

func TestLoadAssetManifestMissingFile(t *testing.T) {
	_, err := LoadAssetManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
