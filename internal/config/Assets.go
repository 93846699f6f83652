/*

Asset manifest loading. The manifest is a YAML file describing the vault's
recognized assets: the rotation set of underlyings, the wrapped
interest-bearing instruments layered on them, and the ancillary assets the
fee and rebalance flows touch. Identities in the file are 20-byte hex
addresses.

Example:

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

*/

package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/amun/limavault/internal/types"
)

// ShareTokenManifest names the vault share token.
type ShareTokenManifest struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

// UnderlyingManifest is one entry of the rotation set.
type UnderlyingManifest struct {
	Address string `yaml:"address"`
	Symbol  string `yaml:"symbol"`
}

// InterestBearingManifest describes a wrapped instrument layered on an
// underlying, held via a lending backend.
type InterestBearingManifest struct {
	Address string `yaml:"address"`
	Symbol  string `yaml:"symbol"`
	Backend string `yaml:"backend"`
	Wraps   string `yaml:"wraps"`
}

// AssetManifest is the parsed YAML asset file.
type AssetManifest struct {
	ShareToken         ShareTokenManifest        `yaml:"share_token"`
	CurrentUnderlying  string                    `yaml:"current_underlying"`
	Underlyings        []UnderlyingManifest      `yaml:"underlyings"`
	InterestBearing    []InterestBearingManifest `yaml:"interest_bearing"`
	GovernanceToken    string                    `yaml:"governance_token"`
	FeeFundingAsset    string                    `yaml:"fee_funding_asset"`
	FeeSettlementAsset string                    `yaml:"fee_settlement_asset"`
	Restricted         bool                      `yaml:"restricted"`
	AllowedUsers       []string                  `yaml:"allowed_users"`
}

// LoadAssetManifest reads and validates the asset manifest at the given path.
func LoadAssetManifest(path string) (*AssetManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset manifest %s: %w", path, err)
	}

	var manifest AssetManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse asset manifest %s: %w", path, err)
	}
	if err := manifest.validate(); err != nil {
		return nil, fmt.Errorf("invalid asset manifest %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("underlyings", len(manifest.Underlyings)).
		Int("interestBearing", len(manifest.InterestBearing)).
		Bool("restricted", manifest.Restricted).
		Msg("Asset manifest loaded")
	return &manifest, nil
}

func (m *AssetManifest) validate() error {
	if m.ShareToken.Name == "" || m.ShareToken.Symbol == "" {
		return fmt.Errorf("share_token name and symbol are required")
	}
	if len(m.Underlyings) == 0 {
		return fmt.Errorf("at least one underlying is required")
	}
	if _, err := types.ParseAddress(m.CurrentUnderlying); err != nil {
		return fmt.Errorf("bad current_underlying: %w", err)
	}
	for _, u := range m.Underlyings {
		if _, err := types.ParseAddress(u.Address); err != nil {
			return fmt.Errorf("bad underlying %s address: %w", u.Symbol, err)
		}
	}
	for _, ib := range m.InterestBearing {
		if _, err := types.ParseAddress(ib.Address); err != nil {
			return fmt.Errorf("bad interest-bearing %s address: %w", ib.Symbol, err)
		}
		if _, err := types.ParseAddress(ib.Wraps); err != nil {
			return fmt.Errorf("bad wraps address for %s: %w", ib.Symbol, err)
		}
		if _, err := types.ParseLendingBackend(ib.Backend); err != nil {
			return fmt.Errorf("bad backend for %s: %w", ib.Symbol, err)
		}
	}
	for _, opt := range []struct{ name, value string }{
		{"governance_token", m.GovernanceToken},
		{"fee_funding_asset", m.FeeFundingAsset},
		{"fee_settlement_asset", m.FeeSettlementAsset},
	} {
		if opt.value == "" {
			continue
		}
		if _, err := types.ParseAddress(opt.value); err != nil {
			return fmt.Errorf("bad %s: %w", opt.name, err)
		}
	}
	for _, user := range m.AllowedUsers {
		if _, err := types.ParseAddress(user); err != nil {
			return fmt.Errorf("bad allowed user %s: %w", user, err)
		}
	}
	return nil
}

// UnderlyingAddresses returns the parsed rotation set.
func (m *AssetManifest) UnderlyingAddresses() []types.Asset {
	assets := make([]types.Asset, 0, len(m.Underlyings))
	for _, u := range m.Underlyings {
		assets = append(assets, types.MustParseAddress(u.Address))
	}
	return assets
}

// OptionalAddress parses an optional manifest field, mapping absence to the
// zero identity.
func OptionalAddress(value string) types.Asset {
	if value == "" {
		return types.ZeroAddress
	}
	return types.MustParseAddress(value)
}
