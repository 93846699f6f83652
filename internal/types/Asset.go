/*

Core identifier types shared by every component: 20-byte addresses for both
accounts and token contracts, plus the classification tags the swap router
and the registry use to route between stable coins and the interest-bearing
wrappers issued by the lending back-ends.

*/

package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
)

// AddressLength is the byte length of an account or token identifier.
const AddressLength = 20

// Address is the opaque identity of an account on the host ledger.
type Address [AddressLength]byte

// Asset identifies a fungible token. Tokens and accounts share the same
// identifier space, so Asset is an alias rather than a distinct type.
type Asset = Address

// ZeroAddress is the empty identity. It is never a valid fee recipient,
// oracle, or underlying asset.
var ZeroAddress = Address{}

var ErrBadAddress = errors.New("address must be 20 hex-encoded bytes")

// ParseAddress decodes a hex string (with or without 0x prefix) into an Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != AddressLength {
		return Address{}, ErrBadAddress
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for fixtures and tests; it panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic("types: " + err.Error() + ": " + s)
	}
	return a
}

// String returns the 0x-prefixed hex encoding.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the empty identity.
func (a Address) IsZero() bool {
	return bytes.Equal(a[:], ZeroAddress[:])
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as
// hex in JSON and YAML.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// LendingBackend tags an interest-bearing asset with the lending protocol
// that issued it.
type LendingBackend uint8

const (
	BackendNotFound LendingBackend = iota
	BackendCompound
	BackendAave
)

// String returns a stable label for logs and API responses.
func (b LendingBackend) String() string {
	switch b {
	case BackendCompound:
		return "compound"
	case BackendAave:
		return "aave"
	default:
		return "none"
	}
}

// ParseLendingBackend maps a config label to a LendingBackend tag.
func ParseLendingBackend(s string) (LendingBackend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compound":
		return BackendCompound, nil
	case "aave":
		return BackendAave, nil
	case "", "none":
		return BackendNotFound, nil
	default:
		return BackendNotFound, errors.New("unknown lending backend: " + s)
	}
}

// AssetKind is the registry's classification of a token.
type AssetKind uint8

const (
	KindNotFound AssetKind = iota
	KindStableCoin
	KindInterestBearing
)

// String returns a stable label for logs and API responses.
func (k AssetKind) String() string {
	switch k {
	case KindStableCoin:
		return "stablecoin"
	case KindInterestBearing:
		return "interest_bearing"
	default:
		return "not_found"
	}
}

// InterestBearingInfo records which back-end issued a wrapped token and which
// stable asset it wraps. The registry keeps one entry per registered wrapper.
type InterestBearingInfo struct {
	Backend    LendingBackend `json:"backend"`
	Underlying Asset          `json:"underlying"`
}
