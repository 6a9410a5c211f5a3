package lending

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"lendledger/core/amount"
	"lendledger/crypto"
)

func deriveID(domain string, parts ...[]byte) ID {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(domain))
	for _, p := range parts {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(p)))
		_, _ = h.Write(length[:])
		_, _ = h.Write(p)
	}
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// VaultIDFor derives the identifier of the vault an owner creates for an asset.
func VaultIDFor(owner crypto.Address, asset amount.Asset, sequence uint32) ID {
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], sequence)
	return deriveID("lending/vault", owner.Bytes(), []byte(asset.String()), seq[:])
}

// BrokerIDFor derives the identifier of a broker created by owner over a vault.
func BrokerIDFor(owner crypto.Address, vault ID, sequence uint32) ID {
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], sequence)
	return deriveID("lending/broker", owner.Bytes(), vault[:], seq[:])
}

// LoanIDFor derives the identifier of the sequence-th loan of a broker.
func LoanIDFor(broker ID, sequence uint32) ID {
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], sequence)
	return deriveID("lending/loan", broker[:], seq[:])
}

// NewVault returns an empty vault with its pseudo-account assigned.
func NewVault(owner crypto.Address, asset amount.Asset, sequence uint32) Vault {
	id := VaultIDFor(owner, asset, sequence)
	return Vault{
		ID:              id,
		Owner:           owner,
		Account:         crypto.PseudoAccount("vault", id),
		Asset:           asset,
		AssetsTotal:     zero,
		AssetsAvailable: zero,
		LossUnrealized:  zero,
	}
}

// NewBroker returns a broker over vault with no debt or cover.
func NewBroker(owner crypto.Address, vault ID, sequence uint32, managementFeeRate, coverRateMinimum, coverRateLiquidation amount.TenthBips) Broker {
	id := BrokerIDFor(owner, vault, sequence)
	return Broker{
		ID:                   id,
		VaultID:              vault,
		Owner:                owner,
		Account:              crypto.PseudoAccount("broker", id),
		ManagementFeeRate:    managementFeeRate,
		CoverRateMinimum:     coverRateMinimum,
		CoverRateLiquidation: coverRateLiquidation,
		DebtTotal:            zero,
		DebtMaximum:          zero,
		CoverAvailable:       zero,
		LoanSequence:         1,
	}
}
