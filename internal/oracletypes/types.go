// Copyright 2024 The Erigon Authors
// (modifications)
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package oracletypes holds the wire-level data model shared by every component of
// the staking oracle: stash/controller identities, era ids, block references, and
// the canonical StashReport sent to the OracleMaster contract.
package oracletypes

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// StashKey identifies a stash account on the relay chain by its raw public key.
type StashKey [32]byte

// ControllerKey identifies the controller account bonded to a stash. Same shape as
// StashKey.
type ControllerKey [32]byte

func (k StashKey) Hex() string       { return "0x" + hex.EncodeToString(k[:]) }
func (k ControllerKey) Hex() string  { return "0x" + hex.EncodeToString(k[:]) }
func (k StashKey) Bytes() []byte     { return k[:] }
func (k ControllerKey) Bytes() []byte { return k[:] }

// AsController reinterprets a stash key as a controller key, used when a ledger is
// absent and the report must name the stash as its own controller (§4.3).
func (k StashKey) AsController() ControllerKey { return ControllerKey(k) }

// SS58 renders the stash as a Substrate SS58 address for the given network format.
// Kept minimal: base58-check encoding with the network byte prepended and a 2-byte
// blake2b-512 derived checksum, per the SS58 address format.
func (k StashKey) SS58(format uint16) string {
	return ss58Encode(k[:], format)
}

func (k ControllerKey) SS58(format uint16) string {
	return ss58Encode(k[:], format)
}

// EraId is the monotonically non-decreasing era counter from Staking.ActiveEra.
type EraId uint64

func (e EraId) String() string { return fmt.Sprintf("%d", uint64(e)) }

// BlockRef pins a block by number and hash. Hashes of the same number may change
// until the block is finalized (I2).
type BlockRef struct {
	Number uint64
	Hash   [32]byte
}

func (b BlockRef) HashHex() string { return "0x" + hex.EncodeToString(b.Hash[:]) }

// StakeStatus classifies a stash's role on the relay chain.
type StakeStatus uint8

const (
	StatusIdle StakeStatus = iota
	StatusNominator
	StatusValidator
	StatusUnknown
)

func (s StakeStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusNominator:
		return "nominator"
	case StatusValidator:
		return "validator"
	default:
		return "unknown"
	}
}

// UnlockingChunk is a single entry of a ledger's unbonding schedule.
type UnlockingChunk struct {
	Balance *uint256.Int
	Era     uint32
}

// StakingLedger is the per-(stash, block) bonding state. May be nil entirely when
// the stash has no bond (§4.3.3).
type StakingLedger struct {
	Controller         ControllerKey
	Active             *uint256.Int
	Total              *uint256.Int
	Unlocking          []UnlockingChunk
	SlashingSpansCount uint32
}

// StashReport is the canonical payload sent to OracleMaster.reportRelay. Field order
// matters: it must match assets/OracleMaster.json exactly (§3, §6.6).
type StashReport struct {
	StashAccount       StashKey
	ControllerAccount  ControllerKey
	StakeStatus        StakeStatus
	ActiveBalance      *uint256.Int
	TotalBalance       *uint256.Int
	Unlocking          []UnlockingChunk
	ClaimedRewards     []uint32 // MUST stay empty forever (I4) — storage proofs not implemented.
	StashBalance       *uint256.Int
	SlashingSpans      uint32
}

// ZeroReport builds the report emitted when a stash has no ledger: zeroed balances,
// empty lists, controller aliased to the stash itself, and status forced to
// Unknown regardless of nominator/validator set membership (§4.3.3 policy note).
func ZeroReport(stash StashKey, stashBalance *uint256.Int) StashReport {
	return StashReport{
		StashAccount:      stash,
		ControllerAccount: stash.AsController(),
		StakeStatus:       StatusUnknown,
		ActiveBalance:     uint256.NewInt(0),
		TotalBalance:      uint256.NewInt(0),
		Unlocking:         nil,
		ClaimedRewards:    nil,
		StashBalance:      stashBalance,
		SlashingSpans:     0,
	}
}
