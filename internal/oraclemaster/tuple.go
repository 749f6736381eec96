package oraclemaster

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/parastake/oracle/internal/oracletypes"
)

// reportTuple mirrors the Solidity struct OracleMaster.reportRelay expects. Field
// order is load-bearing (§3, §6.6) and must match assets/OracleMaster.json exactly.
type reportTuple struct {
	StashAccount      [32]byte
	ControllerAccount [32]byte
	StakeStatus       uint8
	ActiveBalance     *big.Int
	TotalBalance      *big.Int
	Unlocking         []unlockingChunkTuple
	ClaimedRewards    []uint32
	StashBalance      *big.Int
	SlashingSpans     uint32
}

type unlockingChunkTuple struct {
	Balance *big.Int
	Era     uint32
}

func reportToTuple(r oracletypes.StashReport) reportTuple {
	unlocking := make([]unlockingChunkTuple, len(r.Unlocking))
	for i, u := range r.Unlocking {
		unlocking[i] = unlockingChunkTuple{Balance: toBig(u.Balance), Era: u.Era}
	}
	claimed := r.ClaimedRewards
	if claimed == nil {
		claimed = []uint32{} // ABI-encode as an empty list, never nil (I4).
	}
	return reportTuple{
		StashAccount:      r.StashAccount,
		ControllerAccount: r.ControllerAccount,
		StakeStatus:       uint8(r.StakeStatus),
		ActiveBalance:     toBig(r.ActiveBalance),
		TotalBalance:      toBig(r.TotalBalance),
		Unlocking:         unlocking,
		ClaimedRewards:    claimed,
		StashBalance:      toBig(r.StashBalance),
		SlashingSpans:     r.SlashingSpans,
	}
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}
