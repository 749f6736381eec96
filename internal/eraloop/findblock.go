package eraloop

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"

	"github.com/parastake/oracle/internal/oracletypes"
	"github.com/parastake/oracle/internal/recovery"
)

// eraProbe is the subset of RelayChain findLastBlock needs to probe a block's
// active era.
type eraProbe interface {
	BlockHash(number uint64) (types.Hash, error)
	ActiveEra(blockHash types.Hash) (oracletypes.EraId, uint64, error)
}

// findLastBlock implements §4.5.1: a bounded binary search over
// [headNumber-eraDurationInBlocks, headNumber] for the largest block B with
// active_era(B) < target, i.e. the last block before the transition into target.
func findLastBlock(chain eraProbe, headNumber uint64, eraDurationInBlocks uint64, target oracletypes.EraId) (oracletypes.BlockRef, error) {
	// Open question #3: a collapsed window at genesis is classified as
	// BlockNotFound rather than silently searching block 0.
	if headNumber == 0 {
		return oracletypes.BlockRef{}, &recovery.BlockNotFoundError{Number: 0}
	}

	var low uint64
	if headNumber > eraDurationInBlocks {
		low = headNumber - eraDurationInBlocks
	}
	high := headNumber

	var (
		bestNumber uint64
		bestHash   types.Hash
		found      bool
	)

	for low <= high {
		mid := low + (high-low)/2
		midHash, err := chain.BlockHash(mid)
		if err != nil {
			return oracletypes.BlockRef{}, err
		}
		midEra, _, err := chain.ActiveEra(midHash)
		if err != nil {
			return oracletypes.BlockRef{}, err
		}

		if midEra < target {
			bestNumber, bestHash, found = mid, midHash, true
			low = mid + 1
			continue
		}
		if mid == 0 {
			break
		}
		high = mid - 1
	}

	if !found {
		// Edge case (§4.5.1): no block in the window precedes the transition;
		// return (low, hash(low)) for finalization to validate.
		lowHash, err := chain.BlockHash(low)
		if err != nil {
			return oracletypes.BlockRef{}, err
		}
		return oracletypes.BlockRef{Number: low, Hash: hashArray(lowHash)}, nil
	}
	return oracletypes.BlockRef{Number: bestNumber, Hash: hashArray(bestHash)}, nil
}

func hashArray(h types.Hash) [32]byte {
	var out [32]byte
	copy(out[:], h[:])
	return out
}
