package eraloop

import (
	"context"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/erigontech/erigon-lib/log/v3"

	"github.com/parastake/oracle/internal/oracletypes"
	"github.com/parastake/oracle/internal/recovery"
)

// finalizer is the subset eraloop needs to wait for a block to finalize.
type finalizer interface {
	FinalizedHeadNumber() (uint64, error)
	BlockHash(number uint64) (types.Hash, error)
}

// awaitFinalization implements §4.5.2: poll the finalized head until it reaches
// ref.Number, then confirm the canonical hash at that number still matches ref.Hash
// — a mismatch means the chain reorged past a fork findLastBlock ran on, which is a
// BlockNotFoundError carrying (number, expected, got) per §9 note #4.
func awaitFinalization(ctx context.Context, chain finalizer, ref oracletypes.BlockRef, pollInterval time.Duration) error {
	if pollInterval == 0 {
		pollInterval = 6 * time.Second
	}
	for {
		head, err := chain.FinalizedHeadNumber()
		if err != nil {
			return err
		}
		if head >= ref.Number {
			break
		}
		log.Debug("waiting for finalization", "target", ref.Number, "finalized", head)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	gotHash, err := chain.BlockHash(ref.Number)
	if err != nil {
		return err
	}
	got := hashArray(gotHash)
	if got != ref.Hash {
		return &recovery.BlockNotFoundError{Number: ref.Number, Expected: ref.Hash, Got: got}
	}
	return nil
}
