package eraloop

import (
	"context"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/require"

	"github.com/parastake/oracle/internal/oracletypes"
	"github.com/parastake/oracle/internal/recovery"
)

type fakeFinalizer struct {
	heads    []uint64 // successive FinalizedHeadNumber results
	call     int
	hashes   map[uint64]types.Hash
}

func (f *fakeFinalizer) FinalizedHeadNumber() (uint64, error) {
	h := f.heads[f.call]
	if f.call < len(f.heads)-1 {
		f.call++
	}
	return h, nil
}

func (f *fakeFinalizer) BlockHash(number uint64) (types.Hash, error) {
	if h, ok := f.hashes[number]; ok {
		return h, nil
	}
	var h types.Hash
	h[0] = byte(number)
	return h, nil
}

func TestAwaitFinalization_SucceedsOnceHeadCatchesUp(t *testing.T) {
	chain := &fakeFinalizer{heads: []uint64{98, 99, 100}}
	var hash [32]byte
	hash[0] = 100
	ref := oracletypes.BlockRef{Number: 100, Hash: hash}
	err := awaitFinalization(context.Background(), chain, ref, time.Millisecond)
	require.NoError(t, err)
}

func TestAwaitFinalization_ForkMismatchIsBlockNotFound(t *testing.T) {
	chain := &fakeFinalizer{
		heads:  []uint64{100},
		hashes: map[uint64]types.Hash{100: {0xAA}},
	}
	var expected [32]byte
	expected[0] = 0xBB
	ref := oracletypes.BlockRef{Number: 100, Hash: expected}
	err := awaitFinalization(context.Background(), chain, ref, time.Millisecond)
	var bnf *recovery.BlockNotFoundError
	require.ErrorAs(t, err, &bnf)
	require.Equal(t, uint64(100), bnf.Number)
}

func TestAwaitFinalization_ContextCancelled(t *testing.T) {
	chain := &fakeFinalizer{heads: []uint64{0}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ref := oracletypes.BlockRef{Number: 100}
	err := awaitFinalization(ctx, chain, ref, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}
