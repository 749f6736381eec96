package eraloop

import (
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/stretchr/testify/require"

	"github.com/parastake/oracle/internal/oracletypes"
	"github.com/parastake/oracle/internal/recovery"
)

// fakeEraProbe models a relay chain whose active era increases at a known block
// boundary, for exercising the binary search in isolation.
type fakeEraProbe struct {
	transitionBlock uint64 // active_era becomes eraAtTransition at this block
	eraBefore       oracletypes.EraId
	eraAtTransition oracletypes.EraId
}

func (f *fakeEraProbe) BlockHash(number uint64) (types.Hash, error) {
	var h types.Hash
	h[0] = byte(number)
	h[1] = byte(number >> 8)
	return h, nil
}

func (f *fakeEraProbe) ActiveEra(blockHash types.Hash) (oracletypes.EraId, uint64, error) {
	number := uint64(blockHash[0]) | uint64(blockHash[1])<<8
	if number >= f.transitionBlock {
		return f.eraAtTransition, 0, nil
	}
	return f.eraBefore, 0, nil
}

func TestFindLastBlock_FindsTransitionBoundary(t *testing.T) {
	chain := &fakeEraProbe{transitionBlock: 500, eraBefore: 10, eraAtTransition: 11}
	ref, err := findLastBlock(chain, 1000, 2000, 11)
	require.NoError(t, err)
	require.Equal(t, uint64(499), ref.Number)
}

func TestFindLastBlock_WindowNarrowerThanEraDuration(t *testing.T) {
	// The transition (900) lies below the search window (950..1000): every block
	// in range is already at the new era, so the edge case applies — (low, hash(low)).
	chain := &fakeEraProbe{transitionBlock: 900, eraBefore: 10, eraAtTransition: 11}
	ref, err := findLastBlock(chain, 1000, 50, 11)
	require.NoError(t, err)
	require.Equal(t, uint64(950), ref.Number)
}

func TestFindLastBlock_TransitionAtWindowStart(t *testing.T) {
	// Nothing in [low, high] precedes the transition: expect the (low, hash(low))
	// edge case, not an error.
	chain := &fakeEraProbe{transitionBlock: 0, eraBefore: 10, eraAtTransition: 11}
	ref, err := findLastBlock(chain, 1000, 2000, 11)
	require.NoError(t, err)
	require.Equal(t, uint64(0), ref.Number)
}

func TestFindLastBlock_CollapsedWindowIsBlockNotFound(t *testing.T) {
	chain := &fakeEraProbe{transitionBlock: 0, eraBefore: 10, eraAtTransition: 11}
	_, err := findLastBlock(chain, 0, 2000, 11)
	var bnf *recovery.BlockNotFoundError
	require.ErrorAs(t, err, &bnf)
}
