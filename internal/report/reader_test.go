package report

import (
	"errors"
	"testing"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/parastake/oracle/internal/oracletypes"
)

type fakeChain struct {
	free       *uint256.Int
	isNominator bool
	isValidator bool
	bonded      bool
	controller  oracletypes.ControllerKey
	ledger      *oracletypes.StakingLedger
	ledgerErr   error
	freeErr     error
}

func (f *fakeChain) SystemAccountFree(oracletypes.StashKey, types.Hash) (*uint256.Int, error) {
	return f.free, f.freeErr
}
func (f *fakeChain) IsNominator(oracletypes.StashKey, types.Hash) (bool, error) { return f.isNominator, nil }
func (f *fakeChain) IsValidator(oracletypes.StashKey, types.Hash) (bool, error) { return f.isValidator, nil }
func (f *fakeChain) Bonded(oracletypes.StashKey, types.Hash) (oracletypes.ControllerKey, bool, error) {
	return f.controller, f.bonded, nil
}
func (f *fakeChain) Ledger(oracletypes.ControllerKey, types.Hash) (*oracletypes.StakingLedger, error) {
	return f.ledger, f.ledgerErr
}

func TestBuildReport_AbsentBondReturnsZeroReport(t *testing.T) {
	stash := oracletypes.StashKey{1}
	chain := &fakeChain{free: uint256.NewInt(7), bonded: false}

	rep, err := BuildReport(chain, stash, types.Hash{})
	require.NoError(t, err)

	require.Equal(t, oracletypes.StatusUnknown, rep.StakeStatus)
	require.Equal(t, stash.AsController(), rep.ControllerAccount)
	require.True(t, rep.ActiveBalance.IsZero())
	require.True(t, rep.TotalBalance.IsZero())
	require.Nil(t, rep.Unlocking)
	require.Nil(t, rep.ClaimedRewards)
	require.Equal(t, uint256.NewInt(7), rep.StashBalance)
}

func TestBuildReport_ClaimedRewardsAlwaysEmpty(t *testing.T) {
	stash := oracletypes.StashKey{2}
	controller := oracletypes.ControllerKey{9}
	chain := &fakeChain{
		free:       uint256.NewInt(1),
		isNominator: true,
		bonded:      true,
		controller:  controller,
		ledger: &oracletypes.StakingLedger{
			Controller: controller,
			Active:     uint256.NewInt(50),
			Total:      uint256.NewInt(60),
		},
	}

	rep, err := BuildReport(chain, stash, types.Hash{})
	require.NoError(t, err)
	require.Equal(t, oracletypes.StatusNominator, rep.StakeStatus)
	require.Equal(t, controller, rep.ControllerAccount)
	require.Nil(t, rep.ClaimedRewards)
}

func TestBuildReport_MissingLedgerForBondedControllerIsQueryError(t *testing.T) {
	stash := oracletypes.StashKey{3}
	chain := &fakeChain{
		free:      uint256.NewInt(1),
		bonded:    true,
		ledgerErr: errors.New("Staking.Ledger: absent for bonded controller"),
	}

	_, err := BuildReport(chain, stash, types.Hash{})
	var qerr *RelayQueryError
	require.ErrorAs(t, err, &qerr)
}

func TestBuildReport_ValidatorTakesPriorityOverIdle(t *testing.T) {
	stash := oracletypes.StashKey{4}
	controller := oracletypes.ControllerKey{5}
	chain := &fakeChain{
		free:       uint256.NewInt(1),
		isValidator: true,
		bonded:      true,
		controller:  controller,
		ledger:      &oracletypes.StakingLedger{Controller: controller, Active: uint256.NewInt(1), Total: uint256.NewInt(1)},
	}
	rep, err := BuildReport(chain, stash, types.Hash{})
	require.NoError(t, err)
	require.Equal(t, oracletypes.StatusValidator, rep.StakeStatus)
}
