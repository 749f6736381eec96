// Package report is C4: builds a canonical StashReport from relay-chain state
// pinned to a single block hash (§4.3).
package report

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/parastake/oracle/internal/oracletypes"
)

// RelayQueryError wraps any failure reading relay-chain storage, per §4.3's "fail
// with RelayQueryError if absent".
type RelayQueryError struct {
	cause error
}

func (e *RelayQueryError) Error() string { return "relay query: " + e.cause.Error() }
func (e *RelayQueryError) Unwrap() error { return e.cause }

// Chain is the subset of internal/relaychain.Session the report reader needs.
type Chain interface {
	SystemAccountFree(stash oracletypes.StashKey, blockHash types.Hash) (*uint256.Int, error)
	IsNominator(stash oracletypes.StashKey, blockHash types.Hash) (bool, error)
	IsValidator(stash oracletypes.StashKey, blockHash types.Hash) (bool, error)
	Bonded(stash oracletypes.StashKey, blockHash types.Hash) (oracletypes.ControllerKey, bool, error)
	Ledger(controller oracletypes.ControllerKey, blockHash types.Hash) (*oracletypes.StakingLedger, error)
}

// BuildReport implements §4.3: pure over chain state at blockHash.
func BuildReport(chain Chain, stash oracletypes.StashKey, blockHash types.Hash) (oracletypes.StashReport, error) {
	free, err := chain.SystemAccountFree(stash, blockHash)
	if err != nil {
		return oracletypes.StashReport{}, &RelayQueryError{cause: err}
	}

	status, err := classify(chain, stash, blockHash)
	if err != nil {
		return oracletypes.StashReport{}, &RelayQueryError{cause: err}
	}

	controller, hasBond, err := chain.Bonded(stash, blockHash)
	if err != nil {
		return oracletypes.StashReport{}, &RelayQueryError{cause: err}
	}
	if !hasBond {
		// Policy (§4.3.3): when the ledger is absent, stakeStatus is Unknown
		// regardless of the nominator/validator-set membership computed above.
		return oracletypes.ZeroReport(stash, free), nil
	}

	ledger, err := chain.Ledger(controller, blockHash)
	if err != nil {
		// Absent ledger for a bonded controller is a query error, not a
		// missing-ledger case (§4.3.3) — Bonded already told us a controller exists.
		return oracletypes.StashReport{}, &RelayQueryError{cause: err}
	}

	return oracletypes.StashReport{
		StashAccount:      stash,
		ControllerAccount: controller,
		StakeStatus:       status,
		ActiveBalance:     ledger.Active,
		TotalBalance:      ledger.Total,
		Unlocking:         ledger.Unlocking,
		ClaimedRewards:    nil, // always empty (I4) — storage proofs not implemented.
		StashBalance:      free,
		SlashingSpans:     ledger.SlashingSpansCount,
	}, nil
}

// classify implements §4.3 step 2: nominator, else validator, else idle.
func classify(chain Chain, stash oracletypes.StashKey, blockHash types.Hash) (oracletypes.StakeStatus, error) {
	isNom, err := chain.IsNominator(stash, blockHash)
	if err != nil {
		return 0, errors.Wrap(err, "Staking.Nominators")
	}
	if isNom {
		return oracletypes.StatusNominator, nil
	}
	isVal, err := chain.IsValidator(stash, blockHash)
	if err != nil {
		return 0, errors.Wrap(err, "Session.Validators")
	}
	if isVal {
		return oracletypes.StatusValidator, nil
	}
	return oracletypes.StatusIdle, nil
}
