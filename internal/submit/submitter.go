// Package submit is C5: builds, dry-runs, signs, submits, and awaits a receipt for
// a reportRelay transaction (§4.4).
package submit

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/pkg/errors"

	"github.com/parastake/oracle/internal/oracletypes"
)

// Outcome is the business-level result of §4.4: a revert is not a process error, it
// is a reported outcome (§7 "Dry-run revert ... not an error from the process's
// perspective").
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeReverted
	OutcomeWillRevert
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeReverted:
		return "reverted"
	case OutcomeWillRevert:
		return "will-revert"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	TxHash  common.Hash
}

// Para is the subset of internal/parachain.Session the submitter needs.
type Para interface {
	NonceLatest(ctx context.Context, addr common.Address) (uint64, error)
	Call(ctx context.Context, msg goethereum.CallMsg) ([]byte, error)
	SendRawTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Contract is the subset of internal/oraclemaster.Contract the submitter needs.
type Contract interface {
	Address() common.Address
	PackReportRelay(eraID oracletypes.EraId, report oracletypes.StashReport) ([]byte, error)
}

// Metrics is the subset of the metrics sink the submitter writes to.
type Metrics interface {
	ObserveTxSuccess()
	ObserveTxRevert()
	SetLastFailedEra(era oracletypes.EraId)
}

type Submitter struct {
	Para          Para
	Contract      Contract
	OracleAddress common.Address
	PrivateKey    *ecdsa.PrivateKey
	ChainID       *big.Int
	GasLimit      uint64
	MaxPriorityFee *big.Int
	DebugMode     bool
	Metrics       Metrics

	// ReceiptPollInterval is overridable by tests; defaults to 2s.
	ReceiptPollInterval time.Duration
}

// Submit implements §4.4's five steps.
func (s *Submitter) Submit(ctx context.Context, eraID oracletypes.EraId, report oracletypes.StashReport) (Result, error) {
	nonce, err := s.Para.NonceLatest(ctx, s.OracleAddress)
	if err != nil {
		return Result{}, errors.Wrap(err, "eth_getTransactionCount")
	}

	data, err := s.Contract.PackReportRelay(eraID, report)
	if err != nil {
		return Result{}, errors.Wrap(err, "packing reportRelay")
	}
	to := s.Contract.Address()

	// Dry run (§4.4 step 3): omit zero/absent fields, call with `from` set so a
	// msg.sender-gated revert surfaces here rather than on submission.
	dryRunMsg := goethereum.CallMsg{
		From: s.OracleAddress,
		To:   &to,
		Gas:  s.GasLimit,
		Data: data,
	}
	if _, callErr := s.Para.Call(ctx, dryRunMsg); callErr != nil {
		log.Warn("reportRelay dry-run reverted", "era", eraID, "err", callErr)
		s.Metrics.ObserveTxRevert()
		s.Metrics.SetLastFailedEra(eraID)
		return Result{Outcome: OutcomeWillRevert}, nil
	}

	if s.DebugMode {
		log.Info("debug mode: skipping submission", "era", eraID)
		return Result{Outcome: OutcomeSent}, nil
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.ChainID,
		Nonce:     nonce,
		GasTipCap: s.MaxPriorityFee,
		GasFeeCap: s.MaxPriorityFee,
		Gas:       s.GasLimit,
		To:        &to,
		Data:      data,
	})
	signer := types.LatestSignerForChainID(s.ChainID)
	signedTx, err := types.SignTx(tx, signer, s.PrivateKey)
	if err != nil {
		return Result{}, errors.Wrap(err, "signing reportRelay tx")
	}

	if err := s.Para.SendRawTransaction(ctx, signedTx); err != nil {
		return Result{}, errors.Wrap(err, "eth_sendRawTransaction")
	}

	receipt, err := s.awaitReceipt(ctx, signedTx.Hash())
	if err != nil {
		return Result{}, err
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		s.Metrics.ObserveTxSuccess()
		return Result{Outcome: OutcomeSent, TxHash: signedTx.Hash()}, nil
	}
	s.Metrics.ObserveTxRevert()
	s.Metrics.SetLastFailedEra(eraID)
	return Result{Outcome: OutcomeReverted, TxHash: signedTx.Hash()}, nil
}

func (s *Submitter) awaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	interval := s.ReceiptPollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}
	for {
		receipt, err := s.Para.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
