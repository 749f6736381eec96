package submit

import (
	"context"
	"errors"
	"math/big"
	"testing"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/parastake/oracle/internal/oracletypes"
)

type fakePara struct {
	callErr error
	sendErr error
	receipt *types.Receipt
	sentTx  *types.Transaction
}

func (f *fakePara) NonceLatest(context.Context, common.Address) (uint64, error) { return 3, nil }
func (f *fakePara) Call(context.Context, goethereum.CallMsg) ([]byte, error)    { return nil, f.callErr }
func (f *fakePara) SendRawTransaction(_ context.Context, tx *types.Transaction) error {
	f.sentTx = tx
	return f.sendErr
}
func (f *fakePara) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

type fakeContract struct{ addr common.Address }

func (f *fakeContract) Address() common.Address { return f.addr }
func (f *fakeContract) PackReportRelay(oracletypes.EraId, oracletypes.StashReport) ([]byte, error) {
	return []byte{0xAB}, nil
}

type fakeMetrics struct{ reverts, successes int }

func (f *fakeMetrics) ObserveTxSuccess()                  { f.successes++ }
func (f *fakeMetrics) ObserveTxRevert()                   { f.reverts++ }
func (f *fakeMetrics) SetLastFailedEra(oracletypes.EraId) {}

var errCallReverted = errors.New("execution reverted")

func TestSubmit_DryRunRevertIsNotAnError(t *testing.T) {
	para := &fakePara{callErr: errCallReverted}
	metrics := &fakeMetrics{}
	s := &Submitter{
		Para:     para,
		Contract: &fakeContract{addr: common.Address{1}},
		ChainID:  big.NewInt(1),
		Metrics:  metrics,
	}
	res, err := s.Submit(context.Background(), 1, oracletypes.StashReport{})
	require.NoError(t, err)
	require.Equal(t, OutcomeWillRevert, res.Outcome)
	require.Equal(t, 1, metrics.reverts)
}

func TestSubmit_DebugModeSkipsSubmission(t *testing.T) {
	para := &fakePara{}
	s := &Submitter{
		Para:      para,
		Contract:  &fakeContract{addr: common.Address{1}},
		ChainID:   big.NewInt(1),
		DebugMode: true,
		Metrics:   &fakeMetrics{},
	}
	res, err := s.Submit(context.Background(), 1, oracletypes.StashReport{})
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, res.Outcome)
	require.Nil(t, para.sentTx)
}

func TestSubmit_SuccessfulReceiptRecordsSuccess(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	para := &fakePara{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}}
	metrics := &fakeMetrics{}
	s := &Submitter{
		Para:           para,
		Contract:       &fakeContract{addr: common.Address{1}},
		ChainID:        big.NewInt(1337),
		PrivateKey:     key,
		GasLimit:       21000,
		MaxPriorityFee: big.NewInt(1),
		Metrics:        metrics,
	}
	res, err := s.Submit(context.Background(), 1, oracletypes.StashReport{})
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, res.Outcome)
	require.Equal(t, 1, metrics.successes)
	require.NotNil(t, para.sentTx)
}

func TestSubmit_RevertedReceiptRecordsRevert(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	para := &fakePara{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	metrics := &fakeMetrics{}
	s := &Submitter{
		Para:           para,
		Contract:       &fakeContract{addr: common.Address{1}},
		ChainID:        big.NewInt(1337),
		PrivateKey:     key,
		GasLimit:       21000,
		MaxPriorityFee: big.NewInt(1),
		Metrics:        metrics,
	}
	res, err := s.Submit(context.Background(), 1, oracletypes.StashReport{})
	require.NoError(t, err)
	require.Equal(t, OutcomeReverted, res.Outcome)
	require.Equal(t, 1, metrics.reverts)
}
