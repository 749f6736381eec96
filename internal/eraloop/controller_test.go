package eraloop

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/parastake/oracle/internal/oracletypes"
	"github.com/parastake/oracle/internal/recovery"
	"github.com/parastake/oracle/internal/submit"
)

// stubSelfInterrupt replaces the package's real syscall.Kill seam for the
// duration of a test, so a delay-shutdown test doesn't signal the test binary
// itself. Returns a function reporting how many times it fired.
func stubSelfInterrupt(t *testing.T) func() int {
	t.Helper()
	calls := 0
	prev := selfInterrupt
	selfInterrupt = func() { calls++ }
	t.Cleanup(func() { selfInterrupt = prev })
	return func() int { return calls }
}

// fakeRelay is a minimal RelayChain double driven entirely by test-set fields.
type fakeRelay struct {
	head uint64
	era  oracletypes.EraId
}

func (f *fakeRelay) FinalizedHeadNumber() (uint64, error) { return f.head, nil }
func (f *fakeRelay) BlockHash(number uint64) (types.Hash, error) {
	var h types.Hash
	h[0] = byte(number)
	return h, nil
}
func (f *fakeRelay) ActiveEra(types.Hash) (oracletypes.EraId, uint64, error) { return f.era, 0, nil }
func (f *fakeRelay) SystemAccountFree(oracletypes.StashKey, types.Hash) (*uint256.Int, error) {
	return uint256.NewInt(100), nil
}
func (f *fakeRelay) IsNominator(oracletypes.StashKey, types.Hash) (bool, error) { return false, nil }
func (f *fakeRelay) IsValidator(oracletypes.StashKey, types.Hash) (bool, error) { return false, nil }
func (f *fakeRelay) Bonded(oracletypes.StashKey, types.Hash) (oracletypes.ControllerKey, bool, error) {
	return oracletypes.ControllerKey{}, false, nil
}
func (f *fakeRelay) Ledger(oracletypes.ControllerKey, types.Hash) (*oracletypes.StakingLedger, error) {
	return &oracletypes.StakingLedger{}, nil
}

type fakeOracle struct {
	currentEra    oracletypes.EraId
	stashes       []oracletypes.StashKey
	reportedEras  map[oracletypes.StashKey]oracletypes.EraId
}

func (f *fakeOracle) GetCurrentEraId(context.Context) (oracletypes.EraId, error) { return f.currentEra, nil }
func (f *fakeOracle) GetStashAccounts(context.Context) ([]oracletypes.StashKey, error) {
	return f.stashes, nil
}
func (f *fakeOracle) IsReportedLastEra(_ context.Context, _ common.Address, stash oracletypes.StashKey) (oracletypes.EraId, bool, error) {
	era, ok := f.reportedEras[stash]
	return era, ok, nil
}

type fakeSubmitter struct{ calls int }

func (f *fakeSubmitter) Submit(context.Context, oracletypes.EraId, oracletypes.StashReport) (submit.Result, error) {
	f.calls++
	return submit.Result{Outcome: submit.OutcomeSent}, nil
}

type fakeMetrics struct{ delayed *bool }

func (f fakeMetrics) SetActiveEraID(oracletypes.EraId)       {}
func (f fakeMetrics) SetEraUpdateDelayed(active bool) {
	if f.delayed != nil {
		*f.delayed = active
	}
}
func (fakeMetrics) SetLastEraReported(oracletypes.EraId)   {}
func (fakeMetrics) SetPreviousEraChangeBlockNumber(uint64) {}
func (fakeMetrics) SetOracleBalance(string, float64)       {}

type fakeBalance struct{}

func (fakeBalance) Balance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(42), nil
}

func stash(b byte) oracletypes.StashKey {
	var k oracletypes.StashKey
	k[0] = b
	return k
}

func TestController_RestoreSeedsLastReported(t *testing.T) {
	oracle := &fakeOracle{
		currentEra:   5,
		stashes:      []oracletypes.StashKey{stash(1), stash(2)},
		reportedEras: map[oracletypes.StashKey]oracletypes.EraId{stash(1): 4},
	}
	c := New(&fakeRelay{head: 1000, era: 5}, oracle, &fakeSubmitter{}, fakeMetrics{}, fakeBalance{}, common.Address{})

	require.NoError(t, c.Tick(context.Background()))

	require.Equal(t, stateIdle, c.state)
	require.Equal(t, oracletypes.EraId(4), c.lastReported[stash(1)])
	_, ok := c.lastReported[stash(2)]
	require.False(t, ok)
}

func TestController_IdleDetectsEraTransitionAndMovesToReporting(t *testing.T) {
	relay := &fakeRelay{head: 1000, era: 5}
	oracle := &fakeOracle{currentEra: 5, stashes: nil}
	c := New(relay, oracle, &fakeSubmitter{}, fakeMetrics{}, fakeBalance{}, common.Address{})
	c.state = stateIdle
	c.lastKnownEra = 4

	require.NoError(t, c.Tick(context.Background()))
	require.Equal(t, stateReporting, c.state)
	require.Equal(t, oracletypes.EraId(5), c.lastKnownEra)
}

func TestController_IdleNoTransitionStaysIdle(t *testing.T) {
	relay := &fakeRelay{head: 1000, era: 5}
	oracle := &fakeOracle{currentEra: 5}
	c := New(relay, oracle, &fakeSubmitter{}, fakeMetrics{}, fakeBalance{}, common.Address{})
	c.state = stateIdle
	c.lastKnownEra = 5

	require.NoError(t, c.Tick(context.Background()))
	require.Equal(t, stateIdle, c.state)
}

func TestController_IdleEraDisagreementArmsDelayThenShutsDown(t *testing.T) {
	interruptCalls := stubSelfInterrupt(t)

	relay := &fakeRelay{head: 1000, era: 5}
	oracle := &fakeOracle{currentEra: 6} // parachain disagrees
	var delayed bool
	c := New(relay, oracle, &fakeSubmitter{}, fakeMetrics{delayed: &delayed}, fakeBalance{}, common.Address{})
	c.state = stateIdle
	c.lastKnownEra = 4
	c.EraDelayTime = 10 * time.Millisecond
	c.WaitBeforeShutdown = time.Millisecond

	require.NoError(t, c.Tick(context.Background())) // arms the clock
	require.False(t, c.eraDelayTimeStart.IsZero())
	require.False(t, delayed, "mere disagreement must not arm era_update_delayed")
	require.Equal(t, 0, interruptCalls())

	timeNow = func() time.Time { return time.Now().Add(time.Hour) }
	defer func() { timeNow = time.Now }()

	err := c.Tick(context.Background())
	require.True(t, errors.Is(err, recovery.ErrDelayShutdown))
	require.True(t, delayed, "era_update_delayed must be set once the delay-shutdown sequence runs")
	require.Equal(t, 1, interruptCalls(), "delay-shutdown must self-interrupt the process")
}

func TestController_IdleImmutabilityTimeoutShutsDown(t *testing.T) {
	interruptCalls := stubSelfInterrupt(t)

	relay := &fakeRelay{head: 1000, era: 5}
	oracle := &fakeOracle{currentEra: 5}
	var delayed bool
	c := New(relay, oracle, &fakeSubmitter{}, fakeMetrics{delayed: &delayed}, fakeBalance{}, common.Address{})
	c.state = stateIdle
	c.lastKnownEra = 5
	c.EraDurationInSeconds = time.Millisecond
	c.EraUpdateDelay = time.Millisecond
	c.WaitBeforeShutdown = time.Millisecond

	now := time.Now()
	timeNow = func() time.Time { return now }
	require.NoError(t, c.Tick(context.Background())) // seeds lastIdleTick, no elapsed time yet
	require.False(t, delayed)

	timeNow = func() time.Time { return now.Add(time.Hour) }
	defer func() { timeNow = time.Now }()

	err := c.Tick(context.Background())
	require.True(t, errors.Is(err, recovery.ErrDelayShutdown))
	require.True(t, delayed)
	require.Equal(t, 1, interruptCalls())
}

func TestController_IdleLogsAndClearsWasRecoveredWithoutEraAdvance(t *testing.T) {
	relay := &fakeRelay{head: 1000, era: 5}
	oracle := &fakeOracle{currentEra: 5}
	c := New(relay, oracle, &fakeSubmitter{}, fakeMetrics{}, fakeBalance{}, common.Address{})
	c.state = stateIdle
	c.lastKnownEra = 5
	c.NotifyRecovered()
	require.True(t, c.wasRecovered)

	require.NoError(t, c.Tick(context.Background()))
	require.Equal(t, stateIdle, c.state)
	require.False(t, c.wasRecovered, "wasRecovered must clear once observed with no era advance")
}

func TestController_ReportingSubmitsUnreportedStashesAndAdvancesLastReported(t *testing.T) {
	relay := &fakeRelay{head: 1000, era: 5}
	oracle := &fakeOracle{
		stashes: []oracletypes.StashKey{stash(1), stash(2)},
	}
	sub := &fakeSubmitter{}
	c := New(relay, oracle, sub, fakeMetrics{}, fakeBalance{}, common.Address{})
	c.state = stateReporting
	c.lastKnownEra = 5
	c.EraDurationInBlocks = 2000
	c.lastReported = map[oracletypes.StashKey]oracletypes.EraId{stash(1): 4}

	require.NoError(t, c.Tick(context.Background()))

	require.Equal(t, stateIdle, c.state)
	// reportEra = lastKnownEra-1 = 4. stash(1) is already reported for era 4, so it
	// is skipped (I1); stash(2) is not, so it gets submitted.
	require.Equal(t, 1, sub.calls)
	require.Equal(t, oracletypes.EraId(4), c.lastReported[stash(1)])
	require.Equal(t, oracletypes.EraId(4), c.lastReported[stash(2)])
}
