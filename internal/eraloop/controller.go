// Package eraloop is C6: the era-tracking control loop that ties every other
// component together (§4.5). It owns no chain-access logic of its own beyond the
// binary search and finalization wait — everything else is delegated through the
// narrow interfaces below.
package eraloop

import (
	"context"
	"math/big"
	"os"
	"syscall"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/pkg/errors"

	"github.com/parastake/oracle/internal/oracletypes"
	"github.com/parastake/oracle/internal/recovery"
	"github.com/parastake/oracle/internal/report"
	"github.com/parastake/oracle/internal/submit"
)

// state is the controller's explicit state enum (§4.5): restoring happens once at
// startup, then the loop alternates idle/reporting, with recovery handled one layer
// up by the envelope (RunTick already took us out of "Recovering" by the time Tick
// is called again).
type state int

const (
	stateRestoring state = iota
	stateIdle
	stateReporting
)

// RelayChain is the subset of internal/relaychain.Session the controller needs,
// plus the report.Chain methods report.BuildReport needs (the controller is the
// thing wiring the report reader to a live session).
type RelayChain interface {
	FinalizedHeadNumber() (uint64, error)
	BlockHash(number uint64) (types.Hash, error)
	ActiveEra(blockHash types.Hash) (oracletypes.EraId, uint64, error)
	report.Chain
}

// OracleMaster is the subset of internal/oraclemaster.Contract the controller
// drives directly (beyond building/submitting a report, handled via Submitter).
type OracleMaster interface {
	GetCurrentEraId(ctx context.Context) (oracletypes.EraId, error)
	GetStashAccounts(ctx context.Context) ([]oracletypes.StashKey, error)
	IsReportedLastEra(ctx context.Context, oracle common.Address, stash oracletypes.StashKey) (oracletypes.EraId, bool, error)
}

// Submitter is the subset of internal/submit.Submitter the controller needs.
type Submitter interface {
	Submit(ctx context.Context, eraID oracletypes.EraId, report oracletypes.StashReport) (submit.Result, error)
}

// Metrics is the subset of the metrics sink the controller writes to.
type Metrics interface {
	SetActiveEraID(era oracletypes.EraId)
	SetEraUpdateDelayed(active bool)
	SetLastEraReported(era oracletypes.EraId)
	SetPreviousEraChangeBlockNumber(n uint64)
	SetOracleBalance(address string, balance float64)
}

// Balance is the subset of internal/parachain.Session the controller needs to
// refresh the oracle_balance gauge on restore (§4.5 "Restoring").
type Balance interface {
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Controller implements the full C6 state machine: Restoring (once), then
// Idle/Reporting, ticked by the recovery envelope.
type Controller struct {
	Relay   RelayChain
	Oracle  OracleMaster
	Submit  Submitter
	Metrics Metrics
	Balance Balance

	OracleAddress common.Address

	EraDurationInBlocks  uint64
	EraDurationInSeconds time.Duration
	EraDelayTime         time.Duration
	EraUpdateDelay       time.Duration
	FrequencyOfRequests  time.Duration
	WaitBeforeShutdown   time.Duration

	state state

	// lastReported is I3: LastReported[stash] only ever increases (§3).
	lastReported map[oracletypes.StashKey]oracletypes.EraId

	lastKnownEra              oracletypes.EraId
	previousEraChangeBlockNum uint64

	// eraDelayTimeStart tracks §4.7's dual-chain era-agreement clock: zero means
	// "not currently waiting on agreement".
	eraDelayTimeStart time.Time

	// lastIdleTick and timeOfEraImmutability track §4.5 Idle step 4: wall-clock
	// time since the era last advanced, independent of the agreement clock above.
	// Exceeding EraDurationInSeconds+EraUpdateDelay is the second delay-shutdown
	// trigger.
	lastIdleTick           time.Time
	timeOfEraImmutability  time.Duration

	// wasRecovered is set by NotifyRecovered when the envelope completes a
	// recovery cycle, and consumed by the next Idle tick (§4.5 Idle step 3).
	wasRecovered bool
}

// New constructs a Controller in its initial Restoring state.
func New(relay RelayChain, oracle OracleMaster, sub Submitter, metrics Metrics, balance Balance, oracleAddress common.Address) *Controller {
	return &Controller{
		Relay:         relay,
		Oracle:        oracle,
		Submit:        sub,
		Metrics:       metrics,
		Balance:       balance,
		OracleAddress: oracleAddress,
		state:         stateRestoring,
		lastReported:  make(map[oracletypes.StashKey]oracletypes.EraId),
	}
}

// Run drives the controller until ctx is cancelled or Tick returns a fatal error,
// sleeping FrequencyOfRequests between ticks (§4.5's polling cadence; the
// envelope's RunTick wraps each call for recovery).
func (c *Controller) Run(ctx context.Context, runTick func(ctx context.Context, tick func(context.Context) error) (bool, error)) error {
	for {
		shutdown, err := runTick(ctx, c.Tick)
		if shutdown {
			return err
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.sleepInterval()):
		}
	}
}

func (c *Controller) sleepInterval() time.Duration {
	if c.FrequencyOfRequests > 0 {
		return c.FrequencyOfRequests
	}
	return 3 * time.Minute
}

// Tick runs exactly one state transition. Errors returned here cross the single
// recovery boundary (§7) and are classified by the envelope.
func (c *Controller) Tick(ctx context.Context) error {
	switch c.state {
	case stateRestoring:
		return c.restore(ctx)
	case stateIdle:
		return c.idle(ctx)
	case stateReporting:
		return c.report(ctx)
	default:
		return errors.Errorf("eraloop: unknown state %d", c.state)
	}
}

// restore implements §4.5 "Restoring (entry)": refresh the balance gauge, then for
// every stash ask the contract whether last era was already reported, seeding
// lastReported so a restart never double-reports (I1).
func (c *Controller) restore(ctx context.Context) error {
	if c.Balance != nil {
		if bal, err := c.Balance.Balance(ctx, c.OracleAddress); err == nil {
			f, _ := new(big.Float).SetInt(bal).Float64()
			c.Metrics.SetOracleBalance(c.OracleAddress.Hex(), f)
		} else {
			log.Warn("restore: balance query failed", "err", err)
		}
	}

	stashes, err := c.Oracle.GetStashAccounts(ctx)
	if err != nil {
		return errors.Wrap(err, "restore: getStashAccounts")
	}
	for _, stash := range stashes {
		era, reported, err := c.Oracle.IsReportedLastEra(ctx, c.OracleAddress, stash)
		if err != nil {
			return errors.Wrap(err, "restore: isReportedLastEra")
		}
		if reported {
			c.lastReported[stash] = era
		}
	}

	era, err := c.currentRelayEra(ctx)
	if err != nil {
		return errors.Wrap(err, "restore: current era")
	}
	c.lastKnownEra = era
	c.Metrics.SetActiveEraID(era)

	c.state = stateIdle
	return nil
}

func (c *Controller) currentRelayEra(ctx context.Context) (oracletypes.EraId, error) {
	head, err := c.Relay.FinalizedHeadNumber()
	if err != nil {
		return 0, err
	}
	hash, err := c.Relay.BlockHash(head)
	if err != nil {
		return 0, err
	}
	era, _, err := c.Relay.ActiveEra(hash)
	return era, err
}

// idle implements §4.5 "Idle": detect an era transition by cross-checking the relay
// chain's ActiveEra against the contract's getCurrentEraId (§4.7), arming the
// delay-shutdown clock on disagreement, and separately tracking how long the era
// has gone without advancing at all (the immutability timeout, Idle step 4).
func (c *Controller) idle(ctx context.Context) error {
	relayEra, err := c.currentRelayEra(ctx)
	if err != nil {
		return err
	}
	contractEra, err := c.Oracle.GetCurrentEraId(ctx)
	if err != nil {
		return err
	}

	if relayEra != contractEra {
		// §4.7: the two chains disagree on the current era. Start (or continue)
		// the delay-shutdown clock; if it's been running too long, shut down.
		// The era_update_delayed gauge only flips once that shutdown actually
		// happens, not on mere disagreement.
		if c.eraDelayTimeStart.IsZero() {
			c.eraDelayTimeStart = timeNow()
			log.Warn("era disagreement between relay and parachain", "relay", relayEra, "contract", contractEra)
		} else if timeNow().Sub(c.eraDelayTimeStart) > c.EraDelayTime {
			log.Error("era disagreement exceeded EraDelayTime", "wait", c.EraDelayTime, "relay", relayEra, "contract", contractEra)
			return c.shutdownAfterTimeout(ctx)
		}
		return nil
	}
	c.eraDelayTimeStart = time.Time{}
	c.Metrics.SetEraUpdateDelayed(false)

	now := timeNow()
	if !c.lastIdleTick.IsZero() {
		c.timeOfEraImmutability += now.Sub(c.lastIdleTick)
	}
	c.lastIdleTick = now

	if relayEra > c.lastKnownEra {
		c.timeOfEraImmutability = 0
		c.lastKnownEra = relayEra
		c.Metrics.SetActiveEraID(relayEra)
		c.state = stateReporting
		return nil
	}

	if c.wasRecovered {
		log.Info("era has already been processed, waiting for the next era", "era", c.lastKnownEra)
		c.wasRecovered = false
	}

	if possible := c.EraDurationInSeconds + c.EraUpdateDelay; possible > 0 && c.timeOfEraImmutability > possible {
		log.Error("era update is delayed", "immutable_for", c.timeOfEraImmutability, "allowed", possible)
		return c.shutdownAfterTimeout(ctx)
	}
	return nil
}

// shutdownAfterTimeout implements the single delay-shutdown sequence both §4.7
// triggers above funnel into: arm the era_update_delayed gauge, wait out
// WaitBeforeShutdown, then send the process its own interrupt so a supervisor
// restarts it. Returns recovery.ErrDelayShutdown so the envelope shuts down rather
// than entering recovery.
func (c *Controller) shutdownAfterTimeout(ctx context.Context) error {
	c.Metrics.SetEraUpdateDelayed(true)
	log.Info("sleeping before shutdown", "wait", c.WaitBeforeShutdown)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.WaitBeforeShutdown):
	}
	selfInterrupt()
	return recovery.ErrDelayShutdown
}

// NotifyRecovered implements recovery.RecoveryObserver: the envelope calls this
// once a recovery cycle completes, so the next Idle tick can tell "still waiting
// on the same era" apart from "just came back up" (§4.5 Idle step 3).
func (c *Controller) NotifyRecovered() {
	c.wasRecovered = true
}

// selfInterrupt sends SIGINT to this process (§4.7's "send the process its own
// interrupt"). Indirected so tests can observe it without killing themselves.
var selfInterrupt = func() {
	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		log.Error("failed to signal self for shutdown", "err", err)
	}
}

// report implements §4.5 "Reporting": locate the last block of the era that just
// ended, wait for it to finalize, then report every stash not already reported for
// that era, advancing LastReported regardless of submission outcome (Open
// Question #1 — a revert still counts as "attempted", not "pending retry").
func (c *Controller) report(ctx context.Context) error {
	target := c.lastKnownEra

	head, err := c.Relay.FinalizedHeadNumber()
	if err != nil {
		return err
	}
	ref, err := findLastBlock(c.Relay, head, c.EraDurationInBlocks, target)
	if err != nil {
		return err
	}
	if err := awaitFinalization(ctx, c.Relay, ref, 0); err != nil {
		return err
	}

	c.previousEraChangeBlockNum = ref.Number
	c.Metrics.SetPreviousEraChangeBlockNumber(ref.Number)

	stashes, err := c.Oracle.GetStashAccounts(ctx)
	if err != nil {
		return errors.Wrap(err, "reporting: getStashAccounts")
	}

	reportEra := target - 1
	for _, stash := range stashes {
		if already, ok := c.lastReported[stash]; ok && already >= reportEra {
			continue
		}

		rep, err := report.BuildReport(c.Relay, stash, hashFromArray(ref.Hash))
		if err != nil {
			log.Warn("reporting: build report failed", "stash", stash.Hex(), "err", err)
			continue
		}

		if _, err := c.Submit.Submit(ctx, reportEra, rep); err != nil {
			log.Warn("reporting: submit failed", "stash", stash.Hex(), "era", reportEra, "err", err)
			continue
		}
		// Advance LastReported even on revert/will-revert: the attempt happened
		// for this era, and §3's monotonic invariant (I3) only ever moves forward.
		c.lastReported[stash] = reportEra
	}

	c.Metrics.SetLastEraReported(reportEra)
	c.state = stateIdle
	return nil
}

func hashFromArray(h [32]byte) types.Hash {
	var out types.Hash
	copy(out[:], h[:])
	return out
}

// timeNow is indirected so tests can control the clock without invoking time.Now
// at package-init time in a way that would differ run to run.
var timeNow = time.Now
