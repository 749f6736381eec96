// Package relaychain implements C1's relay-chain half: a Substrate WebSocket
// JSON-RPC session with URL-list failover, plus the typed storage queries C4 (the
// report reader) needs.
package relaychain

import (
	"context"
	"fmt"
	"time"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/parastake/oracle/internal/oracletypes"
)

// Session owns one live gsrpc client, replaced wholesale on reconnect: Reconnect
// swaps the inner client in place, so callers keep using the same *Session.
type Session struct {
	urls               []string
	ss58Format         uint16
	typeRegistryPreset string
	timeout            time.Duration

	api  *gsrpc.SubstrateAPI
	meta *types.Metadata
	url  string
}

func New(urls []string, ss58Format uint16, typeRegistryPreset string, timeout time.Duration) *Session {
	return &Session{urls: urls, ss58Format: ss58Format, typeRegistryPreset: typeRegistryPreset, timeout: timeout}
}

func (s *Session) Name() string { return "relay" }

// Connect implements §4.1's connect procedure: iterate the URL list in order,
// returning on the first one that opens and passes a liveness probe; on
// exhaustion, sleep timeout seconds and return an error. Each call walks the list
// once; repeating is up to the caller (the process-start "up to 20 attempts" rule
// lives in cmd/stakeoracle, the unbounded retry in the recovery envelope).
func (s *Session) Connect(ctx context.Context) error {
	for _, u := range s.urls {
		api, err := gsrpc.NewSubstrateAPI(u)
		if err != nil {
			log.Warn("relay connect failed", "url", u, "err", err)
			continue
		}
		if _, err := api.RPC.Chain.GetFinalizedHead(); err != nil {
			log.Warn("relay liveness probe failed", "url", u, "err", err)
			continue
		}
		meta, err := api.RPC.State.GetMetadataLatest()
		if err != nil {
			log.Warn("relay metadata fetch failed", "url", u, "err", err)
			continue
		}
		s.api, s.meta, s.url = api, meta, u
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
	}
	return errors.New("relay connect: exhausted URL list")
}

// Reconnect implements recovery.Reconnector for the recovery envelope (§4.6):
// same procedure as Connect, retried by the caller until it succeeds.
func (s *Session) Reconnect(ctx context.Context) error { return s.Connect(ctx) }

func (s *Session) URL() string { return s.url }

// FinalizedHeadNumber returns the block number of the chain's finalized head.
func (s *Session) FinalizedHeadNumber() (uint64, error) {
	hash, err := s.api.RPC.Chain.GetFinalizedHead()
	if err != nil {
		return 0, errors.Wrap(err, "chain_getFinalizedHead")
	}
	header, err := s.api.RPC.Chain.GetHeader(hash)
	if err != nil {
		return 0, errors.Wrap(err, "chain_getHeader")
	}
	return uint64(header.Number), nil
}

// BlockHash returns the canonical (at time of call) hash for a block number.
func (s *Session) BlockHash(number uint64) (types.Hash, error) {
	h, err := s.api.RPC.Chain.GetBlockHash(number)
	if err != nil {
		return types.Hash{}, errors.Wrap(err, "chain_getBlockHash")
	}
	return h, nil
}

// ActiveEra reads Staking.ActiveEra at the given block.
func (s *Session) ActiveEra(blockHash types.Hash) (oracletypes.EraId, uint64, error) {
	key, err := types.CreateStorageKey(s.meta, "Staking", "ActiveEra")
	if err != nil {
		return 0, 0, errors.Wrap(err, "CreateStorageKey(Staking.ActiveEra)")
	}
	var era activeEraInfo
	ok, err := s.api.RPC.State.GetStorage(key, &era, blockHash)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Staking.ActiveEra")
	}
	if !ok {
		return 0, 0, errors.New("Staking.ActiveEra: absent")
	}
	start := uint64(0)
	if era.Start.HasValue() {
		_, v := era.Start.Unwrap()
		start = uint64(v)
	}
	return oracletypes.EraId(era.Index), start, nil
}

// activeEraInfo mirrors pallet_staking::ActiveEraInfo.
type activeEraInfo struct {
	Index types.U32
	Start types.OptionU64
}

// Bonded reads Staking.Bonded(stash) -> controller, or ok=false if absent.
func (s *Session) Bonded(stash oracletypes.StashKey, blockHash types.Hash) (oracletypes.ControllerKey, bool, error) {
	accountID, err := types.NewAccountID(stash.Bytes())
	if err != nil {
		return oracletypes.ControllerKey{}, false, err
	}
	key, err := types.CreateStorageKey(s.meta, "Staking", "Bonded", accountID[:])
	if err != nil {
		return oracletypes.ControllerKey{}, false, errors.Wrap(err, "CreateStorageKey(Staking.Bonded)")
	}
	var controller types.AccountID
	ok, err := s.api.RPC.State.GetStorage(key, &controller, blockHash)
	if err != nil {
		return oracletypes.ControllerKey{}, false, errors.Wrap(err, "Staking.Bonded")
	}
	if !ok {
		return oracletypes.ControllerKey{}, false, nil
	}
	var out oracletypes.ControllerKey
	copy(out[:], controller[:])
	return out, true, nil
}

// ledgerStorage mirrors pallet_staking::StakingLedger, trimmed to the fields §3
// needs.
type ledgerStorage struct {
	Stash     types.AccountID
	Total     types.U128
	Active    types.U128
	Unlocking []unlockChunkStorage
}

type unlockChunkStorage struct {
	Value types.U128
	Era   types.U32
}

// Ledger reads Staking.Ledger(controller). Absence here is a query error (§4.3.3):
// the caller already knows the controller is bonded, so a missing ledger indicates
// inconsistent chain state, not a legitimate "no bond" case.
func (s *Session) Ledger(controller oracletypes.ControllerKey, blockHash types.Hash) (*oracletypes.StakingLedger, error) {
	accountID, err := types.NewAccountID(controller.Bytes())
	if err != nil {
		return nil, err
	}
	key, err := types.CreateStorageKey(s.meta, "Staking", "Ledger", accountID[:])
	if err != nil {
		return nil, errors.Wrap(err, "CreateStorageKey(Staking.Ledger)")
	}
	var raw ledgerStorage
	ok, err := s.api.RPC.State.GetStorage(key, &raw, blockHash)
	if err != nil {
		return nil, errors.Wrap(err, "Staking.Ledger")
	}
	if !ok {
		return nil, errors.New("Staking.Ledger: absent for bonded controller")
	}

	unlocking := make([]oracletypes.UnlockingChunk, len(raw.Unlocking))
	for i, u := range raw.Unlocking {
		unlocking[i] = oracletypes.UnlockingChunk{
			Balance: u256FromU128(u.Value),
			Era:     uint32(u.Era),
		}
	}
	spans, err := s.slashingSpansPriorCount(controller, blockHash)
	if err != nil {
		return nil, err
	}
	return &oracletypes.StakingLedger{
		Controller:         controller,
		Active:             u256FromU128(raw.Active),
		Total:              u256FromU128(raw.Total),
		Unlocking:          unlocking,
		SlashingSpansCount: spans,
	}, nil
}

type slashingSpansStorage struct {
	SpanIndex   types.U32
	LastStart   types.U32
	LastNonzero types.U32
	Prior       []types.U32
}

func (s *Session) slashingSpansPriorCount(controller oracletypes.ControllerKey, blockHash types.Hash) (uint32, error) {
	accountID, err := types.NewAccountID(controller.Bytes())
	if err != nil {
		return 0, err
	}
	key, err := types.CreateStorageKey(s.meta, "Staking", "SlashingSpans", accountID[:])
	if err != nil {
		return 0, errors.Wrap(err, "CreateStorageKey(Staking.SlashingSpans)")
	}
	var spans slashingSpansStorage
	ok, err := s.api.RPC.State.GetStorage(key, &spans, blockHash)
	if err != nil {
		return 0, errors.Wrap(err, "Staking.SlashingSpans")
	}
	if !ok {
		return 0, nil
	}
	return uint32(len(spans.Prior)), nil
}

type systemAccountInfo struct {
	Nonce       types.U32
	Consumers   types.U32
	Providers   types.U32
	Sufficients types.U32
	Data        struct {
		Free       types.U128
		Reserved   types.U128
		MiscFrozen types.U128
		FeeFrozen  types.U128
	}
}

// SystemAccountFree reads System.Account(stash).data.free, failing with a wrapped
// "absent" error when the account doesn't exist (§4.3 step 1).
func (s *Session) SystemAccountFree(stash oracletypes.StashKey, blockHash types.Hash) (*uint256.Int, error) {
	accountID, err := types.NewAccountID(stash.Bytes())
	if err != nil {
		return nil, err
	}
	key, err := types.CreateStorageKey(s.meta, "System", "Account", accountID[:])
	if err != nil {
		return nil, errors.Wrap(err, "CreateStorageKey(System.Account)")
	}
	var info systemAccountInfo
	ok, err := s.api.RPC.State.GetStorage(key, &info, blockHash)
	if err != nil {
		return nil, errors.Wrap(err, "System.Account")
	}
	if !ok {
		return nil, fmt.Errorf("System.Account(%s): absent", stash.Hex())
	}
	return u256FromU128(info.Data.Free), nil
}

// IsNominator reports whether stash appears among the keys of Staking.Nominators.
func (s *Session) IsNominator(stash oracletypes.StashKey, blockHash types.Hash) (bool, error) {
	accountID, err := types.NewAccountID(stash.Bytes())
	if err != nil {
		return false, err
	}
	key, err := types.CreateStorageKey(s.meta, "Staking", "Nominators", accountID[:])
	if err != nil {
		return false, errors.Wrap(err, "CreateStorageKey(Staking.Nominators)")
	}
	raw, err := s.api.RPC.State.GetStorageRaw(key, blockHash)
	if err != nil {
		return false, errors.Wrap(err, "Staking.Nominators")
	}
	return raw != nil && len(*raw) > 0, nil
}

// IsValidator reports whether stash appears in the Session.Validators list.
func (s *Session) IsValidator(stash oracletypes.StashKey, blockHash types.Hash) (bool, error) {
	key, err := types.CreateStorageKey(s.meta, "Session", "Validators")
	if err != nil {
		return false, errors.Wrap(err, "CreateStorageKey(Session.Validators)")
	}
	var validators []types.AccountID
	ok, err := s.api.RPC.State.GetStorage(key, &validators, blockHash)
	if err != nil {
		return false, errors.Wrap(err, "Session.Validators")
	}
	if !ok {
		return false, nil
	}
	for _, v := range validators {
		if oracletypes.StashKey(v) == stash {
			return true, nil
		}
	}
	return false, nil
}

func u256FromU128(v types.U128) *uint256.Int {
	out, _ := uint256.FromBig(v.Int)
	return out
}
