// Package parachain implements C1's EVM half: a WebSocket JSON-RPC session with
// URL-list failover, plus the raw calls C3/C5 need beyond what ethclient exposes
// directly.
package parachain

import (
	"context"
	"math/big"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

// Session owns one live ethclient+rpc pair, replaced wholesale on reconnect (§9
// "Session lifecycle").
type Session struct {
	urls    []string
	timeout time.Duration

	client *ethclient.Client
	rpc    *rpc.Client
	url    string
}

func New(urls []string, timeout time.Duration) *Session {
	return &Session{urls: urls, timeout: timeout}
}

func (s *Session) Name() string { return "parachain" }

// Connect implements §4.1: iterate the URL list, the first one that dials and
// answers a net_listening liveness probe wins; on exhaustion sleep timeout and return an error for the
// caller to retry (bounded at process start, unbounded during recovery).
func (s *Session) Connect(ctx context.Context) error {
	for _, u := range s.urls {
		rc, err := rpc.DialContext(ctx, u)
		if err != nil {
			log.Warn("parachain connect failed", "url", u, "err", err)
			continue
		}
		client := ethclient.NewClient(rc)
		var result bool
		if err := rc.CallContext(ctx, &result, "net_listening"); err != nil {
			log.Warn("parachain liveness probe failed", "url", u, "err", err)
			rc.Close()
			continue
		}
		s.client, s.rpc, s.url = client, rc, u
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
	}
	return errors.New("parachain connect: exhausted URL list")
}

func (s *Session) Reconnect(ctx context.Context) error { return s.Connect(ctx) }

func (s *Session) URL() string { return s.url }

func (s *Session) Client() *ethclient.Client { return s.client }

func (s *Session) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return s.client.BalanceAt(ctx, addr, nil)
}

func (s *Session) NonceLatest(ctx context.Context, addr common.Address) (uint64, error) {
	return s.client.NonceAt(ctx, addr, nil)
}

func (s *Session) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return s.client.CodeAt(ctx, addr, nil)
}

func (s *Session) Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return s.client.CallContract(ctx, msg, nil)
}

func (s *Session) SendRawTransaction(ctx context.Context, tx *types.Transaction) error {
	return s.client.SendTransaction(ctx, tx)
}

func (s *Session) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return s.client.TransactionReceipt(ctx, hash)
}
