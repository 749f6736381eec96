// Command stakeoracle runs the cross-chain staking oracle: it watches relay-chain
// eras and reports stash staking state to an OracleMaster contract on a parachain.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/parastake/oracle/internal/config"
	"github.com/parastake/oracle/internal/eraloop"
	"github.com/parastake/oracle/internal/metrics"
	"github.com/parastake/oracle/internal/oraclemaster"
	"github.com/parastake/oracle/internal/parachain"
	"github.com/parastake/oracle/internal/recovery"
	"github.com/parastake/oracle/internal/relaychain"
	"github.com/parastake/oracle/internal/signing"
	"github.com/parastake/oracle/internal/submit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "stakeoracle:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	timeout := time.Duration(cfg.Timeout) * time.Second

	relay := relaychain.New(cfg.WSURLsRelay, cfg.SS58Format, cfg.TypeRegistryPreset, timeout)
	para := parachain.New(cfg.WSURLsPara, timeout)

	if err := connectWithRetry(ctx, relay); err != nil {
		return fmt.Errorf("connecting to relay chain: %w", err)
	}
	if err := connectWithRetry(ctx, para); err != nil {
		return fmt.Errorf("connecting to parachain: %w", err)
	}

	oracleAddress := common.HexToAddress(cfg.ContractAddress)
	contract, err := oraclemaster.Load(cfg.OracleMasterABIPath, oracleAddress, para)
	if err != nil {
		return fmt.Errorf("loading OracleMaster ABI: %w", err)
	}
	if err := contract.Validate(ctx); err != nil {
		return fmt.Errorf("validating OracleMaster contract: %w", err)
	}

	sink := metrics.New(cfg.PrometheusMetricsPrefix)

	key, err := signing.Load(cfg.OraclePrivateKeyPath, cfg.OraclePrivateKey, cfg.DebugMode)
	if err != nil {
		return fmt.Errorf("loading oracle signing key: %w", err)
	}
	var signerAddress common.Address
	if key != nil {
		signerAddress = crypto.PubkeyToAddress(key.PublicKey)
	}

	chainID, err := para.Client().ChainID(ctx)
	if err != nil {
		return fmt.Errorf("fetching parachain chain id: %w", err)
	}

	submitter := &submit.Submitter{
		Para:           para,
		Contract:       contract,
		OracleAddress:  signerAddress,
		PrivateKey:     key,
		ChainID:        chainID,
		GasLimit:       cfg.GasLimit,
		MaxPriorityFee: new(big.Int).SetUint64(cfg.MaxPriorityFeePerGas),
		DebugMode:      cfg.DebugMode,
		Metrics:        sink,
	}

	controller := eraloop.New(relay, contract, submitter, sink, para, signerAddress)
	controller.EraDurationInBlocks = cfg.EraDurationInBlocks
	controller.EraDurationInSeconds = time.Duration(cfg.EraDurationInSeconds) * time.Second
	controller.EraDelayTime = time.Duration(cfg.EraDelayTime) * time.Second
	controller.EraUpdateDelay = time.Duration(cfg.EraUpdateDelay) * time.Second
	controller.FrequencyOfRequests = time.Duration(cfg.FrequencyOfRequests) * time.Second
	controller.WaitBeforeShutdown = time.Duration(cfg.WaitBeforeShutdown) * time.Second

	envelope := &recovery.Envelope{Metrics: sink, Relay: relay, Para: para, Observer: controller}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(gctx, envelope.RunTick)
	})
	g.Go(func() error {
		return serveMetrics(gctx, sink, cfg.PrometheusPort)
	})

	return g.Wait()
}

// connectWithRetry bounds the process-start connect attempt at 20 tries (§4.1): each
// Connect call already retries its own URL list once per call, sleeping Timeout
// seconds on exhaustion, so this is the "up to 20 attempts" outer bound.
func connectWithRetry(ctx context.Context, s interface{ Connect(context.Context) error }) error {
	const maxAttempts = 20
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.Connect(ctx); err != nil {
			lastErr = err
			log.Warn("connect attempt failed", "attempt", attempt, "err", err)
			continue
		}
		return nil
	}
	return lastErr
}

func serveMetrics(ctx context.Context, sink *metrics.Sink, port uint64) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", sink.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func setupLogger(level string) {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		lvl = log.LvlInfo
	}
	handler := log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat(false)))
	log.Root().SetHandler(handler)
}
