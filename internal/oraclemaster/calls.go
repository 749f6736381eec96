package oraclemaster

import (
	"context"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/parastake/oracle/internal/oracletypes"
)

func (c *Contract) call(ctx context.Context, method string, out interface{}, args ...interface{}) error {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return errors.Wrapf(err, "packing %s", method)
	}
	result, err := c.caller.Call(ctx, goethereum.CallMsg{To: &c.address, Data: data})
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}
	if out == nil {
		return nil
	}
	vals, err := c.abi.Unpack(method, result)
	if err != nil {
		return errors.Wrapf(err, "unpacking %s", method)
	}
	return c.abi.Methods[method].Outputs.Copy(out, vals)
}

// GetStashAccounts calls OracleMaster.getStashAccounts().
func (c *Contract) GetStashAccounts(ctx context.Context) ([]oracletypes.StashKey, error) {
	var raw [][32]byte
	if err := c.call(ctx, "getStashAccounts", &raw); err != nil {
		return nil, err
	}
	out := make([]oracletypes.StashKey, len(raw))
	for i, b := range raw {
		out[i] = oracletypes.StashKey(b)
	}
	return out, nil
}

// GetCurrentEraId calls OracleMaster.getCurrentEraId().
func (c *Contract) GetCurrentEraId(ctx context.Context) (oracletypes.EraId, error) {
	var raw *big.Int
	if err := c.call(ctx, "getCurrentEraId", &raw); err != nil {
		return 0, err
	}
	return oracletypes.EraId(raw.Uint64()), nil
}

// isReportedLastEraResult mirrors the (uint256 eraId, bool isReported) return tuple.
type isReportedLastEraResult struct {
	EraId      *big.Int
	IsReported bool
}

// IsReportedLastEra calls OracleMaster.isReportedLastEra(oracle, stash).
func (c *Contract) IsReportedLastEra(ctx context.Context, oracle common.Address, stash oracletypes.StashKey) (oracletypes.EraId, bool, error) {
	var raw isReportedLastEraResult
	if err := c.call(ctx, "isReportedLastEra", &raw, oracle, stash); err != nil {
		return 0, false, err
	}
	return oracletypes.EraId(raw.EraId.Uint64()), raw.IsReported, nil
}
