// Package oraclemaster is C3 (the ABI validator) plus the thin OracleMaster
// contract binding C5/C6 call through. No abigen-generated code is used (out of
// scope per spec.md §1): this is a small hand-written wrapper in the same shape
// abigen would produce, built on go-ethereum's accounts/abi/bind.
package oraclemaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/parastake/oracle/internal/oracletypes"
)

// requiredMethods is the set C3 must verify is present, by name and argument
// shape (SPEC_FULL.md's "supplemented feature": checking types, not just names).
var requiredMethods = map[string][]string{
	"reportRelay":        {"uint256", "tuple"},
	"getStashAccounts":   {},
	"getCurrentEraId":    {},
	"isReportedLastEra":  {"address", "bytes32"},
}

// Contract binds the OracleMaster contract at address, using the ABI loaded from
// path.
type Contract struct {
	address common.Address
	abi     abi.ABI
	caller  ContractCaller
}

// ContractCaller is the subset of the parachain session a contract call needs;
// narrowed so this package doesn't import internal/parachain directly.
type ContractCaller interface {
	Call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
}

// Load parses the ABI file at path and binds it to address. Fails fatally if the
// path doesn't exist or the JSON doesn't parse (§4.2, §6.1).
func Load(path string, address common.Address, caller ContractCaller) (*Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "OracleMaster ABI path %q", path)
	}
	defer f.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parsing OracleMaster ABI JSON")
	}
	parsedABI, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decoding OracleMaster ABI")
	}
	return &Contract{address: address, abi: parsedABI, caller: caller}, nil
}

// Validate implements §4.2: verify method presence and argument types, verify
// deployed bytecode exists, and dry-call reportRelay ignoring reverts (the point is
// only to confirm the selector exists and is callable).
func (c *Contract) Validate(ctx context.Context) error {
	for name, argTypes := range requiredMethods {
		m, ok := c.abi.Methods[name]
		if !ok {
			return fmt.Errorf("OracleMaster ABI missing method %q", name)
		}
		if len(m.Inputs) != len(argTypes) {
			return fmt.Errorf("OracleMaster ABI method %q: expected %d inputs, got %d", name, len(argTypes), len(m.Inputs))
		}
		for i, want := range argTypes {
			got := m.Inputs[i].Type.String()
			if want == "tuple" {
				if m.Inputs[i].Type.T != abi.TupleTy {
					return fmt.Errorf("OracleMaster ABI method %q: argument %d expected tuple, got %s", name, i, got)
				}
				continue
			}
			if got != want {
				return fmt.Errorf("OracleMaster ABI method %q: argument %d expected %s, got %s", name, i, want, got)
			}
		}
	}

	code, err := c.caller.CodeAt(ctx, c.address)
	if err != nil {
		return errors.Wrap(err, "fetching OracleMaster bytecode")
	}
	if len(code) == 0 {
		return fmt.Errorf("OracleMaster at %s has no deployed bytecode", c.address.Hex())
	}

	data, err := c.PackReportRelay(0, oracletypes.StashReport{})
	if err != nil {
		return errors.Wrap(err, "packing dry-run reportRelay call")
	}
	_, callErr := c.caller.Call(ctx, ethereum.CallMsg{To: &c.address, Data: data})
	_ = callErr // a revert here is expected and ignored; only the selector's presence matters.
	return nil
}

// PackReportRelay ABI-encodes a reportRelay(eraId, report) call.
func (c *Contract) PackReportRelay(eraID oracletypes.EraId, report oracletypes.StashReport) ([]byte, error) {
	tuple := reportToTuple(report)
	return c.abi.Pack("reportRelay", new(big.Int).SetUint64(uint64(eraID)), tuple)
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address { return c.address }

// ABI exposes the parsed ABI for bind.BoundContract use in internal/submit.
func (c *Contract) ABI() abi.ABI { return c.abi }

// BoundContract builds a bind.BoundContract over this ABI/address for use with a
// ContractTransactor/ContractCaller/ContractFilterer triple.
func (c *Contract) BoundContract(backend bind.ContractBackend) *bind.BoundContract {
	return bind.NewBoundContract(c.address, c.abi, backend, backend, backend)
}
