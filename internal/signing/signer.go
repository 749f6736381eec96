// Package signing loads the oracle's ECDSA (secp256k1) signing key from either a
// file (first line = hex key) or a raw env var, per §6.1.
package signing

import (
	"bufio"
	"crypto/ecdsa"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Load resolves ORACLE_PRIVATE_KEY_PATH (preferred) or ORACLE_PRIVATE_KEY into a
// private key. Returns (nil, nil) when debugMode is true and neither is set — debug
// mode never submits, so no key is required (§6.1's "required*" footnote).
func Load(path, raw string, debugMode bool) (*ecdsa.PrivateKey, error) {
	hexKey := raw
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening ORACLE_PRIVATE_KEY_PATH %q", path)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			hexKey = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "reading ORACLE_PRIVATE_KEY_PATH")
		}
	}
	hexKey = strings.TrimSpace(strings.TrimPrefix(hexKey, "0x"))
	if hexKey == "" {
		if debugMode {
			return nil, nil
		}
		return nil, errors.New("no private key configured")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "parsing oracle private key")
	}
	return key, nil
}
