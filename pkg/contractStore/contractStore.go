// Package contractStore defines the ABI resolver boundary: given a batch
// of contract addresses, return every known ABI keyed by all addresses it
// applies to, proxy and implementation alike.
package contractStore

import (
	"context"
	"strings"

	"github.com/chainscope/logdecoder/pkg/types"
)

// ContractStore resolves ABIs for a batch of addresses. Contracts that
// are not known are simply absent from the returned map; only transport
// or query failures are errors.
type ContractStore interface {
	ResolveAbis(ctx context.Context, addresses []string) (map[string]*types.ContractAbiRecord, error)
}

// NormalizeAddress lowercases an address so lookups from log rows are
// case-insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(address)
}

// IndexRecord maps a resolved record under its own address and, for
// proxies, under the implementation address as well, so one ABI parse
// serves both.
func IndexRecord(index map[string]*types.ContractAbiRecord, record *types.ContractAbiRecord) {
	index[NormalizeAddress(record.Address)] = record
	if record.ImplementationAddress != "" {
		index[NormalizeAddress(record.ImplementationAddress)] = record
	}
}
