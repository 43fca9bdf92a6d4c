package ledger

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract function and event names exposed by the AITrader contract.
const (
	MethodGetPrice     = "getPrice"
	MethodGetInventory = "getInventory"
	MethodUpdatePrice  = "updatePrice"
	EventItemBought    = "ItemBought"
	EventItemSold      = "ItemSold"
)

// LoadABI reads and parses the contract ABI artifact. The artifact shape
// is assumed stable; only JSON validity and the presence of the surface
// we call are checked.
func LoadABI(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read ABI artifact %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI artifact %s: %w", path, err)
	}
	for _, name := range []string{MethodGetPrice, MethodGetInventory, MethodUpdatePrice} {
		if _, ok := parsed.Methods[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI artifact %s is missing function %s", path, name)
		}
	}
	for _, name := range []string{EventItemBought, EventItemSold} {
		if _, ok := parsed.Events[name]; !ok {
			return abi.ABI{}, fmt.Errorf("ABI artifact %s is missing event %s", path, name)
		}
	}
	return parsed, nil
}
