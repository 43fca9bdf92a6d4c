package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"
)

// Request carries the inputs for one pricing decision.
type Request struct {
	ItemName    string
	BasePrice   *big.Int
	DemandIndex int
	Supply      *big.Int
}

// OracleError wraps an advisory provider failure. Recoverable: the caller
// treats it as "no suggestion this cycle", never as a zero-change price.
type OracleError struct {
	Provider string
	Err      error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("pricing advisor %s: %v", e.Provider, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// Advisor is one pluggable pricing strategy. Implementations either return
// a concrete price or an error; they never guess on failure.
type Advisor interface {
	SuggestPrice(ctx context.Context, req Request) (*big.Int, error)
}

// Oracle wraps the configured advisor with a call timeout and the
// no-suggestion-on-failure contract.
type Oracle struct {
	advisor Advisor
	timeout time.Duration
}

func NewOracle(advisor Advisor, timeout time.Duration) *Oracle {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Oracle{advisor: advisor, timeout: timeout}
}

// Suggest asks the advisor for a new price. A nil price with a non-nil
// error means no suggestion; the caller must leave the price alone.
func (o *Oracle) Suggest(ctx context.Context, req Request) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	price, err := o.advisor.SuggestPrice(ctx, req)
	if err != nil {
		var oerr *OracleError
		if !errors.As(err, &oerr) {
			err = &OracleError{Provider: "advisor", Err: err}
		}
		return nil, err
	}
	if price == nil || price.Sign() < 1 {
		return nil, &OracleError{Provider: "advisor", Err: fmt.Errorf("invalid suggested price %v", price)}
	}

	log.Debug().
		Str("item", req.ItemName).
		Int("demand_index", req.DemandIndex).
		Str("suggested", price.String()).
		Msg("Oracle suggestion")

	return price, nil
}
