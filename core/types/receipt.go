package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentKind identifies the asset a purchase was settled with.
type PaymentKind string

const (
	// PaymentNative marks purchases settled in the chain's native currency.
	PaymentNative PaymentKind = "native"
	// PaymentStable marks purchases settled in the configured stablecoin.
	PaymentStable PaymentKind = "stable"
)

// PurchaseReceipt summarises a completed purchase. Every field is fixed at
// the moment the operation commits; the event slice carries the audit trail
// appended during the call in emission order.
type PurchaseReceipt struct {
	ID           string         `json:"id"`
	Buyer        common.Address `json:"buyer"`
	RoundID      uint64         `json:"roundId"`
	Payment      PaymentKind    `json:"payment"`
	PaymentToken common.Address `json:"paymentToken"`
	AmountPaid   *big.Int       `json:"amountPaid"`
	UsdValue     *big.Int       `json:"usdValue"`
	TokensBought *big.Int       `json:"tokensBought"`
	Staked       bool           `json:"staked"`
	Referrer     common.Address `json:"referrer,omitempty"`
	Events       []Event        `json:"events"`
}
