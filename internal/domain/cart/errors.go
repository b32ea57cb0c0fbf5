package cart

import "github.com/go-faster/errors"

// Error kinds. Every specific error below matches exactly one kind through
// errors.Is.
var (
	// ErrInvalidArgument is the kind of errors caused by bad input values.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is the kind of errors caused by calling an operation
	// the cart is not ready for.
	ErrInvalidState = errors.New("invalid state")
	// ErrDomainRule is the kind of errors caused by business rule violations.
	ErrDomainRule = errors.New("domain rule violation")
)

var (
	ErrNegativeAmount   = kindErr(ErrInvalidArgument, "amount cannot be negative")
	ErrInvalidQuantity  = kindErr(ErrInvalidArgument, "quantity must be greater than 0")
	ErrCurrencyMismatch = kindErr(ErrInvalidArgument, "currency does not match cart currency")
	ErrUnknownSKU       = kindErr(ErrInvalidArgument, "unknown sku")

	ErrNoShippingOptionSelected   = kindErr(ErrInvalidState, "no shipping option selected")
	ErrShippingPricingUnavailable = kindErr(ErrInvalidState, "shipping pricing unavailable")
	ErrItemNotFound               = kindErr(ErrInvalidState, "item not found")
	ErrBundleCycle                = kindErr(ErrInvalidState, "bundle structure contains a cycle")
	ErrNoCouponResolver           = kindErr(ErrInvalidState, "cart has no coupon resolver")

	ErrGiftCertificateCurrencyMismatch = kindErr(ErrDomainRule, "gift certificate currency does not match cart currency")
	ErrGiftCertificateZeroBalance      = kindErr(ErrDomainRule, "gift certificate has no balance")
)

type kindError struct {
	kind error
	msg  string
}

func kindErr(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }
