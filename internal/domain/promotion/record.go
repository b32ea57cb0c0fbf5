// Package promotion records the outcome of promotion rule evaluation against
// a cart: which rule action discounted what, by how much, and whether the
// discount survived conflict resolution.
package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the discount record variants.
type Kind string

const (
	// KindItem is a discount applied to a single line item.
	KindItem Kind = "item"
	// KindSubtotal is a discount applied to the cart subtotal.
	KindSubtotal Kind = "subtotal"
	// KindShipping is a discount applied to one shipping option.
	KindShipping Kind = "shipping"
)

// Valid reports whether k names a known record variant.
func (k Kind) Valid() bool {
	switch k {
	case KindItem, KindSubtotal, KindShipping:
		return true
	default:
		return false
	}
}

var (
	// ErrRecordKindMismatch is returned when a record would replace a
	// record of a different variant stored under the same key.
	ErrRecordKindMismatch = errors.New("discount record kind mismatch")
	// ErrInvalidRecord is returned for nil records or negative amounts.
	ErrInvalidRecord = errors.New("invalid discount record")
	// ErrRecordNotFound is returned when no record exists for a key.
	ErrRecordNotFound = errors.New("discount record not found")
	// ErrInvalidDiscountQuantity is returned for actions that count coupon
	// uses per quantity but declare a non-positive quantity per coupon.
	ErrInvalidDiscountQuantity = errors.New("discount quantity per coupon must be positive")
)

// Key identifies a record by the rule and action that produced it.
type Key struct {
	RuleID   int64
	ActionID int64
}

// CartView is the part of a cart that coupon-use accounting depends on.
type CartView interface {
	// SelectedShippingOption returns the selected option code, or "" when
	// none is selected.
	SelectedShippingOption() string
}

// Action describes a promotion rule action as far as coupon accounting is
// concerned.
type Action struct {
	ID     int64
	RuleID int64
	Kind   Kind
	// SinglePerCart actions consume one coupon use regardless of the
	// quantity they discounted.
	SinglePerCart bool
	// DiscountQuantityPerCoupon is how many discounted units one coupon use
	// covers.
	DiscountQuantityPerCoupon int
	// ShippingOptionCode is the option a shipping action targets.
	ShippingOptionCode string
}

// Key returns the record key this action writes to.
func (a Action) Key() Key {
	return Key{RuleID: a.RuleID, ActionID: a.ID}
}

// Validate checks the action's accounting configuration.
func (a Action) Validate() error {
	if !a.Kind.Valid() {
		return errors.Errorf("unsupported action kind: %q", a.Kind)
	}
	if a.Kind == KindItem && !a.SinglePerCart && a.DiscountQuantityPerCoupon <= 0 {
		return errors.Wrapf(ErrInvalidDiscountQuantity, "action %d", a.ID)
	}
	if a.Kind == KindShipping && a.ShippingOptionCode == "" {
		return errors.Errorf("shipping action %d has no shipping option code", a.ID)
	}
	return nil
}

// DiscountRecord is a fact of the form "rule R, action A discounted the
// cart by amount X". The set of variants is closed: ItemDiscountRecord,
// SubtotalDiscountRecord and ShippingDiscountRecord.
type DiscountRecord interface {
	Key() Key
	Kind() Kind
	DiscountAmount() decimal.Decimal
	Superseded() bool
	// CouponUsesRequired returns how many coupon uses this discount
	// consumes when produced by action on cart.
	CouponUsesRequired(action Action, cart CartView) int

	base() *record
	clone() DiscountRecord
	sameFacts(other DiscountRecord) bool
}

type record struct {
	key        Key
	amount     decimal.Decimal
	superseded bool
}

func (r *record) Key() Key                        { return r.key }
func (r *record) DiscountAmount() decimal.Decimal { return r.amount }
func (r *record) Superseded() bool                { return r.superseded }

// MarkSuperseded flags the record as having lost conflict resolution.
func (r *record) MarkSuperseded() { r.superseded = true }

func (r *record) base() *record { return r }

func (r *record) sameBase(o *record) bool {
	return r.key == o.key && r.amount.Equal(o.amount)
}

// ItemDiscountRecord records a discount on one line item.
type ItemDiscountRecord struct {
	record
	itemGUID string
	quantity int
}

// NewItemDiscountRecord returns a live item discount record.
func NewItemDiscountRecord(ruleID, actionID int64, itemGUID string, amount decimal.Decimal, quantityAppliedTo int) *ItemDiscountRecord {
	return &ItemDiscountRecord{
		record:   record{key: Key{RuleID: ruleID, ActionID: actionID}, amount: amount},
		itemGUID: itemGUID,
		quantity: quantityAppliedTo,
	}
}

func (r *ItemDiscountRecord) Kind() Kind { return KindItem }

// ItemGUID returns the GUID of the discounted line item.
func (r *ItemDiscountRecord) ItemGUID() string { return r.itemGUID }

// QuantityAppliedTo returns how many units the discount has been applied to.
func (r *ItemDiscountRecord) QuantityAppliedTo() int { return r.quantity }

// CouponUsesRequired returns 1 for single-per-cart actions and
// ceil(quantity / DiscountQuantityPerCoupon) otherwise.
func (r *ItemDiscountRecord) CouponUsesRequired(action Action, _ CartView) int {
	if r.superseded {
		return 0
	}
	if action.SinglePerCart {
		return 1
	}
	per := action.DiscountQuantityPerCoupon
	if per <= 0 {
		// Rejected by Action.Validate.
		per = 1
	}
	q, rem := decimal.NewFromInt(int64(r.quantity)).QuoRem(decimal.NewFromInt(int64(per)), 0)
	if rem.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	return int(q.IntPart())
}

func (r *ItemDiscountRecord) clone() DiscountRecord {
	c := *r
	return &c
}

func (r *ItemDiscountRecord) sameFacts(other DiscountRecord) bool {
	o, ok := other.(*ItemDiscountRecord)
	return ok && r.sameBase(&o.record) && r.itemGUID == o.itemGUID && r.quantity == o.quantity
}

// SubtotalDiscountRecord records a discount on the cart subtotal.
type SubtotalDiscountRecord struct {
	record
}

// NewSubtotalDiscountRecord returns a live subtotal discount record.
func NewSubtotalDiscountRecord(ruleID, actionID int64, amount decimal.Decimal) *SubtotalDiscountRecord {
	return &SubtotalDiscountRecord{
		record: record{key: Key{RuleID: ruleID, ActionID: actionID}, amount: amount},
	}
}

func (r *SubtotalDiscountRecord) Kind() Kind { return KindSubtotal }

// CouponUsesRequired returns 1 unless the record is superseded.
func (r *SubtotalDiscountRecord) CouponUsesRequired(Action, CartView) int {
	if r.superseded {
		return 0
	}
	return 1
}

func (r *SubtotalDiscountRecord) clone() DiscountRecord {
	c := *r
	return &c
}

func (r *SubtotalDiscountRecord) sameFacts(other DiscountRecord) bool {
	o, ok := other.(*SubtotalDiscountRecord)
	return ok && r.sameBase(&o.record)
}

// ShippingDiscountRecord records a discount on one shipping option.
type ShippingDiscountRecord struct {
	record
	optionCode string
}

// NewShippingDiscountRecord returns a live shipping discount record.
func NewShippingDiscountRecord(ruleID, actionID int64, optionCode string, amount decimal.Decimal) *ShippingDiscountRecord {
	return &ShippingDiscountRecord{
		record:     record{key: Key{RuleID: ruleID, ActionID: actionID}, amount: amount},
		optionCode: optionCode,
	}
}

func (r *ShippingDiscountRecord) Kind() Kind { return KindShipping }

// ShippingOptionCode returns the discounted shipping option.
func (r *ShippingDiscountRecord) ShippingOptionCode() string { return r.optionCode }

// CouponUsesRequired returns 1 only when the action's shipping option is the
// one currently selected on the cart.
func (r *ShippingDiscountRecord) CouponUsesRequired(action Action, cart CartView) int {
	if r.superseded {
		return 0
	}
	selected := ""
	if cart != nil {
		selected = cart.SelectedShippingOption()
	}
	if selected == "" || action.ShippingOptionCode != selected {
		return 0
	}
	return 1
}

func (r *ShippingDiscountRecord) clone() DiscountRecord {
	c := *r
	return &c
}

func (r *ShippingDiscountRecord) sameFacts(other DiscountRecord) bool {
	o, ok := other.(*ShippingDiscountRecord)
	return ok && r.sameBase(&o.record) && r.optionCode == o.optionCode
}

// SameFacts reports whether a and b are the same variant with the same key,
// amount and variant-specific fields. The superseded flag is not compared.
func SameFacts(a, b DiscountRecord) bool {
	if a == nil || b == nil {
		return false
	}
	return a.sameFacts(b)
}
