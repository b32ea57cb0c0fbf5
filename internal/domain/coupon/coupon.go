// Package coupon resolves promotion codes to the rules they unlock and
// tracks how often limited-use coupons have been used.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-pricing/internal/domain/promotion"
)

// UsageType enumerates how coupon usage limits are counted.
type UsageType string

const (
	// LimitPerCoupon counts uses of the coupon across all shoppers.
	LimitPerCoupon UsageType = "LIMIT_PER_COUPON"
	// LimitPerAnyUser counts uses per shopper; any registered shopper may
	// use the coupon.
	LimitPerAnyUser UsageType = "LIMIT_PER_ANY_USER"
	// LimitPerSpecifiedUser counts uses per shopper; only shoppers the
	// coupon was issued to may use it.
	LimitPerSpecifiedUser UsageType = "LIMIT_PER_SPECIFIED_USER"
)

// Valid reports whether t is a known usage type.
func (t UsageType) Valid() bool {
	switch t {
	case LimitPerCoupon, LimitPerAnyUser, LimitPerSpecifiedUser:
		return true
	default:
		return false
	}
}

// PerUser reports whether usage is counted per shopper.
func (t UsageType) PerUser() bool {
	return t == LimitPerAnyUser || t == LimitPerSpecifiedUser
}

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or may
	// not be used by the shopper.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponSuspended is returned for coupons disabled by an operator.
	ErrCouponSuspended = errors.New("coupon suspended")
	// ErrCouponWrongStore is returned when the coupon's rule belongs to
	// another store.
	ErrCouponWrongStore = errors.New("coupon not valid in this store")
	// ErrRuleNotFound is returned when a coupon references an unknown rule.
	ErrRuleNotFound = errors.New("promotion rule not found")
	// ErrUsageNotFound is returned when no usage has been recorded yet.
	ErrUsageNotFound = errors.New("coupon usage not found")
)

// IsRejected reports whether err means the coupon cannot be used, as
// opposed to a failure to find out.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidCoupon) ||
		errors.Is(err, ErrCouponExpired) ||
		errors.Is(err, ErrCouponUsageLimitReached) ||
		errors.Is(err, ErrCouponSuspended) ||
		errors.Is(err, ErrCouponWrongStore)
}

// Config is the usage policy shared by all coupons of a rule.
type Config struct {
	RuleCode  string
	UsageType UsageType
	// UsageLimit is the number of uses allowed; zero means unlimited.
	UsageLimit int
	// LimitedDuration coupons expire DurationDays after first use.
	LimitedDuration bool
	DurationDays    int
}

// Coupon is a single promotion code.
type Coupon struct {
	Code      string
	Config    Config
	Suspended bool
	CreatedAt time.Time
}

// Usage counts the uses of a coupon, per shopper for per-user coupons.
type Usage struct {
	Code string
	// CustomerEmail is empty for LimitPerCoupon usages.
	CustomerEmail string
	UseCount      int
	ActiveInCart  bool
	CreatedAt     time.Time
}

// Rule is a promotion rule as far as coupon handling is concerned.
type Rule struct {
	ID        int64
	Code      string
	StoreCode string
	// LimitedUseCondition rules fire only for carts holding one of the
	// rule's coupons.
	LimitedUseCondition bool
	StartDate           *time.Time
	EndDate             *time.Time
	Actions             []promotion.Action
}

// Active reports whether now lies within the rule's validity window.
func (r *Rule) Active(now time.Time) bool {
	if r.StartDate != nil && now.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil && now.After(*r.EndDate) {
		return false
	}
	return true
}

// Repository provides lookup and mutation of coupons, their usages and the
// rules they unlock.
type Repository interface {
	// FindByCode looks a coupon up case-insensitively.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	FindUsage(ctx context.Context, code, email string) (*Usage, error)
	SaveUsage(ctx context.Context, u Usage) error
	RuleByCode(ctx context.Context, ruleCode string) (*Rule, error)
}

// usageEmail returns the email usages of c are keyed by.
func usageEmail(c *Coupon, email string) string {
	if c.Config.UsageType.PerUser() {
		return email
	}
	return ""
}
