package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// UseRequest describes a shopper trying to use a coupon code.
type UseRequest struct {
	Code         string
	StoreCode    string
	ShopperEmail string
	Anonymous    bool
}

// Resolution is a validated coupon together with the rule it unlocks.
type Resolution struct {
	Coupon *Coupon
	Rule   *Rule
	// Usage is nil when the shopper has not used the coupon yet.
	Usage *Usage
}

// Validator checks whether a coupon may be used.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate looks up the coupon and its rule, then checks suspension, store,
// validity window and usage limits.
func (v *Validator) Validate(ctx context.Context, req UseRequest) (*Resolution, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if c.Suspended {
		return nil, ErrCouponSuspended
	}

	rule, err := v.repo.RuleByCode(ctx, c.Config.RuleCode)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup rule")
	}
	if rule.StoreCode != "" && rule.StoreCode != req.StoreCode {
		return nil, ErrCouponWrongStore
	}

	now := v.now()
	if !rule.Active(now) {
		return nil, ErrCouponExpired
	}

	perUser := c.Config.UsageType.PerUser()
	if perUser && (req.Anonymous || req.ShopperEmail == "") {
		return nil, ErrInvalidCoupon
	}

	usage, err := v.repo.FindUsage(ctx, c.Code, usageEmail(c, req.ShopperEmail))
	switch {
	case errors.Is(err, ErrUsageNotFound):
		usage = nil
	case err != nil:
		return nil, errors.Wrap(err, "lookup coupon usage")
	}

	if usage == nil {
		if c.Config.UsageType == LimitPerSpecifiedUser {
			return nil, ErrInvalidCoupon
		}
	} else {
		if c.Config.UsageLimit > 0 && usage.UseCount >= c.Config.UsageLimit {
			return nil, ErrCouponUsageLimitReached
		}
		if c.Config.LimitedDuration && !usage.CreatedAt.IsZero() {
			expires := usage.CreatedAt.AddDate(0, 0, c.Config.DurationDays)
			if now.After(expires) {
				return nil, ErrCouponExpired
			}
		}
	}

	return &Resolution{Coupon: c, Rule: rule, Usage: usage}, nil
}
