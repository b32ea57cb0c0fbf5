package cart

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
)

// CouponResolver validates promotion codes.
type CouponResolver interface {
	Resolve(ctx context.Context, req coupon.UseRequest) (*coupon.Resolution, error)
}

// ApplyPromotionCode validates code and, when it is usable, remembers it
// under the rule it unlocks. It reports whether the code is applied to the
// cart. Unusable coupons are reported as false without an error.
func (c *Cart) ApplyPromotionCode(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	if c.hasPromotionCode(code) {
		return true, nil
	}
	if c.coupons == nil {
		return false, ErrNoCouponResolver
	}

	res, err := c.coupons.Resolve(ctx, coupon.UseRequest{
		Code:         code,
		StoreCode:    c.storeCode,
		ShopperEmail: c.shopper.Email,
		Anonymous:    c.shopper.Anonymous,
	})
	if err != nil {
		if coupon.IsRejected(err) {
			c.lg.Debug("Promotion code rejected", zap.String("code", code), zap.Error(err))
			return false, nil
		}
		return false, errors.Wrapf(err, "resolve promotion code %q", code)
	}

	ruleID := res.Rule.ID
	c.promotionCodes[ruleID] = append(c.promotionCodes[ruleID], code)
	c.estimateMode = false
	c.lg.Debug("Promotion code applied", zap.String("code", code), zap.Int64("rule_id", ruleID))
	return true, nil
}

// ApplyPromotionCodes applies codes in order and reports whether any of them
// is applied.
func (c *Cart) ApplyPromotionCodes(ctx context.Context, codes []string) (bool, error) {
	var applied bool
	for _, code := range codes {
		ok, err := c.ApplyPromotionCode(ctx, code)
		if err != nil {
			return applied, err
		}
		applied = applied || ok
	}
	return applied, nil
}

// RemovePromotionCode forgets code, matching case-insensitively.
func (c *Cart) RemovePromotionCode(code string) bool {
	var removed bool
	for ruleID, codes := range c.promotionCodes {
		n := len(codes)
		codes = slices.DeleteFunc(codes, func(s string) bool { return strings.EqualFold(s, code) })
		if len(codes) == n {
			continue
		}
		removed = true
		if len(codes) == 0 {
			delete(c.promotionCodes, ruleID)
		} else {
			c.promotionCodes[ruleID] = codes
		}
	}
	if removed {
		c.estimateMode = false
	}
	return removed
}

// RemovePromotionCodes forgets every code and reports whether any was
// removed.
func (c *Cart) RemovePromotionCodes(codes []string) bool {
	var removed bool
	for _, code := range codes {
		if c.RemovePromotionCode(code) {
			removed = true
		}
	}
	return removed
}

// PromotionCodes returns every applied code, sorted case-insensitively.
func (c *Cart) PromotionCodes() []string {
	var out []string
	for _, codes := range c.promotionCodes {
		out = append(out, codes...)
	}
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return out
}

// PromotionCodesByRule returns a copy of the applied codes grouped by rule id.
func (c *Cart) PromotionCodesByRule() map[int64][]string {
	out := maps.Clone(c.promotionCodes)
	for id, codes := range out {
		out[id] = slices.Clone(codes)
	}
	return out
}

// HasLimitedUseCouponForRule reports whether a code unlocking ruleID is
// applied.
func (c *Cart) HasLimitedUseCouponForRule(ruleID int64) bool {
	return len(c.promotionCodes[ruleID]) > 0
}

// ApplyLimitedUsagePromotionRuleCode records that code triggered the
// limited-usage rule ruleID.
func (c *Cart) ApplyLimitedUsagePromotionRuleCode(code string, ruleID int64) {
	c.promotions.AddLimitedUsagePromotionRuleCode(code, ruleID)
}

// RemoveLimitedUsagePromotionRuleCode forgets a limited-usage rule code.
func (c *Cart) RemoveLimitedUsagePromotionRuleCode(code string) {
	c.promotions.RemoveLimitedUsagePromotionRuleCode(code)
}

func (c *Cart) hasPromotionCode(code string) bool {
	for _, codes := range c.promotionCodes {
		if slices.ContainsFunc(codes, func(s string) bool { return strings.EqualFold(s, code) }) {
			return true
		}
	}
	return false
}
