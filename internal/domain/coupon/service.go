package coupon

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Service resolves promotion codes for carts and records coupon uses once
// an order has been priced.
type Service struct {
	repo      Repository
	validator *Validator
	now       func() time.Time
}

// NewService creates a Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(repo),
		now:       time.Now,
	}
}

// Resolve validates a coupon code for the shopper and returns the rule it
// unlocks. Registered shoppers using a per-user coupon of a limited-use rule
// get a zero-count usage so that later uses are counted against them.
func (s *Service) Resolve(ctx context.Context, req UseRequest) (*Resolution, error) {
	lg := zctx.From(ctx)

	res, err := s.validator.Validate(ctx, req)
	if err != nil {
		if IsRejected(err) {
			lg.Debug("Coupon rejected", zap.String("code", req.Code), zap.Error(err))
		}
		return nil, err
	}

	if res.Rule.LimitedUseCondition && !req.Anonymous && req.ShopperEmail != "" &&
		res.Coupon.Config.UsageType == LimitPerAnyUser && res.Usage == nil {
		u := Usage{
			Code:          res.Coupon.Code,
			CustomerEmail: req.ShopperEmail,
			ActiveInCart:  true,
			CreatedAt:     s.now(),
		}
		if err := s.repo.SaveUsage(ctx, u); err != nil {
			return nil, errors.Wrap(err, "create coupon usage")
		}
		res.Usage = &u
		lg.Debug("Coupon usage created",
			zap.String("code", u.Code),
			zap.String("email", u.CustomerEmail),
		)
	}

	return res, nil
}

// RecordUses charges uses of rule to the cart's coupons for it. Each use
// goes to the most used coupon that still has room under its limit; new
// usages are created as needed. It returns the usages it saved.
func (s *Service) RecordUses(ctx context.Context, rule *Rule, codes []string, uses int, email string) ([]Usage, error) {
	if uses <= 0 || len(codes) == 0 {
		return nil, nil
	}
	lg := zctx.From(ctx)

	type candidate struct {
		coupon *Coupon
		usage  Usage
	}
	var candidates []*candidate
	for _, code := range codes {
		c, err := s.repo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrInvalidCoupon) {
				continue
			}
			return nil, errors.Wrapf(err, "lookup coupon %q", code)
		}
		if !strings.EqualFold(c.Config.RuleCode, rule.Code) {
			continue
		}
		u, err := s.repo.FindUsage(ctx, c.Code, usageEmail(c, email))
		switch {
		case errors.Is(err, ErrUsageNotFound):
			u = &Usage{Code: c.Code, CustomerEmail: usageEmail(c, email), CreatedAt: s.now()}
		case err != nil:
			return nil, errors.Wrapf(err, "lookup usage %q", c.Code)
		}
		candidates = append(candidates, &candidate{coupon: c, usage: *u})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	room := func(c *candidate) int {
		if c.coupon.Config.UsageLimit <= 0 {
			return uses
		}
		return c.coupon.Config.UsageLimit - c.usage.UseCount
	}

	changed := make(map[string]*candidate)
	remaining := uses
	for remaining > 0 {
		// Most used coupon with room first.
		slices.SortStableFunc(candidates, func(a, b *candidate) int {
			return b.usage.UseCount - a.usage.UseCount
		})
		idx := slices.IndexFunc(candidates, func(c *candidate) bool { return room(c) > 0 })
		if idx < 0 {
			return nil, errors.Wrapf(ErrCouponUsageLimitReached, "rule %q: %d uses left unallocated", rule.Code, remaining)
		}
		c := candidates[idx]
		n := min(remaining, room(c))
		c.usage.UseCount += n
		remaining -= n
		changed[c.coupon.Code] = c
	}

	saved := make([]Usage, 0, len(changed))
	for _, c := range candidates {
		if _, ok := changed[c.coupon.Code]; !ok {
			continue
		}
		if err := s.repo.SaveUsage(ctx, c.usage); err != nil {
			return nil, errors.Wrapf(err, "save usage %q", c.coupon.Code)
		}
		saved = append(saved, c.usage)
		lg.Info("Coupon uses recorded",
			zap.String("code", c.usage.Code),
			zap.Int("use_count", c.usage.UseCount),
		)
	}
	return saved, nil
}
