package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pricing/internal/domain/coupon"
	"github.com/xenking/kart-pricing/internal/domain/promotion"
)

const (
	getCouponByCodeSQL = `SELECT c.code, c.suspended, c.created_at,
		cc.rule_code, cc.usage_type, cc.usage_limit, cc.limited_duration, cc.duration_days
		FROM coupons c JOIN coupon_configs cc ON cc.rule_code = c.rule_code
		WHERE UPPER(c.code) = UPPER($1)`

	getCouponUsageSQL = `SELECT code, customer_email, use_count, active_in_cart, created_at
		FROM coupon_usages WHERE code = $1 AND customer_email = $2`

	saveCouponUsageSQL = `INSERT INTO coupon_usages (code, customer_email, use_count, active_in_cart, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code, customer_email) DO UPDATE SET
			use_count = EXCLUDED.use_count,
			active_in_cart = EXCLUDED.active_in_cart`

	getRuleByCodeSQL = `SELECT id, code, store_code, limited_use_condition, start_date, end_date
		FROM promotion_rules WHERE UPPER(code) = UPPER($1)`

	getRuleActionsSQL = `SELECT action_id, rule_id, kind, single_per_cart, discount_quantity_per_coupon, shipping_option_code
		FROM rule_actions WHERE rule_id = $1 ORDER BY action_id`

	upsertRuleSQL = `INSERT INTO promotion_rules (id, code, store_code, limited_use_condition, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			store_code = EXCLUDED.store_code,
			limited_use_condition = EXCLUDED.limited_use_condition,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date`

	deleteRuleActionsSQL = `DELETE FROM rule_actions WHERE rule_id = $1`

	insertRuleActionSQL = `INSERT INTO rule_actions (rule_id, action_id, kind, single_per_cart, discount_quantity_per_coupon, shipping_option_code)
		VALUES ($1, $2, $3, $4, $5, $6)`

	upsertCouponConfigSQL = `INSERT INTO coupon_configs (rule_code, usage_type, usage_limit, limited_duration, duration_days)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rule_code) DO UPDATE SET
			usage_type = EXCLUDED.usage_type,
			usage_limit = EXCLUDED.usage_limit,
			limited_duration = EXCLUDED.limited_duration,
			duration_days = EXCLUDED.duration_days`

	insertCouponSQL = `INSERT INTO coupons (code, rule_code, suspended, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE UPPER(code) = UPPER($1))`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon and its config by code (case-insensitive).
// Returns coupon.ErrInvalidCoupon when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// FindUsage returns the usage of a coupon by a shopper. Usages of
// per-coupon limited coupons are stored under the empty email.
func (r *CouponRepository) FindUsage(ctx context.Context, code, email string) (*coupon.Usage, error) {
	rows, err := r.pool.Query(ctx, getCouponUsageSQL, code, email)
	if err != nil {
		return nil, fmt.Errorf("finding usage of coupon %q: %w", code, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUsage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrUsageNotFound
		}
		return nil, fmt.Errorf("finding usage of coupon %q: %w", code, err)
	}
	return &u, nil
}

// SaveUsage creates or updates a usage.
func (r *CouponRepository) SaveUsage(ctx context.Context, u coupon.Usage) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, saveCouponUsageSQL, u.Code, u.CustomerEmail, u.UseCount, u.ActiveInCart, createdAt)
	if err != nil {
		return fmt.Errorf("saving usage of coupon %q: %w", u.Code, err)
	}
	return nil
}

// RuleByCode returns a rule with its actions. Returns coupon.ErrRuleNotFound
// when no rule has the code.
func (r *CouponRepository) RuleByCode(ctx context.Context, ruleCode string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getRuleByCodeSQL, ruleCode)
	if err != nil {
		return nil, fmt.Errorf("finding rule %q: %w", ruleCode, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrRuleNotFound
		}
		return nil, fmt.Errorf("finding rule %q: %w", ruleCode, err)
	}

	rows, err = r.pool.Query(ctx, getRuleActionsSQL, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("listing actions of rule %q: %w", ruleCode, err)
	}
	rule.Actions, err = pgx.CollectRows(rows, scanAction)
	if err != nil {
		return nil, fmt.Errorf("listing actions of rule %q: %w", ruleCode, err)
	}
	return &rule, nil
}

// UpsertRule creates or replaces a rule and its actions in one transaction.
func (r *CouponRepository) UpsertRule(ctx context.Context, rule coupon.Rule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning rule %q transaction: %w", rule.Code, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, upsertRuleSQL,
		rule.ID, rule.Code, rule.StoreCode, rule.LimitedUseCondition, rule.StartDate, rule.EndDate,
	); err != nil {
		return fmt.Errorf("upserting rule %q: %w", rule.Code, err)
	}
	if _, err := tx.Exec(ctx, deleteRuleActionsSQL, rule.ID); err != nil {
		return fmt.Errorf("clearing actions of rule %q: %w", rule.Code, err)
	}
	for _, a := range rule.Actions {
		if _, err := tx.Exec(ctx, insertRuleActionSQL,
			rule.ID, a.ID, string(a.Kind), a.SinglePerCart, a.DiscountQuantityPerCoupon, a.ShippingOptionCode,
		); err != nil {
			return fmt.Errorf("inserting action %d of rule %q: %w", a.ID, rule.Code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rule %q: %w", rule.Code, err)
	}
	return nil
}

// UpsertConfig creates or replaces the coupon config of a rule.
func (r *CouponRepository) UpsertConfig(ctx context.Context, cfg coupon.Config) error {
	_, err := r.pool.Exec(ctx, upsertCouponConfigSQL,
		cfg.RuleCode, string(cfg.UsageType), cfg.UsageLimit, cfg.LimitedDuration, cfg.DurationDays,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon config %q: %w", cfg.RuleCode, err)
	}
	return nil
}

// InsertCoupons adds coupons in a single batch. Codes that already exist are
// left unchanged. It returns the number of coupons inserted.
func (r *CouponRepository) InsertCoupons(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	if len(coupons) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range coupons {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		batch.Queue(insertCouponSQL, c.Code, c.Config.RuleCode, c.Suspended, createdAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var inserted int64
	for _, c := range coupons {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("inserting coupon %q: %w", c.Code, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// Exists reports whether a coupon with the code exists (case-insensitive).
func (r *CouponRepository) Exists(ctx context.Context, code string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, couponExistsSQL, code).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking coupon %q: %w", code, err)
	}
	return ok, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c         coupon.Coupon
		usageType string
	)
	err := row.Scan(
		&c.Code, &c.Suspended, &c.CreatedAt,
		&c.Config.RuleCode, &usageType, &c.Config.UsageLimit, &c.Config.LimitedDuration, &c.Config.DurationDays,
	)
	c.Config.UsageType = coupon.UsageType(usageType)
	return c, err
}

func scanUsage(row pgx.CollectableRow) (coupon.Usage, error) {
	var u coupon.Usage
	err := row.Scan(&u.Code, &u.CustomerEmail, &u.UseCount, &u.ActiveInCart, &u.CreatedAt)
	return u, err
}

func scanRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var rule coupon.Rule
	err := row.Scan(&rule.ID, &rule.Code, &rule.StoreCode, &rule.LimitedUseCondition, &rule.StartDate, &rule.EndDate)
	return rule, err
}

func scanAction(row pgx.CollectableRow) (promotion.Action, error) {
	var (
		a    promotion.Action
		kind string
	)
	err := row.Scan(&a.ID, &a.RuleID, &kind, &a.SinglePerCart, &a.DiscountQuantityPerCoupon, &a.ShippingOptionCode)
	a.Kind = promotion.Kind(kind)
	return a, err
}
