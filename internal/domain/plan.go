package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Plan is an investment tier with inclusive principal bounds and a daily rate.
// A nil MaxPrincipal means the tier is unbounded.
type Plan struct {
	ID           string
	Name         string
	MinPrincipal decimal.Decimal
	MaxPrincipal *decimal.Decimal
	DailyRate    decimal.Decimal
}

// Contains reports whether amount lies within the plan bounds.
func (p Plan) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(p.MinPrincipal) {
		return false
	}
	return p.MaxPrincipal == nil || amount.LessThanOrEqual(*p.MaxPrincipal)
}

// DailyInterest returns the simple daily interest on principal.
func (p Plan) DailyInterest(principal decimal.Decimal) decimal.Decimal {
	return principal.Mul(p.DailyRate).Round(InterestScale)
}

// InterestScale is the number of decimal places interest is rounded to.
const InterestScale = 8

// PlanCatalog is the static, ordered set of plans.
type PlanCatalog struct {
	plans []Plan
	byID  map[string]Plan
}

// NewPlanCatalog validates plans and builds a catalog preserving their order.
func NewPlanCatalog(plans []Plan) (*PlanCatalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plans defined", ErrInvalidPlanCatalog)
	}

	c := &PlanCatalog{
		plans: make([]Plan, 0, len(plans)),
		byID:  make(map[string]Plan, len(plans)),
	}

	one := decimal.NewFromInt(1)
	for _, p := range plans {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: plan id is empty", ErrInvalidPlanCatalog)
		case p.MinPrincipal.IsNegative():
			return nil, fmt.Errorf("%w: plan %s has negative minimum", ErrInvalidPlanCatalog, p.ID)
		case p.MaxPrincipal != nil && p.MaxPrincipal.LessThan(p.MinPrincipal):
			return nil, fmt.Errorf("%w: plan %s maximum below minimum", ErrInvalidPlanCatalog, p.ID)
		case !p.DailyRate.IsPositive() || p.DailyRate.GreaterThan(one):
			return nil, fmt.Errorf("%w: plan %s daily rate must be in (0, 1]", ErrInvalidPlanCatalog, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan id %s", ErrInvalidPlanCatalog, p.ID)
		}
		c.plans = append(c.plans, p)
		c.byID[p.ID] = p
	}

	return c, nil
}

// DefaultPlanCatalog returns the built-in tiers.
func DefaultPlanCatalog() *PlanCatalog {
	bound := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	c, err := NewPlanCatalog([]Plan{
		{ID: "basic", Name: "Basic", MinPrincipal: decimal.NewFromInt(50), MaxPrincipal: bound("999.99"), DailyRate: decimal.RequireFromString("0.10")},
		{ID: "silver", Name: "Silver", MinPrincipal: decimal.NewFromInt(1000), MaxPrincipal: bound("4999.99"), DailyRate: decimal.RequireFromString("0.12")},
		{ID: "gold", Name: "Gold", MinPrincipal: decimal.NewFromInt(5000), MaxPrincipal: bound("19999.99"), DailyRate: decimal.RequireFromString("0.15")},
		{ID: "platinum", Name: "Platinum", MinPrincipal: decimal.NewFromInt(20000), DailyRate: decimal.RequireFromString("0.20")},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// FindByPrincipal returns the first plan whose bounds contain amount.
func (c *PlanCatalog) FindByPrincipal(amount decimal.Decimal) (Plan, bool) {
	for _, p := range c.plans {
		if p.Contains(amount) {
			return p, true
		}
	}
	return Plan{}, false
}

// FindByID returns the plan with the given id.
func (c *PlanCatalog) FindByID(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// Resolve looks up by id when one is given, falling back to a range match on amount.
func (c *PlanCatalog) Resolve(planID *string, amount decimal.Decimal) (Plan, error) {
	if planID != nil && *planID != "" {
		return c.FindByID(*planID)
	}
	p, ok := c.FindByPrincipal(amount)
	if !ok {
		return Plan{}, fmt.Errorf("%w: no plan for principal %s", ErrPlanNotFound, amount.String())
	}
	return p, nil
}

// Plans returns the catalog in declaration order.
func (c *PlanCatalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
