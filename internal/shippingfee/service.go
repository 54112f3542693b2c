package shippingfee

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/growersmarket/farmdirect-backend/pkg/db/models"
	"github.com/growersmarket/farmdirect-backend/pkg/enums"
	pkgerrors "github.com/growersmarket/farmdirect-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor identifies the authenticated caller of a rule operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.MemberRole
}

// Quote is the priced outcome of a fee computation. RuleID is nil when the
// fixed fallback fee applied because no rule matched.
type Quote struct {
	FeeCents int
	RuleID   *uuid.UUID
}

// RuleInput carries the fields for creating or replacing a rule.
type RuleInput struct {
	Name                       string
	DeliveryAreaID             *uuid.UUID
	BaseFeeCents               int
	FreeShippingThresholdCents int
	ExtraFeePerKgCents         *decimal.Decimal
	Priority                   int
	Enabled                    bool
}

// Service prices shipments and manages the rule table.
type Service interface {
	ComputeFee(ctx context.Context, deliveryAreaID *uuid.UUID, orderAmountCents int, weightKg *decimal.Decimal) (Quote, error)
	ResolveRule(ctx context.Context, ruleID uuid.UUID) (*models.ShippingFeeRule, error)
	CreateRule(ctx context.Context, actor Actor, input RuleInput) (*models.ShippingFeeRule, error)
	UpdateRule(ctx context.Context, actor Actor, ruleID uuid.UUID, input RuleInput) (*models.ShippingFeeRule, error)
	SetRuleEnabled(ctx context.Context, actor Actor, ruleID uuid.UUID, enabled bool) error
	DeleteRule(ctx context.Context, actor Actor, ruleID uuid.UUID) error
	ListRules(ctx context.Context, actor Actor) ([]models.ShippingFeeRule, error)
}

type service struct {
	repo          Repository
	tx            txRunner
	fallbackCents int
}

// NewService builds a shipping fee service. fallbackCents is charged when no
// rule covers a shipment.
func NewService(repo Repository, tx txRunner, fallbackCents int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping fee repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if fallbackCents < 0 {
		return nil, fmt.Errorf("fallback fee cannot be negative")
	}
	return &service{repo: repo, tx: tx, fallbackCents: fallbackCents}, nil
}

// FeeForRule prices a shipment against a single rule. The free shipping
// threshold zeroes the whole fee, weight surcharge included.
func FeeForRule(rule *models.ShippingFeeRule, orderAmountCents int, weightKg *decimal.Decimal) int {
	if rule.FreeShippingThresholdCents > 0 && orderAmountCents >= rule.FreeShippingThresholdCents {
		return 0
	}
	fee := rule.BaseFeeCents
	if rule.ExtraFeePerKgCents != nil && weightKg != nil &&
		rule.ExtraFeePerKgCents.IsPositive() && weightKg.IsPositive() {
		fee += int(rule.ExtraFeePerKgCents.Mul(*weightKg).Round(0).IntPart())
	}
	return fee
}

func (s *service) ComputeFee(ctx context.Context, deliveryAreaID *uuid.UUID, orderAmountCents int, weightKg *decimal.Decimal) (Quote, error) {
	if orderAmountCents < 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "order amount cannot be negative")
	}

	rule, err := s.matchRule(ctx, deliveryAreaID)
	if err != nil {
		return Quote{}, err
	}
	if rule == nil {
		return Quote{FeeCents: s.fallbackCents}, nil
	}
	ruleID := rule.ID
	return Quote{FeeCents: FeeForRule(rule, orderAmountCents, weightKg), RuleID: &ruleID}, nil
}

// matchRule walks area scope then global scope. A nil return with nil error
// means no rule matched and the fallback fee applies.
func (s *service) matchRule(ctx context.Context, deliveryAreaID *uuid.UUID) (*models.ShippingFeeRule, error) {
	if deliveryAreaID != nil {
		rule, err := s.repo.FindBestForArea(ctx, deliveryAreaID)
		if err == nil {
			return rule, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match area rule")
		}
	}
	rule, err := s.repo.FindBestForArea(ctx, nil)
	if err == nil {
		return rule, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match global rule")
	}
	return nil, nil
}

func (s *service) ResolveRule(ctx context.Context, ruleID uuid.UUID) (*models.ShippingFeeRule, error) {
	if ruleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping fee rule id required")
	}
	rule, err := s.repo.FindByID(ctx, ruleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping fee rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping fee rule")
	}
	if !rule.Enabled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping fee rule is disabled")
	}
	return rule, nil
}

func (s *service) CreateRule(ctx context.Context, actor Actor, input RuleInput) (*models.ShippingFeeRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateRuleInput(input); err != nil {
		return nil, err
	}

	rule := &models.ShippingFeeRule{
		Name:                       input.Name,
		DeliveryAreaID:             input.DeliveryAreaID,
		BaseFeeCents:               input.BaseFeeCents,
		FreeShippingThresholdCents: input.FreeShippingThresholdCents,
		ExtraFeePerKgCents:         input.ExtraFeePerKgCents,
		Priority:                   input.Priority,
		Enabled:                    input.Enabled,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.Enabled {
			if err := checkScopeConflict(ctx, repo, input.DeliveryAreaID, input.Priority, nil); err != nil {
				return err
			}
		}
		if _, err := repo.Create(ctx, rule); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipping fee rule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, actor Actor, ruleID uuid.UUID, input RuleInput) (*models.ShippingFeeRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateRuleInput(input); err != nil {
		return nil, err
	}

	var updated *models.ShippingFeeRule
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, ruleID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipping fee rule not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping fee rule")
		}
		if input.Enabled {
			if err := checkScopeConflict(ctx, repo, input.DeliveryAreaID, input.Priority, &ruleID); err != nil {
				return err
			}
		}
		updates := map[string]any{
			"name":                          input.Name,
			"delivery_area_id":              input.DeliveryAreaID,
			"base_fee_cents":                input.BaseFeeCents,
			"free_shipping_threshold_cents": input.FreeShippingThresholdCents,
			"extra_fee_per_kg_cents":        input.ExtraFeePerKgCents,
			"priority":                      input.Priority,
			"enabled":                       input.Enabled,
		}
		if err := repo.Update(ctx, ruleID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping fee rule")
		}
		var err error
		updated, err = repo.FindByID(ctx, ruleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload shipping fee rule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) SetRuleEnabled(ctx context.Context, actor Actor, ruleID uuid.UUID, enabled bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rule, err := repo.FindByID(ctx, ruleID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipping fee rule not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping fee rule")
		}
		if rule.Enabled == enabled {
			return nil
		}
		if enabled {
			if err := checkScopeConflict(ctx, repo, rule.DeliveryAreaID, rule.Priority, &ruleID); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, ruleID, map[string]any{"enabled": enabled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipping fee rule")
		}
		return nil
	})
}

func (s *service) DeleteRule(ctx context.Context, actor Actor, ruleID uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, ruleID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "shipping fee rule not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping fee rule")
		}
		if err := repo.Delete(ctx, ruleID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete shipping fee rule")
		}
		return nil
	})
}

func (s *service) ListRules(ctx context.Context, actor Actor) ([]models.ShippingFeeRule, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shipping fee rules")
	}
	return rules, nil
}

func requireAdmin(actor Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != enums.MemberRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func validateRuleInput(input RuleInput) error {
	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rule name required")
	}
	if input.BaseFeeCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "base fee cannot be negative")
	}
	if input.FreeShippingThresholdCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "free shipping threshold cannot be negative")
	}
	if input.ExtraFeePerKgCents != nil && input.ExtraFeePerKgCents.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "per kg fee cannot be negative")
	}
	return nil
}

func checkScopeConflict(ctx context.Context, repo Repository, areaID *uuid.UUID, priority int, excludeID *uuid.UUID) error {
	existing, err := repo.FindEnabledConflict(ctx, areaID, priority, excludeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check rule conflict")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "enabled rule already exists for this scope and priority").
		WithDetails(map[string]any{"conflicting_rule_id": existing.ID})
}
