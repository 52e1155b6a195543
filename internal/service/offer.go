package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/curryleaf/orders/internal/domain/models"
	"github.com/curryleaf/orders/internal/storage"
)

// Offer failure reasons. A failed validation is a normal outcome the caller
// branches on, not an error.
const (
	OfferReasonNotFound       = "not_found"
	OfferReasonInactive       = "inactive"
	OfferReasonNotStarted     = "not_started"
	OfferReasonExpired        = "expired"
	OfferReasonBelowMinimum   = "below_minimum"
	OfferReasonFirstOrderOnly = "first_order_only"
	OfferReasonUsageExhausted = "usage_exhausted"
	OfferReasonNotApplicable  = "not_applicable"
)

// OfferResult is the structured outcome of validating a code against a cart.
type OfferResult struct {
	Valid        bool
	Reason       string
	Discount     decimal.Decimal
	FreeDelivery bool
	Offer        *models.Offer
}

// OfferValidator checks a discount code against order contents and the
// acting user's history, and computes the discount amount.
type OfferValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, categoryIDs, itemIDs []int64, userID int64) (*OfferResult, error)
}

type offerService struct {
	log       *slog.Logger
	offerRepo storage.OfferStorage
	orderRepo storage.OrderStorage
	now       func() time.Time
}

func NewOfferService(log *slog.Logger, offerRepo storage.OfferStorage, orderRepo storage.OrderStorage) OfferValidator {
	return &offerService{
		log:       log,
		offerRepo: offerRepo,
		orderRepo: orderRepo,
		now:       time.Now,
	}
}

func invalid(reason string) *OfferResult {
	return &OfferResult{Valid: false, Reason: reason, Discount: decimal.Zero}
}

// Validate runs the checks in a fixed order: existence, active flag,
// validity window, minimum order value, first-order rule, per-user usage
// cap, then the cart restriction. The returned error is reserved for
// infrastructure failures.
func (s *offerService) Validate(ctx context.Context, code string, subtotal decimal.Decimal, categoryIDs, itemIDs []int64, userID int64) (*OfferResult, error) {
	const op = "service.OfferService.Validate"
	logger := s.log.With(slog.String("op", op), slog.String("code", code), slog.Int64("userID", userID))

	offer, err := s.offerRepo.GetOfferByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrOfferNotFound) {
			return invalid(OfferReasonNotFound), nil
		}
		return nil, fmt.Errorf("%s: failed to get offer: %w", op, err)
	}

	if !offer.Active {
		return invalid(OfferReasonInactive), nil
	}

	now := s.now()
	if offer.ValidFrom != nil && now.Before(*offer.ValidFrom) {
		return invalid(OfferReasonNotStarted), nil
	}
	if offer.ValidTo != nil && now.After(*offer.ValidTo) {
		return invalid(OfferReasonExpired), nil
	}

	if offer.MinOrderValue != nil && subtotal.LessThan(*offer.MinOrderValue) {
		return invalid(OfferReasonBelowMinimum), nil
	}

	if offer.FirstOrderOnly {
		count, err := s.orderRepo.CountNonCancelledByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check order history: %w", op, err)
		}
		if count > 0 {
			return invalid(OfferReasonFirstOrderOnly), nil
		}
	}

	if offer.MaxUsesPerUser != nil {
		used, err := s.orderRepo.CountOfferRedemptions(ctx, offer.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check offer usage: %w", op, err)
		}
		if used >= *offer.MaxUsesPerUser {
			return invalid(OfferReasonUsageExhausted), nil
		}
	}

	if !appliesToCart(offer, categoryIDs, itemIDs) {
		return invalid(OfferReasonNotApplicable), nil
	}

	result := &OfferResult{Valid: true, Offer: offer, Discount: decimal.Zero}
	switch offer.DiscountType {
	case models.DiscountPercentage:
		discount := subtotal.Mul(offer.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
		if offer.MaxDiscount != nil && discount.GreaterThan(*offer.MaxDiscount) {
			discount = *offer.MaxDiscount
		}
		result.Discount = discount
	case models.DiscountFlat:
		result.Discount = decimal.Min(offer.DiscountValue, subtotal)
	case models.DiscountFreeDelivery:
		result.FreeDelivery = true
	default:
		logger.Warn("unknown discount type", slog.String("type", string(offer.DiscountType)))
		return invalid(OfferReasonNotApplicable), nil
	}

	logger.Info("offer validated", slog.String("discount", result.Discount.String()))
	return result, nil
}

// appliesToCart checks the offer's category/item restriction against the
// cart. An offer with no restriction applies to everything; a restricted
// offer needs at least one matching line.
func appliesToCart(offer *models.Offer, categoryIDs, itemIDs []int64) bool {
	if len(offer.CategoryIDs) == 0 && len(offer.ItemIDs) == 0 {
		return true
	}
	for _, want := range offer.CategoryIDs {
		for _, have := range categoryIDs {
			if want == have {
				return true
			}
		}
	}
	for _, want := range offer.ItemIDs {
		for _, have := range itemIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}
