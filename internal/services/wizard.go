package services

import (
	"errors"
	"fmt"

	"github.com/quickshop/storefront/internal/domain"
	"github.com/quickshop/storefront/internal/validation"
)

// ErrStepBlocked indicates a forward wizard move failed its guard.
var ErrStepBlocked = errors.New("checkout wizard: step blocked")

// GuardError reports why a forward move was refused, carrying the per-field
// validation messages when the blocking guard is a form section.
type GuardError struct {
	From   domain.CheckoutStep
	To     domain.CheckoutStep
	Reason string
	Fields map[string]string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("checkout wizard: cannot move from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *GuardError) Unwrap() error { return ErrStepBlocked }

// Wizard sequences the checkout steps over a checkout store. Backward moves
// are always allowed; forward moves are guarded by the data the target step
// depends on. The confirmation step is reachable only through PlaceOrder.
type Wizard struct {
	store *CheckoutStore
}

// NewWizard wraps a checkout store in step-transition guards.
func NewWizard(store *CheckoutStore) (*Wizard, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: checkout store is required", ErrCheckoutInvalidInput)
	}
	return &Wizard{store: store}, nil
}

// Step returns the current wizard step.
func (w *Wizard) Step() domain.CheckoutStep { return w.store.Step() }

// Goto moves the wizard to the target step. Moving backward always succeeds;
// moving forward requires every intermediate guard to pass, so the shipping
// step cannot be skipped by jumping straight to review.
func (w *Wizard) Goto(target domain.CheckoutStep) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown step %q", ErrCheckoutInvalidInput, target)
	}

	current := w.store.Step()
	if target.Ordinal() <= current.Ordinal() {
		return w.store.setStep(target)
	}
	if target == domain.StepConfirmation {
		return &GuardError{From: current, To: target, Reason: "confirmation is reached by placing the order"}
	}

	state := w.store.State()
	for step := current; step.Ordinal() < target.Ordinal(); step = nextStep(step) {
		if err := w.guard(step, target, state); err != nil {
			return err
		}
	}
	return w.store.setStep(target)
}

// guard checks that the data captured on from is complete enough to leave it.
func (w *Wizard) guard(from, to domain.CheckoutStep, state CheckoutState) error {
	switch from {
	case domain.StepShipping:
		if state.ShippingAddress == nil {
			return &GuardError{From: from, To: to, Reason: "shipping address is required"}
		}
		errs := validation.ValidateShippingAddress(validation.ShippingAddressInput{
			FirstName:  state.ShippingAddress.FirstName,
			LastName:   state.ShippingAddress.LastName,
			Address1:   state.ShippingAddress.Address1,
			City:       state.ShippingAddress.City,
			State:      state.ShippingAddress.State,
			PostalCode: state.ShippingAddress.PostalCode,
			Country:    state.ShippingAddress.Country,
			Phone:      state.ShippingAddress.Phone,
			Email:      state.ShippingAddress.Email,
		})
		if len(errs) > 0 {
			return &GuardError{From: from, To: to, Reason: "shipping address is incomplete", Fields: errs}
		}
		if state.SelectedShippingOption == nil {
			return &GuardError{From: from, To: to, Reason: "shipping option is required"}
		}
	case domain.StepPayment:
		if state.SelectedPaymentMethod == nil {
			return &GuardError{From: from, To: to, Reason: "payment method is required"}
		}
		if state.SelectedPaymentMethod.Type == domain.PaymentTypeCreditCard {
			errs := validation.ValidateCard(validation.CardInput{
				CardNumber: state.CardDetails.CardNumber,
				CardHolder: state.CardDetails.CardHolder,
				ExpiryDate: state.CardDetails.ExpiryDate,
				CVV:        state.CardDetails.CVV,
			})
			if len(errs) > 0 {
				return &GuardError{From: from, To: to, Reason: "card details are incomplete", Fields: errs}
			}
		}
	}
	return nil
}

func nextStep(step domain.CheckoutStep) domain.CheckoutStep {
	switch step {
	case domain.StepShipping:
		return domain.StepPayment
	case domain.StepPayment:
		return domain.StepReview
	default:
		return domain.StepConfirmation
	}
}
