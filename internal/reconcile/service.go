// Package reconcile implements the claim lifecycle:
//
//	absent → added → pending → confirmed | rejected
//
// Every mutation of a student's payment record goes through here; the
// store's overwrite primitives are never exposed to callers directly.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campuspay/internal/model"
	"campuspay/internal/store"
)

var ErrInvalidInput = errors.New("invalid input")
var ErrAlreadyDecided = errors.New("claim already decided")

// PaymentStore is the slice of the claim ledger the state machine needs.
// *store.Database implements it; tests use an in-memory fake.
type PaymentStore interface {
	GetPayments(ctx context.Context, userID int64) (model.PaymentRecord, error)
	InsertClaim(ctx context.Context, userID int64, cat model.Category, c model.Claim) error
	RemoveClaim(ctx context.Context, userID int64, cat model.Category, ref string) error
	UpdateRecord(ctx context.Context, userID int64, mutate func(*model.PaymentRecord) error) error
	UpdateClaim(ctx context.Context, userID int64, cat model.Category, ref string, mutate func(*model.Claim) error) (model.Claim, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
}

type Service struct {
	payments PaymentStore
	events   EventStore
}

func NewService(payments PaymentStore, events EventStore) *Service {
	return &Service{payments: payments, events: events}
}

// SelectEvent creates an added claim for the event, or returns the
// existing claim unchanged when the student already selected it.
func (s *Service) SelectEvent(ctx context.Context, studentID int64, cat model.Category, ref model.RawID) (model.Claim, error) {
	if !cat.Valid() || ref == nil {
		return model.Claim{}, ErrInvalidInput
	}

	event, err := s.events.GetEvent(ctx, ref.String())
	if err != nil {
		return model.Claim{}, err
	}
	if event.Category != cat {
		return model.Claim{}, fmt.Errorf("%w: event %s is not %s", ErrInvalidInput, event.ID, cat)
	}

	claim := model.Claim{
		PlainRef: event.ID,
		Status:   model.StatusAdded,
	}
	err = s.payments.InsertClaim(ctx, studentID, cat, claim)
	if err != nil {
		if errors.Is(err, store.ErrClaimExists) {
			return s.findClaim(ctx, studentID, cat, event.ID)
		}
		return model.Claim{}, err
	}
	return claim, nil
}

// RemoveFromCart drops an optional claim that was never submitted.
// Pending and decided claims are not removable by the student.
func (s *Service) RemoveFromCart(ctx context.Context, studentID int64, ref string) error {
	if ref == "" {
		return ErrInvalidInput
	}
	return s.payments.RemoveClaim(ctx, studentID, model.CategoryOptional, ref)
}

// ProofItem is one basket entry of a proof submission.
type ProofItem struct {
	Ref        string `json:"id"`
	UTR        string `json:"utr"`
	Screenshot string `json:"screenshot"`
}

// SubmitProof transitions every added claim in the basket to pending in
// one atomic write. Submission is all-or-nothing: each item needs a
// non-empty transaction reference and screenshot, and the items must
// cover the basket exactly; anything less rejects the whole request
// before a single claim changes.
func (s *Service) SubmitProof(ctx context.Context, studentID int64, items []ProofItem) (model.PaymentRecord, error) {
	if len(items) == 0 {
		return model.PaymentRecord{}, fmt.Errorf("%w: empty submission", ErrInvalidInput)
	}
	byRef := make(map[string]ProofItem, len(items))
	for _, item := range items {
		if item.Ref == "" || item.UTR == "" || item.Screenshot == "" {
			return model.PaymentRecord{}, fmt.Errorf("%w: every item needs an event, a transaction reference and a screenshot", ErrInvalidInput)
		}
		byRef[item.Ref] = item
	}

	var updated model.PaymentRecord
	err := s.payments.UpdateRecord(ctx, studentID, func(record *model.PaymentRecord) error {
		now := time.Now().UTC()
		matched := 0
		for _, seq := range [][]model.Claim{record.Mandatory, record.Optional} {
			for i := range seq {
				claim := &seq[i]
				if claim.EffectiveStatus() != model.StatusAdded {
					continue
				}
				item, ok := byRef[claim.EventRef()]
				if !ok && claim.PlainRef != "" {
					item, ok = byRef[claim.PlainRef]
				}
				if !ok {
					return fmt.Errorf("%w: basket item %s has no proof", ErrInvalidInput, claim.EventRef())
				}
				paidAt := now
				claim.Paid = true
				claim.Status = model.StatusPending
				claim.UTR = item.UTR
				claim.Screenshot = item.Screenshot
				claim.PaidDate = &paidAt
				matched++
			}
		}
		if matched == 0 {
			return fmt.Errorf("%w: nothing in the basket to submit", ErrInvalidInput)
		}
		if matched != len(byRef) {
			return fmt.Errorf("%w: submission does not match the basket", ErrInvalidInput)
		}
		updated = *record
		return nil
	})
	if err != nil {
		return model.PaymentRecord{}, err
	}
	return updated, nil
}

// Decide finalizes a pending claim. The read-modify-write runs under a
// row lock in the store, so of two concurrent decisions on the same
// claim one commits and the other observes the terminal status here and
// fails with ErrAlreadyDecided.
func (s *Service) Decide(ctx context.Context, adminID string, studentID int64, cat model.Category, claimRef string, decision model.ClaimStatus) (model.Claim, error) {
	if decision != model.StatusConfirmed && decision != model.StatusRejected {
		return model.Claim{}, fmt.Errorf("%w: decision must be confirmed or rejected", ErrInvalidInput)
	}
	if !cat.Valid() || claimRef == "" || adminID == "" {
		return model.Claim{}, ErrInvalidInput
	}

	return s.payments.UpdateClaim(ctx, studentID, cat, claimRef, func(claim *model.Claim) error {
		switch claim.EffectiveStatus() {
		case model.StatusPending:
		case model.StatusConfirmed, model.StatusRejected:
			return ErrAlreadyDecided
		default:
			return fmt.Errorf("%w: claim has no submitted proof", ErrInvalidInput)
		}

		now := time.Now().UTC()
		if decision == model.StatusConfirmed {
			claim.Status = model.StatusConfirmed
			claim.Paid = true
			claim.ConfirmedAt = &now
			claim.ConfirmedBy = adminID
			claim.RejectedAt = nil
			claim.RejectedBy = ""
		} else {
			claim.Status = model.StatusRejected
			claim.Paid = false
			claim.RejectedAt = &now
			claim.RejectedBy = adminID
			claim.ConfirmedAt = nil
			claim.ConfirmedBy = ""
		}
		return nil
	})
}

// GetPayments is a read-through for the student's own record.
func (s *Service) GetPayments(ctx context.Context, studentID int64) (model.PaymentRecord, error) {
	return s.payments.GetPayments(ctx, studentID)
}

func (s *Service) findClaim(ctx context.Context, studentID int64, cat model.Category, ref string) (model.Claim, error) {
	record, err := s.payments.GetPayments(ctx, studentID)
	if err != nil {
		return model.Claim{}, err
	}
	for _, c := range record.Sequence(cat) {
		if c.EventRef() == ref || c.PlainRef == ref {
			return c, nil
		}
	}
	return model.Claim{}, store.ErrClaimNotFound
}
