// Package adminview derives the admin review queue and summary figures
// by scanning every student's payment record and joining claims to the
// event catalog through the matcher. Scans are best-effort snapshots:
// they may race benignly with concurrent decisions.
package adminview

import (
	"context"
	"time"

	"campuspay/internal/logging"
	"campuspay/internal/match"
	"campuspay/internal/model"
)

type UserStore interface {
	ListStudents(ctx context.Context) ([]model.User, error)
}

type PaymentStore interface {
	GetPayments(ctx context.Context, userID int64) (model.PaymentRecord, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
}

type View struct {
	users    UserStore
	payments PaymentStore
	events   EventStore
}

func New(users UserStore, payments PaymentStore, events EventStore) *View {
	return &View{users: users, payments: payments, events: events}
}

// PendingPayment is one flattened review-queue entry: student identity
// joined to event details and the student's proof fields.
type PendingPayment struct {
	StudentID        int64             `json:"studentId"`
	StudentUSN       string            `json:"studentUSN"`
	StudentName      string            `json:"studentName"`
	StudentEmail     string            `json:"studentEmail"`
	EventID          string            `json:"eventId"`
	EventTitle       string            `json:"eventTitle"`
	EventType        model.Category    `json:"eventType"`
	EventAmount      int64             `json:"eventAmount"`
	EventDescription string            `json:"eventDescription,omitempty"`
	EventTargetClass string            `json:"eventTargetClass,omitempty"`
	EventPayeeName   string            `json:"eventPayeeName,omitempty"`
	EventPayeeUPI    string            `json:"eventPayeeUpiId,omitempty"`
	PaymentRef       string            `json:"paymentId"`
	UTR              string            `json:"utr"`
	Screenshot       string            `json:"screenshot,omitempty"`
	PaidDate         *time.Time        `json:"paidDate,omitempty"`
	Status           model.ClaimStatus `json:"status"`
}

// ListPending walks every student account and surfaces paid claims still
// awaiting a decision. Claims that cannot be matched to any catalog
// event are skipped and counted, never fatal: legacy rows may stay
// unmatched forever.
func (v *View) ListPending(ctx context.Context) ([]PendingPayment, error) {
	students, err := v.users.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	events, err := v.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	idx := match.NewIndex(events)

	pending := []PendingPayment{}
	unmatched := 0

	for i := range students {
		student := &students[i]
		record, err := v.payments.GetPayments(ctx, student.ID)
		if err != nil {
			return nil, err
		}
		for _, cat := range []model.Category{model.CategoryMandatory, model.CategoryOptional} {
			for j := range record.Sequence(cat) {
				claim := &record.Sequence(cat)[j]
				if !claim.Paid || claim.EffectiveStatus() != model.StatusPending {
					continue
				}
				event, ok := idx.Resolve(claim)
				if !ok {
					unmatched++
					logging.Logg.Warn("Pending claim matches no event",
						"usn", student.USN, "category", cat, "ref", claim.EventRef())
					continue
				}
				pending = append(pending, PendingPayment{
					StudentID:        student.ID,
					StudentUSN:       student.USN,
					StudentName:      student.Name,
					StudentEmail:     student.Email,
					EventID:          event.ID,
					EventTitle:       event.Title,
					EventType:        cat,
					EventAmount:      event.Amount,
					EventDescription: event.Description,
					EventTargetClass: event.TargetClass,
					EventPayeeName:   event.PayeeName,
					EventPayeeUPI:    event.PayeeUPI,
					PaymentRef:       claim.EventRef(),
					UTR:              claim.UTR,
					Screenshot:       claim.Screenshot,
					PaidDate:         claim.PaidDate,
					Status:           model.StatusPending,
				})
			}
		}
	}

	if unmatched > 0 {
		logging.Logg.Info("Pending scan finished with unmatched claims",
			"pending", len(pending), "unmatched", unmatched)
	}
	return pending, nil
}

// Summary is the admin dashboard headline figures. Only confirmed claims
// count; an unmatched confirmed claim still increments the count but
// contributes no amount.
type Summary struct {
	TotalStudents        int   `json:"totalStudents"`
	TotalConfirmedClaims int   `json:"totalPaymentsReceived"`
	TotalConfirmedAmount int64 `json:"totalAmountReceived"`
	MandatoryEventCount  int   `json:"mandatoryPayments"`
	OptionalEventCount   int   `json:"optionalEvents"`
}

func (v *View) PaymentSummary(ctx context.Context) (Summary, error) {
	students, err := v.users.ListStudents(ctx)
	if err != nil {
		return Summary{}, err
	}
	events, err := v.events.ListEvents(ctx)
	if err != nil {
		return Summary{}, err
	}
	idx := match.NewIndex(events)

	summary := Summary{TotalStudents: len(students)}
	for i := range events {
		switch events[i].Category {
		case model.CategoryMandatory:
			summary.MandatoryEventCount++
		case model.CategoryOptional:
			summary.OptionalEventCount++
		}
	}

	for i := range students {
		record, err := v.payments.GetPayments(ctx, students[i].ID)
		if err != nil {
			return Summary{}, err
		}
		for _, cat := range []model.Category{model.CategoryMandatory, model.CategoryOptional} {
			for j := range record.Sequence(cat) {
				claim := &record.Sequence(cat)[j]
				if !claim.Paid || claim.EffectiveStatus() != model.StatusConfirmed {
					continue
				}
				summary.TotalConfirmedClaims++
				if event, ok := idx.Resolve(claim); ok {
					summary.TotalConfirmedAmount += event.Amount
				}
			}
		}
	}
	return summary, nil
}

// RosterEntry is one student on an event's paid/not-paid roster.
type RosterEntry struct {
	USN        string     `json:"usn"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	UTR        string     `json:"utr,omitempty"`
	Screenshot string     `json:"screenshot,omitempty"`
	PaidDate   *time.Time `json:"paidDate,omitempty"`
}

type EventRoster struct {
	Event        model.Event   `json:"event"`
	Paid         []RosterEntry `json:"paidStudents"`
	NotPaid      []RosterEntry `json:"notPaidStudents"`
	TotalPaid    int           `json:"totalPaid"`
	TotalNotPaid int           `json:"totalNotPaid"`
}

// EventPayments partitions all students into paid and not-paid for one
// event. Paid means a matched claim with submitted proof, regardless of
// whether an admin has decided it yet.
func (v *View) EventPayments(ctx context.Context, eventID string) (EventRoster, error) {
	event, err := v.events.GetEvent(ctx, eventID)
	if err != nil {
		return EventRoster{}, err
	}
	students, err := v.users.ListStudents(ctx)
	if err != nil {
		return EventRoster{}, err
	}
	events, err := v.events.ListEvents(ctx)
	if err != nil {
		return EventRoster{}, err
	}
	idx := match.NewIndex(events)

	roster := EventRoster{Event: *event, Paid: []RosterEntry{}, NotPaid: []RosterEntry{}}
	for i := range students {
		student := &students[i]
		record, err := v.payments.GetPayments(ctx, student.ID)
		if err != nil {
			return EventRoster{}, err
		}

		var paidClaim *model.Claim
		seq := record.Sequence(event.Category)
		for j := range seq {
			claim := &seq[j]
			if !claim.Paid {
				continue
			}
			if resolved, ok := idx.Resolve(claim); ok && resolved.ID == event.ID {
				paidClaim = claim
				break
			}
		}

		entry := RosterEntry{USN: student.USN, Name: student.Name, Email: student.Email}
		if paidClaim != nil {
			entry.UTR = paidClaim.UTR
			entry.Screenshot = paidClaim.Screenshot
			entry.PaidDate = paidClaim.PaidDate
			roster.Paid = append(roster.Paid, entry)
		} else {
			roster.NotPaid = append(roster.NotPaid, entry)
		}
	}
	roster.TotalPaid = len(roster.Paid)
	roster.TotalNotPaid = len(roster.NotPaid)
	return roster, nil
}

// PaymentLine is one claim of one student in the all-students report.
type PaymentLine struct {
	EventID    string            `json:"eventId"`
	EventTitle string            `json:"eventTitle"`
	EventType  model.Category    `json:"eventType"`
	Amount     int64             `json:"amount"`
	Paid       bool              `json:"paid"`
	UTR        string            `json:"utr,omitempty"`
	Status     model.ClaimStatus `json:"status"`
}

type StudentPayments struct {
	USN      string        `json:"usn"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Payments []PaymentLine `json:"payments"`
}

// StudentsPayments reports every student with their matched claims,
// decided or not. Unmatched claims are skipped.
func (v *View) StudentsPayments(ctx context.Context) ([]StudentPayments, error) {
	students, err := v.users.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	events, err := v.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	idx := match.NewIndex(events)

	report := []StudentPayments{}
	for i := range students {
		student := &students[i]
		record, err := v.payments.GetPayments(ctx, student.ID)
		if err != nil {
			return nil, err
		}

		entry := StudentPayments{
			USN:      student.USN,
			Name:     student.Name,
			Email:    student.Email,
			Payments: []PaymentLine{},
		}
		for _, cat := range []model.Category{model.CategoryMandatory, model.CategoryOptional} {
			for j := range record.Sequence(cat) {
				claim := &record.Sequence(cat)[j]
				event, ok := idx.Resolve(claim)
				if !ok {
					continue
				}
				entry.Payments = append(entry.Payments, PaymentLine{
					EventID:    event.ID,
					EventTitle: event.Title,
					EventType:  cat,
					Amount:     event.Amount,
					Paid:       claim.Paid,
					UTR:        claim.UTR,
					Status:     claim.EffectiveStatus(),
				})
			}
		}
		report = append(report, entry)
	}
	return report, nil
}
