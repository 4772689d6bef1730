package model

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleStudent Role = "student" // self-registrable
	RoleAdmin   Role = "admin"   // provisioned out of band, never via /register
)

type User struct {
	ID           int64  `json:"id"`
	USN          string `json:"usn"` // university seat number, unique case-insensitive
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`

	DOB        string `json:"dob,omitempty"` // DDMMYYYY
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	Department string `json:"department,omitempty"`
	Year       string `json:"year,omitempty"`
	Section    string `json:"section,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Category string

const (
	CategoryMandatory Category = "mandatory"
	CategoryOptional  Category = "optional"
)

func (c Category) Valid() bool {
	return c == CategoryMandatory || c == CategoryOptional
}

type ClaimStatus string

const (
	StatusAdded     ClaimStatus = "added"     // selected, not yet paid
	StatusPending   ClaimStatus = "pending"   // proof submitted, awaiting admin decision
	StatusConfirmed ClaimStatus = "confirmed" // terminal
	StatusRejected  ClaimStatus = "rejected"  // terminal
)

func (s ClaimStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// Event is a catalog entry: a mandatory fee or an optional fundraiser.
// Amount is in the smallest currency unit (paise).
type Event struct {
	ID          string   `json:"id"`
	LegacyID    string   `json:"_id,omitempty"` // redundant historical identifier, kept for matching
	Category    Category `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Amount      int64    `json:"amount"`
	PayeeName   string   `json:"payeeName,omitempty"`
	PayeeUPI    string   `json:"payeeUpiId,omitempty"` // required when Category is optional
	TargetClass string   `json:"targetClass,omitempty"`
	Poster      string   `json:"poster,omitempty"` // opaque blob reference
	QRCode      string   `json:"qrCode,omitempty"` // opaque blob reference

	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Claim is one student's record of selecting/paying for one event.
// Historical clients wrote the event reference in two shapes: a plain
// "id" field and a structured "_id" field. Both are kept so the matcher
// can resolve legacy rows.
type Claim struct {
	LegacyRef  RawID       `json:"-"`
	PlainRef   string      `json:"id,omitempty"`
	Paid       bool        `json:"paid"`
	Status     ClaimStatus `json:"status,omitempty"`
	UTR        string      `json:"utr,omitempty"`
	Screenshot string      `json:"screenshot,omitempty"`
	PaidDate   *time.Time  `json:"paidDate,omitempty"`

	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	ConfirmedBy string     `json:"confirmedBy,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy  string     `json:"rejectedBy,omitempty"`
}

// EventRef returns the candidate reference string for this claim:
// the structured field when present, otherwise the plain field.
func (c *Claim) EventRef() string {
	if c.LegacyRef != nil {
		return c.LegacyRef.String()
	}
	return c.PlainRef
}

// EffectiveStatus applies the legacy-data rule: a paid claim written
// before statuses existed reads as pending.
func (c *Claim) EffectiveStatus() ClaimStatus {
	if c.Status == "" {
		if c.Paid {
			return StatusPending
		}
		return StatusAdded
	}
	return c.Status
}

func (c Claim) MarshalJSON() ([]byte, error) {
	type alias Claim
	aux := struct {
		alias
		LegacyRef json.RawMessage `json:"_id,omitempty"`
	}{alias: alias(c)}
	if c.LegacyRef != nil {
		raw, err := EncodeRawID(c.LegacyRef)
		if err != nil {
			return nil, err
		}
		aux.LegacyRef = raw
	}
	return json.Marshal(aux)
}

func (c *Claim) UnmarshalJSON(data []byte) error {
	type alias Claim
	aux := struct {
		*alias
		LegacyRef json.RawMessage `json:"_id,omitempty"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.LegacyRef) > 0 {
		id, err := ParseRawID(aux.LegacyRef)
		if err != nil {
			return err
		}
		c.LegacyRef = id
	}
	return nil
}

// RegistrationConfirmed is the only status a booking ever has; a
// registration is a receipt, not a reviewable claim.
const RegistrationConfirmed = "confirmed"

// RegistrationEvent is one line of a booking: the event as it was
// priced at the moment of registration.
type RegistrationEvent struct {
	EventID string `json:"eventId"`
	Title   string `json:"title"`
	Amount  int64  `json:"amount"`
}

// Registration is a basket checkout receipt. It snapshots the selected
// events and their prices; later catalog edits do not rewrite history.
// Registrations take no part in payment reconciliation.
type Registration struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"userId"`
	UserEmail     string              `json:"userEmail,omitempty"`
	Events        []RegistrationEvent `json:"events"`
	TotalAmount   int64               `json:"totalAmount"`
	PaymentMethod string              `json:"paymentMethod,omitempty"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// PaymentRecord is one student's two claim sequences. Both slices are
// always non-nil.
type PaymentRecord struct {
	Mandatory []Claim `json:"mandatory"`
	Optional  []Claim `json:"optional"`
}

func NewPaymentRecord() PaymentRecord {
	return PaymentRecord{Mandatory: []Claim{}, Optional: []Claim{}}
}

func (p *PaymentRecord) Sequence(cat Category) []Claim {
	if cat == CategoryMandatory {
		return p.Mandatory
	}
	return p.Optional
}
