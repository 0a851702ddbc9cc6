package receiving

import (
	"time"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceptionType describes the kind of delivery
type ReceptionType string

const (
	ReceptionTypeFull    ReceptionType = "FULL"
	ReceptionTypePartial ReceptionType = "PARTIAL"
	ReceptionTypeReturn  ReceptionType = "RETURN"
)

// ParseReceptionType rejects values outside the closed set
func ParseReceptionType(s string) (ReceptionType, error) {
	switch t := ReceptionType(s); t {
	case ReceptionTypeFull, ReceptionTypePartial, ReceptionTypeReturn:
		return t, nil
	}
	return "", newInvalidEnum("reception_type", s)
}

func (t ReceptionType) String() string { return string(t) }

// ReceptionStatus is the overall inspection state of a reception
type ReceptionStatus string

const (
	ReceptionStatusPending           ReceptionStatus = "PENDING"
	ReceptionStatusInInspection      ReceptionStatus = "IN_INSPECTION"
	ReceptionStatusApproved          ReceptionStatus = "APPROVED"
	ReceptionStatusPartiallyApproved ReceptionStatus = "PARTIALLY_APPROVED"
)

// ParseReceptionStatus rejects values outside the closed set
func ParseReceptionStatus(s string) (ReceptionStatus, error) {
	switch st := ReceptionStatus(s); st {
	case ReceptionStatusPending, ReceptionStatusInInspection,
		ReceptionStatusApproved, ReceptionStatusPartiallyApproved:
		return st, nil
	}
	return "", newInvalidEnum("reception_status", s)
}

func (s ReceptionStatus) String() string { return string(s) }

// IsTerminal is true once every line has been resolved
func (s ReceptionStatus) IsTerminal() bool {
	return s == ReceptionStatusApproved || s == ReceptionStatusPartiallyApproved
}

// IsOpen is true while inspection is outstanding
func (s ReceptionStatus) IsOpen() bool {
	return s == ReceptionStatusPending || s == ReceptionStatusInInspection
}

// InspectionStatus is the per-line inspection verdict
type InspectionStatus string

const (
	InspectionStatusPending  InspectionStatus = "PENDING"
	InspectionStatusAccepted InspectionStatus = "ACCEPTED"
	InspectionStatusRejected InspectionStatus = "REJECTED"
)

// ParseInspectionStatus rejects values outside the closed set
func ParseInspectionStatus(s string) (InspectionStatus, error) {
	switch st := InspectionStatus(s); st {
	case InspectionStatusPending, InspectionStatusAccepted, InspectionStatusRejected:
		return st, nil
	}
	return "", newInvalidEnum("inspection_status", s)
}

func (s InspectionStatus) String() string { return string(s) }

// ReceptionLine is the per-order-line breakdown of one delivery
type ReceptionLine struct {
	ID               uuid.UUID
	ReceptionID      uuid.UUID
	OrderLineID      uuid.UUID
	LineIndex        int
	ReceivedQuantity decimal.Decimal
	AcceptedQuantity decimal.Decimal
	RejectedQuantity decimal.Decimal
	InspectionStatus InspectionStatus
	Notes            string
}

// Reception is one physical delivery against one order. It owns its lines.
type Reception struct {
	shared.BaseAggregateRoot
	SequenceNumber        string
	OrderID               uuid.UUID
	Type                  ReceptionType
	Status                ReceptionStatus
	CreatedByActorID      string
	InspectionActorID     string
	InspectionStartedAt   *time.Time
	InspectionCompletedAt *time.Time
	Notes                 string
	Documents             []string
	Lines                 []ReceptionLine
}

// NewReception builds a pending reception from lines that already passed validation
func NewReception(
	orderID uuid.UUID,
	receptionType ReceptionType,
	sequenceNumber string,
	actorID string,
	lines []ValidatedLine,
	documents []string,
	notes string,
) (*Reception, error) {
	if actorID == "" {
		return nil, ErrMissingActor
	}
	if len(lines) == 0 {
		return nil, ErrEmptySubmission
	}

	r := &Reception{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SequenceNumber:    sequenceNumber,
		OrderID:           orderID,
		Type:              receptionType,
		Status:            ReceptionStatusPending,
		CreatedByActorID:  actorID,
		Notes:             notes,
		Documents:         append([]string(nil), documents...),
		Lines:             make([]ReceptionLine, 0, len(lines)),
	}
	for _, vl := range lines {
		r.Lines = append(r.Lines, ReceptionLine{
			ID:               uuid.New(),
			ReceptionID:      r.ID,
			OrderLineID:      vl.OrderLineID,
			LineIndex:        vl.LineIndex,
			ReceivedQuantity: vl.ReceivedQuantity,
			AcceptedQuantity: vl.AcceptedQuantity,
			RejectedQuantity: vl.RejectedQuantity,
			InspectionStatus: InspectionStatusPending,
			Notes:            vl.Notes,
		})
	}
	return r, nil
}

// Line returns a pointer to the line with the given ID
func (r *Reception) Line(lineID uuid.UUID) (*ReceptionLine, bool) {
	for i := range r.Lines {
		if r.Lines[i].ID == lineID {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

// BeginInspection claims the reception for an inspector.
// Calling it again with the same actor while in inspection is a no-op.
func (r *Reception) BeginInspection(actorID string, now time.Time) error {
	if actorID == "" {
		return ErrMissingActor
	}
	switch r.Status {
	case ReceptionStatusInInspection:
		if r.InspectionActorID == actorID {
			return nil
		}
		return detailed(ErrInspectionAlreadyClaimed, "inspection already claimed by "+r.InspectionActorID).
			WithDetail("reception_id", r.ID.String()).
			WithDetail("inspection_actor_id", r.InspectionActorID)
	case ReceptionStatusPending:
	default:
		return newInvalidTransition(r.ID, r.Status, "begin inspection of")
	}

	r.Status = ReceptionStatusInInspection
	r.InspectionActorID = actorID
	started := now.UTC()
	r.InspectionStartedAt = &started
	r.Touch()
	r.IncrementVersion()
	return nil
}

// ResolveLine records the verdict for exactly one line. It never changes the
// overall status; call RecomputeOverallStatus afterwards. Quantities fixed at
// submission are left untouched.
func (r *Reception) ResolveLine(lineID uuid.UUID, status InspectionStatus, notes string, now time.Time) error {
	line, ok := r.Line(lineID)
	if !ok {
		return NewLineNotFound(r.ID, lineID)
	}
	if status != InspectionStatusAccepted && status != InspectionStatusRejected {
		return newInvalidEnum("inspection_status", string(status))
	}

	line.InspectionStatus = status
	line.Notes = notes
	if r.InspectionStartedAt == nil {
		started := now.UTC()
		r.InspectionStartedAt = &started
	}
	r.Touch()
	return nil
}

// RecomputeOverallStatus derives the reception status from its lines and
// returns the status held before the call. Approved requires every line
// accepted; PartiallyApproved requires every line resolved with at least one
// rejection. While any line is pending the status is left as is.
func (r *Reception) RecomputeOverallStatus(now time.Time) ReceptionStatus {
	previous := r.Status

	resolved, rejected := true, false
	for _, l := range r.Lines {
		switch l.InspectionStatus {
		case InspectionStatusPending:
			resolved = false
		case InspectionStatusRejected:
			rejected = true
		}
	}
	if !resolved || len(r.Lines) == 0 {
		return previous
	}

	if rejected {
		r.Status = ReceptionStatusPartiallyApproved
	} else {
		r.Status = ReceptionStatusApproved
	}
	if r.InspectionCompletedAt == nil {
		completed := now.UTC()
		r.InspectionCompletedAt = &completed
	}
	if previous != r.Status {
		r.IncrementVersion()
	}
	return previous
}

// RecordSubmitted queues the creation event. order must carry its status
// after this reception was applied.
func (r *Reception) RecordSubmitted(order *Order) {
	r.AddDomainEvent(NewReceptionCreatedEvent(r, order))
}

// RecordApproval queues the inspection-resolved event when the reception
// moved into Approved from previous. It reports whether an event was queued.
func (r *Reception) RecordApproval(previous ReceptionStatus, order *Order, actorID string) bool {
	if previous == ReceptionStatusApproved || r.Status != ReceptionStatusApproved {
		return false
	}
	r.AddDomainEvent(NewReceptionApprovedEvent(r, order, actorID))
	return true
}

// Totals sums quantities across all lines
func (r *Reception) Totals() LineConsumption {
	var t LineConsumption
	for _, l := range r.Lines {
		t = t.add(l)
	}
	return t
}

// AcceptedValue sums accepted quantity times the order line unit price
func (r *Reception) AcceptedValue(order *Order) decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.AcceptedQuantity.Mul(order.UnitPrice(l.OrderLineID)))
	}
	return total
}
