package receiving

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReception_BeginInspection(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "10", "10", "0"))

	require.NoError(t, r.BeginInspection("inspector-a", testNow))
	assert.Equal(t, ReceptionStatusInInspection, r.Status)
	require.NotNil(t, r.InspectionStartedAt)
	assert.Equal(t, testNow, *r.InspectionStartedAt)

	t.Run("same actor is idempotent", func(t *testing.T) {
		version := r.Version
		assert.NoError(t, r.BeginInspection("inspector-a", testNow.Add(time.Hour)))
		assert.Equal(t, testNow, *r.InspectionStartedAt)
		assert.Equal(t, version, r.Version)
	})

	t.Run("other actor is rejected", func(t *testing.T) {
		err := r.BeginInspection("inspector-b", testNow)
		assert.ErrorIs(t, err, ErrInspectionAlreadyClaimed)
		assert.Equal(t, KindStateConflict, KindOf(err))
		assert.Equal(t, "inspector-a", r.InspectionActorID)
	})

	t.Run("not from terminal status", func(t *testing.T) {
		require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusAccepted, "", testNow))
		r.RecomputeOverallStatus(testNow)
		err := r.BeginInspection("inspector-a", testNow)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("actor required", func(t *testing.T) {
		fresh := receive(t, order, nil, proposed(order.Lines[0].ID, "1", "1", "0"))
		assert.ErrorIs(t, fresh.BeginInspection("", testNow), ErrMissingActor)
	})
}

func TestReception_ResolveLineKeepsOverallStatus(t *testing.T) {
	order := newTestOrder(t, "10", "10")
	r := receive(t, order, nil,
		proposed(order.Lines[0].ID, "5", "5", "0"),
		proposed(order.Lines[1].ID, "5", "5", "0"))
	require.NoError(t, r.BeginInspection("inspector", testNow))

	require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusAccepted, "ok", testNow))
	assert.Equal(t, ReceptionStatusInInspection, r.Status)

	r.RecomputeOverallStatus(testNow)
	assert.Equal(t, ReceptionStatusInInspection, r.Status)
	assert.Nil(t, r.InspectionCompletedAt)
	assert.Equal(t, "ok", r.Lines[0].Notes)
}

func TestReception_ResolveLineValidation(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "10", "7", "3"))

	assert.ErrorIs(t, r.ResolveLine(uuid.New(), InspectionStatusRejected, "", testNow), ErrLineNotFound)
	assert.ErrorIs(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusPending, "", testNow), ErrInvalidEnumValue)
	assert.Equal(t, InspectionStatusPending, r.Lines[0].InspectionStatus)
}

func TestReception_CorrectionMovesPartialToApproved(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "10", "7", "3"))

	require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusRejected, "3 damaged", testNow))
	previous := r.RecomputeOverallStatus(testNow)
	require.Equal(t, ReceptionStatusPartiallyApproved, r.Status)
	assert.False(t, r.RecordApproval(previous, order, "inspector"))
	completed := *r.InspectionCompletedAt

	require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusAccepted, "supplier credit agreed", testNow.Add(time.Hour)))
	previous = r.RecomputeOverallStatus(testNow.Add(time.Hour))
	assert.Equal(t, ReceptionStatusPartiallyApproved, previous)
	assert.Equal(t, ReceptionStatusApproved, r.Status)
	assert.Equal(t, completed, *r.InspectionCompletedAt)
	assert.True(t, dec("3").Equal(r.Lines[0].RejectedQuantity))

	assert.True(t, r.RecordApproval(previous, order, "inspector"))
	assert.False(t, r.RecordApproval(r.RecomputeOverallStatus(testNow), order, "inspector"))
	events := r.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeReceptionApproved, events[0].EventType())
}

func TestReception_RecordSubmitted(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "4", "4", "0"))

	r.RecordSubmitted(order)
	events := r.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeReceptionCreated, events[0].EventType())
	assert.Equal(t, r.ID, events[0].AggregateID())
}

// Scenario D: a single line with 7 accepted and 3 rejected ends PartiallyApproved.
func TestReception_PartialRejectionIsPartiallyApproved(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "10", "7", "3"))
	require.NoError(t, r.BeginInspection("inspector", testNow))

	require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusRejected, "3 damaged", testNow))
	previous := r.RecomputeOverallStatus(testNow.Add(time.Minute))

	assert.Equal(t, ReceptionStatusInInspection, previous)
	assert.Equal(t, ReceptionStatusPartiallyApproved, r.Status)
	require.NotNil(t, r.InspectionCompletedAt)
	assert.Equal(t, testNow.Add(time.Minute), *r.InspectionCompletedAt)
}

func TestReception_AllAcceptedIsApproved(t *testing.T) {
	order := newTestOrder(t, "10", "4")
	r := receive(t, order, nil,
		proposed(order.Lines[0].ID, "10", "10", "0"),
		proposed(order.Lines[1].ID, "4", "4", "0"))

	for _, l := range r.Lines {
		require.NoError(t, r.ResolveLine(l.ID, InspectionStatusAccepted, "", testNow))
	}
	r.RecomputeOverallStatus(testNow)
	assert.Equal(t, ReceptionStatusApproved, r.Status)
	assert.NotNil(t, r.InspectionStartedAt)
}

func TestReception_RecomputeIsIdempotent(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "10", "8", "2"))
	require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusRejected, "", testNow))

	r.RecomputeOverallStatus(testNow)
	first, completed, version := r.Status, *r.InspectionCompletedAt, r.Version

	previous := r.RecomputeOverallStatus(testNow.Add(time.Hour))
	assert.Equal(t, first, previous)
	assert.Equal(t, first, r.Status)
	assert.Equal(t, completed, *r.InspectionCompletedAt)
	assert.Equal(t, version, r.Version)
}

func TestReception_TotalsAndValue(t *testing.T) {
	order := newTestOrder(t, "10", "10")
	r := receive(t, order, nil,
		proposed(order.Lines[0].ID, "4", "3", "1"),
		proposed(order.Lines[1].ID, "2", "2", "0"))

	totals := r.Totals()
	assert.True(t, dec("6").Equal(totals.Received))
	assert.True(t, dec("5").Equal(totals.Accepted))
	assert.True(t, dec("12.5").Equal(r.AcceptedValue(order)))
}

func TestNewReceptionRequiresActor(t *testing.T) {
	_, err := NewReception(uuid.New(), ReceptionTypeFull, "RCP-1", "", []ValidatedLine{{LineIndex: 1}}, nil, "")
	assert.ErrorIs(t, err, ErrMissingActor)
}

func TestReceptionEvents(t *testing.T) {
	order := newTestOrder(t, "10")
	r := receive(t, order, nil, proposed(order.Lines[0].ID, "10", "10", "0"))

	created := NewReceptionCreatedEvent(r, order)
	assert.Equal(t, EventTypeReceptionCreated, created.EventType())
	assert.Equal(t, r.ID.String()+":"+EventTypeReceptionCreated, created.DedupKey())
	assert.Equal(t, order.ID.String(), created.PartitionKey())
	assert.Equal(t, 1, created.LineCount)
	assert.True(t, dec("25").Equal(created.AcceptedValue))

	require.NoError(t, r.ResolveLine(r.Lines[0].ID, InspectionStatusAccepted, "", testNow))
	r.RecomputeOverallStatus(testNow)
	approved := NewReceptionApprovedEvent(r, order, "inspector")
	assert.Equal(t, testNow, approved.CompletedAt)
	assert.Equal(t, r.ID.String()+":"+EventTypeReceptionApproved, approved.DedupKey())
}
