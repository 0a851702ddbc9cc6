package receiving

import (
	"errors"
	"testing"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReception_Errors(t *testing.T) {
	order := newTestOrder(t, "100", "10")
	a, b := order.Lines[0].ID, order.Lines[1].ID
	stranger := uuid.New()

	tests := []struct {
		name      string
		lines     []ProposedLine
		wantErr   *shared.DomainError
		wantIndex int
	}{
		{"empty submission", nil, ErrEmptySubmission, -1},
		{"unknown order line", []ProposedLine{proposed(a, "1", "1", "0"), proposed(stranger, "1", "1", "0")}, ErrUnknownOrderLine, 1},
		{"split mismatch", []ProposedLine{proposed(a, "10", "7", "2")}, ErrQuantitySplitMismatch, 0},
		{"over receipt", []ProposedLine{proposed(b, "11", "11", "0")}, ErrOverReceipt, 0},
		{"over receipt counts rejected on the new delivery", []ProposedLine{proposed(b, "12", "9", "3")}, ErrOverReceipt, 0},
		{"duplicate line", []ProposedLine{proposed(b, "3", "3", "0"), proposed(b, "3", "3", "0")}, ErrDuplicateLine, 1},
		{"negative quantity", []ProposedLine{proposed(a, "-1", "-1", "0")}, ErrInvalidQuantity, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateReception(order, NewLedger(order, nil), tt.lines)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, KindValidation, KindOf(err))

			de, ok := shared.AsDomainError(err)
			require.True(t, ok)
			if tt.wantIndex >= 0 {
				assert.Equal(t, tt.wantIndex, de.Details["line_index"])
				assert.NotEmpty(t, de.Details["order_line_id"])
			}
		})
	}
}

func TestValidateReception_DuplicatesDoNotOffset(t *testing.T) {
	order := newTestOrder(t, "10")
	line := order.Lines[0].ID

	// Each entry alone fits, together they would exceed the order.
	_, err := ValidateReception(order, NewLedger(order, nil), []ProposedLine{
		proposed(line, "6", "6", "0"),
		proposed(line, "6", "6", "0"),
	})
	assert.ErrorIs(t, err, ErrDuplicateLine)
}

func TestValidateReception_AssignsMonotonicIndexes(t *testing.T) {
	order := newTestOrder(t, "100", "10")
	a, b := order.Lines[0].ID, order.Lines[1].ID

	first := receive(t, order, nil, proposed(a, "10", "10", "0"), proposed(b, "1", "1", "0"))
	assert.Equal(t, 1, first.Lines[0].LineIndex)
	assert.Equal(t, 2, first.Lines[1].LineIndex)

	validated, err := ValidateReception(order, NewLedger(order, []*Reception{first}), []ProposedLine{
		proposed(b, "2", "2", "0"),
		proposed(a, "5", "5", "0"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, validated[0].LineIndex)
	assert.Equal(t, 4, validated[1].LineIndex)
}

func TestValidateReception_RejectedQuantityCanBeRedelivered(t *testing.T) {
	order := newTestOrder(t, "10")
	line := order.Lines[0].ID

	first := receive(t, order, nil, proposed(line, "10", "6", "4"))
	_, err := ValidateReception(order, NewLedger(order, []*Reception{first}), []ProposedLine{
		proposed(line, "4", "4", "0"),
	})
	assert.NoError(t, err)
}

// Scenarios B and C: 40 accepted out of 100 leaves 60; 61 more is an over-receipt.
func TestValidateReception_ExactRemainingBoundary(t *testing.T) {
	order := newTestOrder(t, "100")
	line := order.Lines[0].ID

	first := receive(t, order, nil, proposed(line, "40", "40", "0"))
	ledger := NewLedger(order, []*Reception{first})

	remaining, _ := ledger.Remaining(line)
	assert.True(t, dec("60").Equal(remaining))

	_, err := ValidateReception(order, ledger, []ProposedLine{proposed(line, "61", "61", "0")})
	require.ErrorIs(t, err, ErrOverReceipt)
	de, _ := shared.AsDomainError(err)
	assert.Equal(t, "60", de.Details["remaining_quantity"])

	_, err = ValidateReception(order, ledger, []ProposedLine{proposed(line, "60", "60", "0")})
	assert.NoError(t, err)
}
