package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multazero/backend/internal/apperr"
)

func TestFromGateway(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"PENDING", Pending},
		{"AWAITING_RISK_ANALYSIS", Pending},
		{"RECEIVED", Confirmed},
		{"confirmed", Confirmed},
		{" RECEIVED_IN_CASH ", Confirmed},
		{"OVERDUE", Expired},
		{"DELETED", Cancelled},
		{"REFUNDED", Refunded},
		{"REFUND_IN_PROGRESS", Refunded},
		{"CHARGEBACK_REQUESTED", Refunded},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FromGateway(tt.in))
		})
	}
}

func TestFromGatewayIsTotal(t *testing.T) {
	inputs := []string{"", "garbage", "💸", "RECEIVED\x00", "null", "pending-ish", "0"}
	for _, in := range inputs {
		got := FromGateway(in)
		assert.True(t, got.Valid(), "FromGateway(%q) = %q is not a valid status", in, got)
	}
	assert.Equal(t, Pending, FromGateway("garbage"))
}

func TestToGateway(t *testing.T) {
	for _, s := range All {
		code, err := ToGateway(s)
		require.NoError(t, err)
		assert.Equal(t, s, FromGateway(code), "round trip for %s", s)
	}

	_, err := ToGateway(Status("paid"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedStatus))
}

func TestParse(t *testing.T) {
	s, err := Parse(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, Confirmed, s)

	_, err = Parse("RECEIVED")
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedStatus))
}

func TestFromStored(t *testing.T) {
	assert.Equal(t, Confirmed, FromStored("confirmed"))
	assert.Equal(t, Confirmed, FromStored("pago"))
	assert.Equal(t, Confirmed, FromStored("RECEIVED"))
	assert.Equal(t, Cancelled, FromStored("canceled"))
	assert.Equal(t, Pending, FromStored("???"))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		from, to Status
		want     Decision
	}{
		{Pending, Confirmed, Apply},
		{Pending, Expired, Apply},
		{Confirmed, Confirmed, Noop},
		{Confirmed, Pending, Reject},
		{Confirmed, Expired, Reject},
		{Cancelled, Confirmed, Reject},
		{Refunded, Confirmed, Reject},
		{Refunded, Cancelled, Reject},
		{Expired, Confirmed, Apply},
		{Confirmed, Refunded, Apply},
		{Cancelled, Refunded, Apply},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decide(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
