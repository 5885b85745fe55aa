package inventory_test

import (
	"errors"
	"testing"

	"loankeeper/core/fault"
	"loankeeper/core/status"
	"loankeeper/feature/inventory"

	"github.com/stretchr/testify/assert"
)

func TestParseUpdateRequestRejectsUnknownFields(t *testing.T) {
	_, err := inventory.ParseUpdateRequest([]byte(`{"name": "Laptop"}`))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrValidation))
}

func TestParseUpdateRequestRejectsEmptyRequest(t *testing.T) {
	_, err := inventory.ParseUpdateRequest([]byte(`{}`))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, fault.ErrValidation))
}

func TestParseUpdateRequestRename(t *testing.T) {
	req, err := inventory.ParseUpdateRequest([]byte(`{"rename": {"name": "Laptop 2"}}`))
	assert.NoError(t, err)
	assert.NotNil(t, req.Rename)
	assert.Equal(t, "Laptop 2", req.Rename.Name)
}

func TestUpdateRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  inventory.UpdateRequest
		ok   bool
	}{
		{
			name: "rename without name",
			req:  inventory.UpdateRequest{Rename: &inventory.RenameChange{}},
		},
		{
			name: "unknown category",
			req:  inventory.UpdateRequest{ChangeCategory: &inventory.CategoryChange{Category: "VEHICLE"}},
		},
		{
			name: "borrowed cannot be set directly",
			req: inventory.UpdateRequest{SetReservationStatus: &inventory.StatusChange{
				Target: status.ItemBorrowed, ActingUserID: "u1",
			}},
		},
		{
			name: "reserved requires acting user",
			req: inventory.UpdateRequest{SetReservationStatus: &inventory.StatusChange{
				Target: status.ItemReserved,
			}},
		},
		{
			name: "unknown status",
			req: inventory.UpdateRequest{SetReservationStatus: &inventory.StatusChange{
				Target: status.ItemStatus("BROKEN"),
			}},
		},
		{
			name: "out of order is fine",
			req: inventory.UpdateRequest{SetReservationStatus: &inventory.StatusChange{
				Target: status.ItemOutOfOrder,
			}},
			ok: true,
		},
		{
			name: "category change",
			req:  inventory.UpdateRequest{ChangeCategory: &inventory.CategoryChange{Category: "BOOK"}},
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, fault.ErrValidation))
			}
		})
	}
}
