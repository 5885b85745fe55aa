package inventory

import (
	"bytes"
	"encoding/json"

	"loankeeper/core/fault"
	"loankeeper/core/status"
	"loankeeper/feature/inventory/models"
)

// UpdateRequest is the explicit, exhaustively-cased item update. Each
// change is its own variant; there is no free-form field merge, and
// unknown JSON fields are rejected at parse time.
type UpdateRequest struct {
	Rename                *RenameChange          `json:"rename,omitempty"`
	ChangeCategory        *CategoryChange        `json:"changeCategory,omitempty"`
	ChangeServiceCategory *ServiceCategoryChange `json:"changeServiceCategory,omitempty"`
	SetReservationStatus  *StatusChange          `json:"setReservationStatus,omitempty"`
}

// RenameChange updates the display name.
type RenameChange struct {
	Name string `json:"name"`
}

// CategoryChange moves the item between BOOK and EQUIPMENT.
type CategoryChange struct {
	Category string `json:"category"`
}

// ServiceCategoryChange updates the free-form service category.
type ServiceCategoryChange struct {
	ServiceCategory string `json:"serviceCategory"`
}

// StatusChange sets the stored reservation status directly. Rejected
// with a conflict while the item has an open loan.
type StatusChange struct {
	Target       status.ItemStatus `json:"target"`
	ActingUserID string            `json:"actingUserId"`
}

// ParseUpdateRequest decodes the request body, rejecting unknown fields.
func ParseUpdateRequest(body []byte) (UpdateRequest, error) {
	var req UpdateRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fault.Validationf("malformed update request (%v)", err)
	}
	return req, req.Validate()
}

// Validate checks the request before it reaches the engine.
func (r UpdateRequest) Validate() error {
	if r.Rename == nil && r.ChangeCategory == nil && r.ChangeServiceCategory == nil && r.SetReservationStatus == nil {
		return fault.Validationf("update request contains no changes")
	}
	if r.Rename != nil && r.Rename.Name == "" {
		return fault.Validationf("rename requires a name")
	}
	if r.ChangeCategory != nil && !models.ValidCategory(r.ChangeCategory.Category) {
		return fault.Validationf("unknown category %q", r.ChangeCategory.Category)
	}
	if sc := r.SetReservationStatus; sc != nil {
		if !sc.Target.Valid() {
			return fault.Validationf("unknown status %q", sc.Target)
		}
		if sc.Target == status.ItemBorrowed {
			return fault.Validationf("BORROWED is derived from loans and cannot be set directly")
		}
		if sc.Target == status.ItemReserved && sc.ActingUserID == "" {
			return fault.Validationf("setting RESERVED requires actingUserId")
		}
	}
	return nil
}
