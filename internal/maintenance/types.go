package maintenance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is the recurrence rule of a maintenance schedule.
type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
)

// ParseFrequency validates a raw frequency value.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(strings.TrimSpace(strings.ToLower(raw))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	default:
		return "", Invalid("frequency", fmt.Sprintf("unknown frequency %q", raw))
	}
}

// WorkOrderType distinguishes planned from breakdown maintenance.
type WorkOrderType string

const (
	Preventive WorkOrderType = "preventive"
	Corrective WorkOrderType = "corrective"
)

// ParseWorkOrderType validates a raw work order type.
func ParseWorkOrderType(raw string) (WorkOrderType, error) {
	switch WorkOrderType(strings.TrimSpace(strings.ToLower(raw))) {
	case Preventive:
		return Preventive, nil
	case Corrective:
		return Corrective, nil
	default:
		return "", Invalid("type", fmt.Sprintf("unknown work order type %q", raw))
	}
}

// WorkOrderStatus is a flat field set by callers; transitions are not
// modelled internally.
type WorkOrderStatus string

const (
	StatusPending    WorkOrderStatus = "pending"
	StatusInProgress WorkOrderStatus = "in_progress"
	StatusCompleted  WorkOrderStatus = "completed"
)

// ParseWorkOrderStatus validates a raw status value.
func ParseWorkOrderStatus(raw string) (WorkOrderStatus, error) {
	switch WorkOrderStatus(strings.TrimSpace(strings.ToLower(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", Invalid("status", fmt.Sprintf("unknown work order status %q", raw))
	}
}

// WorkOrderOrigin records how a work order came to exist.
type WorkOrderOrigin string

const (
	UserCreated     WorkOrderOrigin = "user_created"
	SystemGenerated WorkOrderOrigin = "system_generated"
)

// SystemCreator marks work orders generated by the recurrence engine.
const SystemCreator = "system"

// Tenant is one organization. Names are globally unique.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Equipment is a physical asset belonging to exactly one tenant. The tenant
// id is immutable once set except by an Elevated identity.
type Equipment struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	CommissionedAt time.Time `json:"commissioned_at,omitempty"`
	Location       string    `json:"location,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Schedule is a recurrence rule bound to one piece of equipment. NextDue is
// never zero and only ever moves forward in time. "Due" is not a stored
// state: a schedule is due when NextDue <= now.
type Schedule struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	EquipmentID string    `json:"equipment_id"`
	Frequency   Frequency `json:"frequency"`
	NextDue     time.Time `json:"next_due"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkOrder is one concrete maintenance task. Tenant id is immutable once
// created.
type WorkOrder struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	EquipmentID string          `json:"equipment_id"`
	Type        WorkOrderType   `json:"type"`
	Status      WorkOrderStatus `json:"status"`
	Origin      WorkOrderOrigin `json:"origin"`
	PlannedDate time.Time       `json:"planned_date"`
	DueDate     time.Time       `json:"due_date,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatorID   string          `json:"creator_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Report documents a performed intervention against one work order:
// what was done, which parts went in and how long it took. It inherits the
// work order's tenant and never moves between tenants.
type Report struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	WorkOrderID   string    `json:"work_order_id"`
	Description   string    `json:"description,omitempty"`
	PartsReplaced string    `json:"parts_replaced,omitempty"`
	Duration      string    `json:"duration,omitempty"`
	SubmittedBy   string    `json:"submitted_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrScheduleClaimed is returned by the store when a conditional advance
	// lost the race: another invocation already processed this due cycle.
	ErrScheduleClaimed = errors.New("schedule already claimed for this cycle")
)

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
