package maintenance

import (
	"context"
	"time"

	"maintrack.org/internal/auth"
)

// Store persists tenants, equipment, schedules, work orders and
// intervention reports. List and
// count methods take an auth.Scope and must only return rows the scope
// allows. Implementations must be safe for concurrent use.
type Store interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	UpdateTenant(ctx context.Context, t *Tenant) error
	DeleteTenant(ctx context.Context, id string) error

	CreateEquipment(ctx context.Context, e *Equipment) error
	GetEquipment(ctx context.Context, id string) (*Equipment, error)
	ListEquipment(ctx context.Context, scope auth.Scope) ([]*Equipment, error)
	UpdateEquipment(ctx context.Context, e *Equipment) error
	DeleteEquipment(ctx context.Context, id string) error

	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	ListSchedules(ctx context.Context, scope auth.Scope) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id string) error

	// DueSchedules returns every schedule with next_due <= now, across all
	// tenants. Only the recurrence engine calls it.
	DueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error)

	// ExecuteSchedule atomically records one due cycle: it inserts wo and
	// advances the schedule's next_due to nextDue, but only while next_due
	// still equals observed. If another invocation advanced the schedule
	// first, nothing is written and ErrScheduleClaimed is returned.
	ExecuteSchedule(ctx context.Context, scheduleID string, observed time.Time, wo *WorkOrder, nextDue time.Time) error

	CreateWorkOrder(ctx context.Context, w *WorkOrder) error
	GetWorkOrder(ctx context.Context, id string) (*WorkOrder, error)
	ListWorkOrders(ctx context.Context, scope auth.Scope) ([]*WorkOrder, error)
	UpdateWorkOrder(ctx context.Context, w *WorkOrder) error
	DeleteWorkOrder(ctx context.Context, id string) error

	CreateReport(ctx context.Context, rp *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, scope auth.Scope) ([]*Report, error)
	UpdateReport(ctx context.Context, rp *Report) error
	DeleteReport(ctx context.Context, id string) error

	CountEquipment(ctx context.Context, scope auth.Scope) (int, error)
	CountWorkOrdersByStatus(ctx context.Context, scope auth.Scope) (map[WorkOrderStatus]int, error)
	CountSchedulesDueWithin(ctx context.Context, scope auth.Scope, from, until time.Time) (int, error)
}
