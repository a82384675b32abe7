package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"maintrack.org/internal/auth"
	"maintrack.org/internal/ids"
)

// Service is the tenant-aware application surface over the store. Every
// read is filtered through the caller's scope; every write checks tenant
// ownership before touching the store.
type Service struct {
	store  Store
	engine *Engine
	now    func() time.Time
}

// ServiceOption adjusts service construction.
type ServiceOption func(*Service)

// WithServiceClock replaces the service's time source.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service over the given store and engine.
func NewService(store Store, engine *Engine, opts ...ServiceOption) *Service {
	s := &Service{store: store, engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunDue triggers one recurrence engine pass. Only Elevated identities may
// trigger it manually; the cron runner calls the engine directly.
func (s *Service) RunDue(ctx context.Context, actor auth.Identity) (RunReport, error) {
	if !actor.Elevated() {
		return RunReport{}, fmt.Errorf("%w: scheduler runs require elevated access", auth.ErrForbidden)
	}
	return s.engine.RunDue(ctx, "manual")
}

// NewTenant is the input for tenant creation.
type NewTenant struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CreateTenant registers a new organization. Elevated only.
func (s *Service) CreateTenant(ctx context.Context, actor auth.Identity, in NewTenant) (*Tenant, error) {
	if !actor.Elevated() {
		return nil, fmt.Errorf("%w: tenant management requires elevated access", auth.ErrForbidden)
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, Invalid("name", "must not be empty")
	}
	now := s.now().UTC()
	t := &Tenant{
		ID:        ids.New(),
		Name:      in.Name,
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTenant returns one tenant. Non-elevated callers only see their own.
func (s *Service) GetTenant(ctx context.Context, actor auth.Identity, id string) (*Tenant, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(id) {
		return nil, ErrNotFound
	}
	return s.store.GetTenant(ctx, id)
}

// ListTenants returns all tenants for Elevated callers and the caller's own
// tenant otherwise.
func (s *Service) ListTenants(ctx context.Context, actor auth.Identity) ([]*Tenant, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	if scope.All {
		return s.store.ListTenants(ctx)
	}
	t, err := s.store.GetTenant(ctx, scope.TenantID)
	if err != nil {
		return nil, err
	}
	return []*Tenant{t}, nil
}

// TenantPatch carries optional tenant updates.
type TenantPatch struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// UpdateTenant mutates a tenant. Elevated only.
func (s *Service) UpdateTenant(ctx context.Context, actor auth.Identity, id string, patch TenantPatch) (*Tenant, error) {
	if !actor.Elevated() {
		return nil, fmt.Errorf("%w: tenant management requires elevated access", auth.ErrForbidden)
	}
	t, err := s.store.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, Invalid("name", "must not be empty")
		}
		t.Name = name
	}
	if patch.Address != nil {
		t.Address = strings.TrimSpace(*patch.Address)
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTenant removes a tenant. Elevated only.
func (s *Service) DeleteTenant(ctx context.Context, actor auth.Identity, id string) error {
	if !actor.Elevated() {
		return fmt.Errorf("%w: tenant management requires elevated access", auth.ErrForbidden)
	}
	return s.store.DeleteTenant(ctx, id)
}

// NewEquipment is the input for equipment creation. TenantID is only
// honored for Elevated callers; everyone else creates inside their own
// tenant.
type NewEquipment struct {
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	CommissionedAt time.Time `json:"commissioned_at"`
	Location       string    `json:"location"`
	TenantID       string    `json:"tenant_id"`
}

// CreateEquipment registers an asset under the resolved tenant.
func (s *Service) CreateEquipment(ctx context.Context, actor auth.Identity, in NewEquipment) (*Equipment, error) {
	tenantID, err := auth.ResolveTenantID(actor, in.TenantID)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Type = strings.TrimSpace(in.Type)
	if in.Name == "" {
		return nil, Invalid("name", "must not be empty")
	}
	if in.Type == "" {
		return nil, Invalid("type", "must not be empty")
	}
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e := &Equipment{
		ID:             ids.New(),
		TenantID:       tenantID,
		Name:           in.Name,
		Type:           in.Type,
		CommissionedAt: in.CommissionedAt,
		Location:       strings.TrimSpace(in.Location),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateEquipment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEquipment returns one asset if the caller's scope allows it.
func (s *Service) GetEquipment(ctx context.Context, actor auth.Identity, id string) (*Equipment, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	e, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(e.TenantID) {
		return nil, ErrNotFound
	}
	return e, nil
}

// ListEquipment returns the caller's visible assets.
func (s *Service) ListEquipment(ctx context.Context, actor auth.Identity) ([]*Equipment, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListEquipment(ctx, scope)
}

// EquipmentPatch carries optional equipment updates. TenantID moves the
// asset to another tenant and is Elevated-only.
type EquipmentPatch struct {
	Name           *string    `json:"name"`
	Type           *string    `json:"type"`
	CommissionedAt *time.Time `json:"commissioned_at"`
	Location       *string    `json:"location"`
	TenantID       *string    `json:"tenant_id"`
}

// UpdateEquipment mutates an asset inside the caller's tenant.
func (s *Service) UpdateEquipment(ctx context.Context, actor auth.Identity, id string, patch EquipmentPatch) (*Equipment, error) {
	e, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, e.TenantID); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, Invalid("name", "must not be empty")
		}
		e.Name = name
	}
	if patch.Type != nil {
		typ := strings.TrimSpace(*patch.Type)
		if typ == "" {
			return nil, Invalid("type", "must not be empty")
		}
		e.Type = typ
	}
	if patch.CommissionedAt != nil {
		e.CommissionedAt = *patch.CommissionedAt
	}
	if patch.Location != nil {
		e.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.TenantID != nil && *patch.TenantID != e.TenantID {
		if !actor.Elevated() {
			return nil, fmt.Errorf("%w: cross-tenant access", auth.ErrForbidden)
		}
		if _, err := s.store.GetTenant(ctx, *patch.TenantID); err != nil {
			return nil, err
		}
		e.TenantID = *patch.TenantID
	}
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEquipment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEquipment removes an asset inside the caller's tenant.
func (s *Service) DeleteEquipment(ctx context.Context, actor auth.Identity, id string) error {
	e, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanMutate(actor, e.TenantID); err != nil {
		return err
	}
	return s.store.DeleteEquipment(ctx, id)
}

// NewSchedule is the input for schedule creation. The schedule's tenant is
// inherited from the owning equipment.
type NewSchedule struct {
	EquipmentID string    `json:"equipment_id"`
	Frequency   string    `json:"frequency"`
	NextDue     time.Time `json:"next_due"`
}

// CreateSchedule attaches a recurrence rule to an asset the caller can
// mutate.
func (s *Service) CreateSchedule(ctx context.Context, actor auth.Identity, in NewSchedule) (*Schedule, error) {
	if strings.TrimSpace(in.EquipmentID) == "" {
		return nil, Invalid("equipment_id", "must not be empty")
	}
	freq, err := ParseFrequency(in.Frequency)
	if err != nil {
		return nil, err
	}
	if in.NextDue.IsZero() {
		return nil, Invalid("next_due", "must not be empty")
	}
	e, err := s.store.GetEquipment(ctx, in.EquipmentID)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, e.TenantID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sched := &Schedule{
		ID:          ids.New(),
		TenantID:    e.TenantID,
		EquipmentID: e.ID,
		Frequency:   freq,
		NextDue:     in.NextDue.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// GetSchedule returns one schedule if the caller's scope allows it.
func (s *Service) GetSchedule(ctx context.Context, actor auth.Identity, id string) (*Schedule, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	sched, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(sched.TenantID) {
		return nil, ErrNotFound
	}
	return sched, nil
}

// ListSchedules returns the caller's visible schedules.
func (s *Service) ListSchedules(ctx context.Context, actor auth.Identity) ([]*Schedule, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListSchedules(ctx, scope)
}

// SchedulePatch carries optional schedule updates.
type SchedulePatch struct {
	Frequency *string    `json:"frequency"`
	NextDue   *time.Time `json:"next_due"`
}

// UpdateSchedule mutates a schedule inside the caller's tenant. The due
// date can be postponed by hand but never moved backward.
func (s *Service) UpdateSchedule(ctx context.Context, actor auth.Identity, id string, patch SchedulePatch) (*Schedule, error) {
	sched, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, sched.TenantID); err != nil {
		return nil, err
	}
	if patch.Frequency != nil {
		freq, err := ParseFrequency(*patch.Frequency)
		if err != nil {
			return nil, err
		}
		sched.Frequency = freq
	}
	if patch.NextDue != nil {
		next := patch.NextDue.UTC()
		if next.Before(sched.NextDue) {
			return nil, Invalid("next_due", "must not move backward")
		}
		sched.NextDue = next
	}
	sched.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// DeleteSchedule removes a schedule inside the caller's tenant.
func (s *Service) DeleteSchedule(ctx context.Context, actor auth.Identity, id string) error {
	sched, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanMutate(actor, sched.TenantID); err != nil {
		return err
	}
	return s.store.DeleteSchedule(ctx, id)
}

// NewWorkOrder is the input for a hand-created work order. The tenant is
// inherited from the referenced equipment.
type NewWorkOrder struct {
	EquipmentID string    `json:"equipment_id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	PlannedDate time.Time `json:"planned_date"`
	DueDate     time.Time `json:"due_date"`
	Description string    `json:"description"`
}

// CreateWorkOrder records a maintenance task created by the acting user.
func (s *Service) CreateWorkOrder(ctx context.Context, actor auth.Identity, in NewWorkOrder) (*WorkOrder, error) {
	if strings.TrimSpace(in.EquipmentID) == "" {
		return nil, Invalid("equipment_id", "must not be empty")
	}
	typ, err := ParseWorkOrderType(in.Type)
	if err != nil {
		return nil, err
	}
	status := StatusPending
	if strings.TrimSpace(in.Status) != "" {
		if status, err = ParseWorkOrderStatus(in.Status); err != nil {
			return nil, err
		}
	}
	if in.PlannedDate.IsZero() {
		return nil, Invalid("planned_date", "must not be empty")
	}
	e, err := s.store.GetEquipment(ctx, in.EquipmentID)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, e.TenantID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	w := &WorkOrder{
		ID:          ids.New(),
		TenantID:    e.TenantID,
		EquipmentID: e.ID,
		Type:        typ,
		Status:      status,
		Origin:      UserCreated,
		PlannedDate: in.PlannedDate.UTC(),
		DueDate:     in.DueDate.UTC(),
		Description: strings.TrimSpace(in.Description),
		CreatorID:   actor.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateWorkOrder(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWorkOrder returns one work order if the caller's scope allows it.
func (s *Service) GetWorkOrder(ctx context.Context, actor auth.Identity, id string) (*WorkOrder, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	w, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(w.TenantID) {
		return nil, ErrNotFound
	}
	return w, nil
}

// ListWorkOrders returns the caller's visible work orders.
func (s *Service) ListWorkOrders(ctx context.Context, actor auth.Identity) ([]*WorkOrder, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListWorkOrders(ctx, scope)
}

// WorkOrderPatch carries optional work order updates.
type WorkOrderPatch struct {
	Type        *string    `json:"type"`
	Status      *string    `json:"status"`
	PlannedDate *time.Time `json:"planned_date"`
	DueDate     *time.Time `json:"due_date"`
	Description *string    `json:"description"`
}

// UpdateWorkOrder mutates a work order inside the caller's tenant.
func (s *Service) UpdateWorkOrder(ctx context.Context, actor auth.Identity, id string, patch WorkOrderPatch) (*WorkOrder, error) {
	w, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, w.TenantID); err != nil {
		return nil, err
	}
	if patch.Type != nil {
		typ, err := ParseWorkOrderType(*patch.Type)
		if err != nil {
			return nil, err
		}
		w.Type = typ
	}
	if patch.Status != nil {
		status, err := ParseWorkOrderStatus(*patch.Status)
		if err != nil {
			return nil, err
		}
		w.Status = status
	}
	if patch.PlannedDate != nil {
		w.PlannedDate = patch.PlannedDate.UTC()
	}
	if patch.DueDate != nil {
		w.DueDate = patch.DueDate.UTC()
	}
	if patch.Description != nil {
		w.Description = strings.TrimSpace(*patch.Description)
	}
	w.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateWorkOrder(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// DeleteWorkOrder removes a work order inside the caller's tenant.
func (s *Service) DeleteWorkOrder(ctx context.Context, actor auth.Identity, id string) error {
	w, err := s.store.GetWorkOrder(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanMutate(actor, w.TenantID); err != nil {
		return err
	}
	return s.store.DeleteWorkOrder(ctx, id)
}

// NewReport is the input for an intervention report. The tenant is
// inherited from the referenced work order.
type NewReport struct {
	WorkOrderID   string `json:"work_order_id"`
	Description   string `json:"description"`
	PartsReplaced string `json:"parts_replaced"`
	Duration      string `json:"duration"`
	SubmittedBy   string `json:"submitted_by"`
}

// CreateReport records what was done against a work order the caller can
// mutate. SubmittedBy defaults to the acting user.
func (s *Service) CreateReport(ctx context.Context, actor auth.Identity, in NewReport) (*Report, error) {
	if strings.TrimSpace(in.WorkOrderID) == "" {
		return nil, Invalid("work_order_id", "must not be empty")
	}
	wo, err := s.store.GetWorkOrder(ctx, in.WorkOrderID)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, wo.TenantID); err != nil {
		return nil, err
	}
	submittedBy := strings.TrimSpace(in.SubmittedBy)
	if submittedBy == "" {
		submittedBy = actor.Subject
	}
	now := s.now().UTC()
	rp := &Report{
		ID:            ids.New(),
		TenantID:      wo.TenantID,
		WorkOrderID:   wo.ID,
		Description:   strings.TrimSpace(in.Description),
		PartsReplaced: strings.TrimSpace(in.PartsReplaced),
		Duration:      strings.TrimSpace(in.Duration),
		SubmittedBy:   submittedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateReport(ctx, rp); err != nil {
		return nil, err
	}
	return rp, nil
}

// GetReport returns one report if the caller's scope allows it.
func (s *Service) GetReport(ctx context.Context, actor auth.Identity, id string) (*Report, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	rp, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Allows(rp.TenantID) {
		return nil, ErrNotFound
	}
	return rp, nil
}

// ListReports returns the caller's visible reports.
func (s *Service) ListReports(ctx context.Context, actor auth.Identity) ([]*Report, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListReports(ctx, scope)
}

// ReportPatch carries optional report updates. The work order binding and
// submitter are fixed at creation.
type ReportPatch struct {
	Description   *string `json:"description"`
	PartsReplaced *string `json:"parts_replaced"`
	Duration      *string `json:"duration"`
}

// UpdateReport mutates a report inside the caller's tenant.
func (s *Service) UpdateReport(ctx context.Context, actor auth.Identity, id string, patch ReportPatch) (*Report, error) {
	rp, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.CanMutate(actor, rp.TenantID); err != nil {
		return nil, err
	}
	if patch.Description != nil {
		rp.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.PartsReplaced != nil {
		rp.PartsReplaced = strings.TrimSpace(*patch.PartsReplaced)
	}
	if patch.Duration != nil {
		rp.Duration = strings.TrimSpace(*patch.Duration)
	}
	rp.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateReport(ctx, rp); err != nil {
		return nil, err
	}
	return rp, nil
}

// DeleteReport removes a report inside the caller's tenant.
func (s *Service) DeleteReport(ctx context.Context, actor auth.Identity, id string) error {
	rp, err := s.store.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.CanMutate(actor, rp.TenantID); err != nil {
		return err
	}
	return s.store.DeleteReport(ctx, id)
}

// Stats aggregates the caller's visible maintenance load.
type Stats struct {
	EquipmentCount     int                     `json:"equipment_count"`
	WorkOrdersByStatus map[WorkOrderStatus]int `json:"work_orders_by_status"`
	DueWithinWeek      int                     `json:"due_within_week"`
}

// Stats returns dashboard aggregates filtered to the caller's scope.
func (s *Service) Stats(ctx context.Context, actor auth.Identity) (*Stats, error) {
	scope, err := auth.ReadScope(actor)
	if err != nil {
		return nil, err
	}
	equipment, err := s.store.CountEquipment(ctx, scope)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.CountWorkOrdersByStatus(ctx, scope)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	due, err := s.store.CountSchedulesDueWithin(ctx, scope, now, now.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	return &Stats{
		EquipmentCount:     equipment,
		WorkOrdersByStatus: byStatus,
		DueWithinWeek:      due,
	}, nil
}
