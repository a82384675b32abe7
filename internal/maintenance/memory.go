package maintenance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"maintrack.org/internal/auth"
)

// MemoryStore is an in-memory Store for tests and local runs without
// Postgres.
type MemoryStore struct {
	mu         sync.RWMutex
	tenants    map[string]*Tenant
	equipment  map[string]*Equipment
	schedules  map[string]*Schedule
	workOrders map[string]*WorkOrder
	reports    map[string]*Report
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:    make(map[string]*Tenant),
		equipment:  make(map[string]*Equipment),
		schedules:  make(map[string]*Schedule),
		workOrders: make(map[string]*WorkOrder),
		reports:    make(map[string]*Report),
	}
}

func (m *MemoryStore) CreateTenant(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if strings.EqualFold(existing.Name, t.Name) {
			return ErrConflict
		}
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTenant(_ context.Context, id string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListTenants(_ context.Context) ([]*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateTenant(_ context.Context, t *Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range m.tenants {
		if id != t.ID && strings.EqualFold(existing.Name, t.Name) {
			return ErrConflict
		}
	}
	cp := *t
	m.tenants[t.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteTenant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		return ErrNotFound
	}
	delete(m.tenants, id)
	return nil
}

func (m *MemoryStore) CreateEquipment(_ context.Context, e *Equipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.equipment[e.ID] = &cp
	return nil
}

func (m *MemoryStore) GetEquipment(_ context.Context, id string) (*Equipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.equipment[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) ListEquipment(_ context.Context, scope auth.Scope) ([]*Equipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Equipment
	for _, e := range m.equipment {
		if !scope.Allows(e.TenantID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateEquipment(_ context.Context, e *Equipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.equipment[e.ID]; !ok {
		return ErrNotFound
	}
	cp := *e
	m.equipment[e.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteEquipment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.equipment[id]; !ok {
		return ErrNotFound
	}
	delete(m.equipment, id)
	return nil
}

func (m *MemoryStore) CreateSchedule(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSchedule(_ context.Context, id string) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListSchedules(_ context.Context, scope auth.Scope) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Schedule
	for _, s := range m.schedules {
		if !scope.Allows(s.TenantID) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateSchedule(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.schedules[s.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSchedule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *MemoryStore) DueSchedules(_ context.Context, now time.Time) ([]*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Schedule
	for _, s := range m.schedules {
		if !s.NextDue.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) ExecuteSchedule(_ context.Context, scheduleID string, observed time.Time, wo *WorkOrder, nextDue time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[scheduleID]
	if !ok {
		return ErrNotFound
	}
	if !s.NextDue.Equal(observed) {
		return ErrScheduleClaimed
	}
	cp := *wo
	m.workOrders[wo.ID] = &cp
	s.NextDue = nextDue
	s.UpdatedAt = wo.CreatedAt
	return nil
}

func (m *MemoryStore) CreateWorkOrder(_ context.Context, w *WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.workOrders[w.ID] = &cp
	return nil
}

func (m *MemoryStore) GetWorkOrder(_ context.Context, id string) (*WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workOrders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) ListWorkOrders(_ context.Context, scope auth.Scope) ([]*WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*WorkOrder
	for _, w := range m.workOrders {
		if !scope.Allows(w.TenantID) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateWorkOrder(_ context.Context, w *WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workOrders[w.ID]; !ok {
		return ErrNotFound
	}
	cp := *w
	m.workOrders[w.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteWorkOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workOrders[id]; !ok {
		return ErrNotFound
	}
	delete(m.workOrders, id)
	return nil
}

func (m *MemoryStore) CreateReport(_ context.Context, rp *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rp
	m.reports[rp.ID] = &cp
	return nil
}

func (m *MemoryStore) GetReport(_ context.Context, id string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rp, ok := m.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rp
	return &cp, nil
}

func (m *MemoryStore) ListReports(_ context.Context, scope auth.Scope) ([]*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Report
	for _, rp := range m.reports {
		if !scope.Allows(rp.TenantID) {
			continue
		}
		cp := *rp
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateReport(_ context.Context, rp *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[rp.ID]; !ok {
		return ErrNotFound
	}
	cp := *rp
	m.reports[rp.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteReport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *MemoryStore) CountEquipment(_ context.Context, scope auth.Scope) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.equipment {
		if scope.Allows(e.TenantID) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountWorkOrdersByStatus(_ context.Context, scope auth.Scope) (map[WorkOrderStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[WorkOrderStatus]int)
	for _, w := range m.workOrders {
		if scope.Allows(w.TenantID) {
			out[w.Status]++
		}
	}
	return out, nil
}

func (m *MemoryStore) CountSchedulesDueWithin(_ context.Context, scope auth.Scope, from, until time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.schedules {
		if !scope.Allows(s.TenantID) {
			continue
		}
		if !s.NextDue.Before(from) && !s.NextDue.After(until) {
			n++
		}
	}
	return n, nil
}
