package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"maintrack.org/internal/auth"
	"maintrack.org/internal/ids"
)

var (
	elevatedActor = auth.Identity{Subject: "root", Role: auth.RoleElevated}
	t1Admin       = auth.Identity{Subject: "admin-1", Role: auth.RoleTenantAdmin, TenantID: "t1"}
	t1Tech        = auth.Identity{Subject: "tech-1", Role: auth.RoleTechnician, TenantID: "t1"}
	t2Admin       = auth.Identity{Subject: "admin-2", Role: auth.RoleTenantAdmin, TenantID: "t2"}
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	now := func() time.Time { return date(2025, time.June, 10) }
	engine := NewEngine(store, WithEngineClock(now))
	svc := NewService(store, engine, WithServiceClock(now))
	for _, id := range []string{"t1", "t2"} {
		tenant := &Tenant{ID: id, Name: "tenant " + id, CreatedAt: now(), UpdatedAt: now()}
		if err := store.CreateTenant(context.Background(), tenant); err != nil {
			t.Fatalf("seed tenant: %v", err)
		}
	}
	return svc, store
}

func seedEquipment(t *testing.T, store *MemoryStore, tenantID string) *Equipment {
	t.Helper()
	e := &Equipment{
		ID:       ids.New(),
		TenantID: tenantID,
		Name:     "press",
		Type:     "hydraulic",
	}
	if err := store.CreateEquipment(context.Background(), e); err != nil {
		t.Fatalf("seed equipment: %v", err)
	}
	return e
}

func TestCreateTenantElevatedOnly(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateTenant(context.Background(), t1Admin, NewTenant{Name: "acme"}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	tenant, err := svc.CreateTenant(context.Background(), elevatedActor, NewTenant{Name: "acme"})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if tenant.ID == "" || tenant.Name != "acme" {
		t.Fatalf("unexpected tenant: %+v", tenant)
	}
	if _, err := svc.CreateTenant(context.Background(), elevatedActor, NewTenant{Name: "ACME"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}
}

func TestListTenantsScoped(t *testing.T) {
	svc, _ := newTestService(t)
	all, err := svc.ListTenants(context.Background(), elevatedActor)
	if err != nil {
		t.Fatalf("ListTenants: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("elevated caller should see 2 tenants, got %d", len(all))
	}
	own, err := svc.ListTenants(context.Background(), t1Admin)
	if err != nil {
		t.Fatalf("ListTenants: %v", err)
	}
	if len(own) != 1 || own[0].ID != "t1" {
		t.Fatalf("tenant admin should see only t1, got %+v", own)
	}
}

func TestCreateEquipmentForcesActorTenant(t *testing.T) {
	svc, _ := newTestService(t)
	e, err := svc.CreateEquipment(context.Background(), t1Admin, NewEquipment{
		Name:     "lathe",
		Type:     "cnc",
		TenantID: "t2", // ignored for non-elevated callers
	})
	if err != nil {
		t.Fatalf("CreateEquipment: %v", err)
	}
	if e.TenantID != "t1" {
		t.Fatalf("tenant id = %q, want t1", e.TenantID)
	}
}

func TestCreateEquipmentElevatedRequiresTenant(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.CreateEquipment(context.Background(), elevatedActor, NewEquipment{Name: "lathe", Type: "cnc"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	e, err := svc.CreateEquipment(context.Background(), elevatedActor, NewEquipment{Name: "lathe", Type: "cnc", TenantID: "t2"})
	if err != nil {
		t.Fatalf("CreateEquipment: %v", err)
	}
	if e.TenantID != "t2" {
		t.Fatalf("tenant id = %q, want t2", e.TenantID)
	}
}

func TestEquipmentVisibilityScoped(t *testing.T) {
	svc, store := newTestService(t)
	seedEquipment(t, store, "t1")
	seedEquipment(t, store, "t1")
	other := seedEquipment(t, store, "t2")

	all, err := svc.ListEquipment(context.Background(), elevatedActor)
	if err != nil {
		t.Fatalf("ListEquipment: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("elevated caller should see 3, got %d", len(all))
	}
	mine, err := svc.ListEquipment(context.Background(), t1Tech)
	if err != nil {
		t.Fatalf("ListEquipment: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("t1 caller should see 2, got %d", len(mine))
	}
	// A foreign asset reads as absent, not as forbidden.
	if _, err := svc.GetEquipment(context.Background(), t1Tech, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEquipmentCrossTenantForbidden(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	name := "renamed"
	if _, err := svc.UpdateEquipment(context.Background(), t2Admin, e.ID, EquipmentPatch{Name: &name}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := svc.UpdateEquipment(context.Background(), t1Admin, e.ID, EquipmentPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateEquipment: %v", err)
	}
	if got.Name != "renamed" {
		t.Fatalf("name = %q", got.Name)
	}
}

func TestMoveEquipmentTenantElevatedOnly(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	target := "t2"
	if _, err := svc.UpdateEquipment(context.Background(), t1Admin, e.ID, EquipmentPatch{TenantID: &target}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := svc.UpdateEquipment(context.Background(), elevatedActor, e.ID, EquipmentPatch{TenantID: &target})
	if err != nil {
		t.Fatalf("UpdateEquipment: %v", err)
	}
	if got.TenantID != "t2" {
		t.Fatalf("tenant id = %q, want t2", got.TenantID)
	}
}

func TestCreateScheduleInheritsTenant(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	sched, err := svc.CreateSchedule(context.Background(), t1Admin, NewSchedule{
		EquipmentID: e.ID,
		Frequency:   "monthly",
		NextDue:     date(2025, time.July, 1),
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if sched.TenantID != "t1" || sched.EquipmentID != e.ID || sched.Frequency != Monthly {
		t.Fatalf("unexpected schedule: %+v", sched)
	}
}

func TestListSchedulesScoped(t *testing.T) {
	svc, store := newTestService(t)
	seedSchedule(t, store, "t1", Daily, date(2025, time.July, 1))
	seedSchedule(t, store, "t1", Weekly, date(2025, time.July, 2))
	seedSchedule(t, store, "t2", Monthly, date(2025, time.July, 3))

	all, err := svc.ListSchedules(context.Background(), elevatedActor)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("elevated caller should see 3, got %d", len(all))
	}
	mine, err := svc.ListSchedules(context.Background(), t1Tech)
	if err != nil {
		t.Fatalf("ListSchedules: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("t1 caller should see 2, got %d", len(mine))
	}
	for _, s := range mine {
		if s.TenantID != "t1" {
			t.Fatalf("foreign schedule leaked: %+v", s)
		}
	}
	// A tenant-scoped role without a tenant id cannot list at all.
	orphan := auth.Identity{Subject: "x", Role: auth.RoleTenantAdmin}
	if _, err := svc.ListSchedules(context.Background(), orphan); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateScheduleRejectsForeignEquipment(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t2")
	_, err := svc.CreateSchedule(context.Background(), t1Admin, NewSchedule{
		EquipmentID: e.ID,
		Frequency:   "weekly",
		NextDue:     date(2025, time.July, 1),
	})
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateScheduleValidation(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	cases := []struct {
		name string
		in   NewSchedule
	}{
		{"missing equipment", NewSchedule{Frequency: "daily", NextDue: date(2025, time.July, 1)}},
		{"bad frequency", NewSchedule{EquipmentID: e.ID, Frequency: "hourly", NextDue: date(2025, time.July, 1)}},
		{"zero next due", NewSchedule{EquipmentID: e.ID, Frequency: "daily"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateSchedule(context.Background(), t1Admin, tc.in); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateScheduleNeverMovesBackward(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	sched, err := svc.CreateSchedule(context.Background(), t1Admin, NewSchedule{
		EquipmentID: e.ID,
		Frequency:   "weekly",
		NextDue:     date(2025, time.July, 1),
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	back := date(2025, time.June, 1)
	if _, err := svc.UpdateSchedule(context.Background(), t1Admin, sched.ID, SchedulePatch{NextDue: &back}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	forward := date(2025, time.August, 1)
	got, err := svc.UpdateSchedule(context.Background(), t1Admin, sched.ID, SchedulePatch{NextDue: &forward})
	if err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	if !got.NextDue.Equal(forward) {
		t.Fatalf("next_due = %v, want %v", got.NextDue, forward)
	}
}

func TestCreateWorkOrderRecordsCreator(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	w, err := svc.CreateWorkOrder(context.Background(), t1Tech, NewWorkOrder{
		EquipmentID: e.ID,
		Type:        "corrective",
		PlannedDate: date(2025, time.June, 12),
		Description: "replace seal",
	})
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}
	if w.Origin != UserCreated || w.CreatorID != "tech-1" {
		t.Fatalf("unexpected work order: %+v", w)
	}
	if w.Status != StatusPending {
		t.Fatalf("default status = %q, want pending", w.Status)
	}
	if w.TenantID != "t1" {
		t.Fatalf("tenant id = %q, want t1", w.TenantID)
	}
}

func TestUpdateWorkOrderStatusFlat(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	w, err := svc.CreateWorkOrder(context.Background(), t1Tech, NewWorkOrder{
		EquipmentID: e.ID,
		Type:        "preventive",
		PlannedDate: date(2025, time.June, 12),
	})
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}
	// Status is a flat field: completed back to pending is allowed.
	for _, status := range []string{"completed", "pending", "in_progress"} {
		got, err := svc.UpdateWorkOrder(context.Background(), t1Tech, w.ID, WorkOrderPatch{Status: &status})
		if err != nil {
			t.Fatalf("UpdateWorkOrder(%s): %v", status, err)
		}
		if string(got.Status) != status {
			t.Fatalf("status = %q, want %q", got.Status, status)
		}
	}
	bad := "archived"
	if _, err := svc.UpdateWorkOrder(context.Background(), t1Tech, w.ID, WorkOrderPatch{Status: &bad}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteWorkOrderCrossTenantForbidden(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	w, err := svc.CreateWorkOrder(context.Background(), t1Admin, NewWorkOrder{
		EquipmentID: e.ID,
		Type:        "preventive",
		PlannedDate: date(2025, time.June, 12),
	})
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}
	if err := svc.DeleteWorkOrder(context.Background(), t2Admin, w.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteWorkOrder(context.Background(), t1Admin, w.ID); err != nil {
		t.Fatalf("DeleteWorkOrder: %v", err)
	}
}

func seedWorkOrder(t *testing.T, svc *Service, actor auth.Identity, equipmentID string) *WorkOrder {
	t.Helper()
	w, err := svc.CreateWorkOrder(context.Background(), actor, NewWorkOrder{
		EquipmentID: equipmentID,
		Type:        "corrective",
		PlannedDate: date(2025, time.June, 12),
	})
	if err != nil {
		t.Fatalf("seed work order: %v", err)
	}
	return w
}

func TestCreateReportInheritsTenantAndSubmitter(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	w := seedWorkOrder(t, svc, t1Admin, e.ID)

	rp, err := svc.CreateReport(context.Background(), t1Tech, NewReport{
		WorkOrderID:   w.ID,
		Description:   "replaced the worn seal",
		PartsReplaced: "seal kit SK-10",
		Duration:      "2h30m",
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if rp.TenantID != "t1" || rp.WorkOrderID != w.ID {
		t.Fatalf("unexpected report: %+v", rp)
	}
	if rp.SubmittedBy != "tech-1" {
		t.Fatalf("submitted_by = %q, want tech-1", rp.SubmittedBy)
	}

	named, err := svc.CreateReport(context.Background(), t1Tech, NewReport{
		WorkOrderID: w.ID,
		SubmittedBy: "contractor crew b",
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if named.SubmittedBy != "contractor crew b" {
		t.Fatalf("submitted_by = %q", named.SubmittedBy)
	}
}

func TestCreateReportRejectsForeignWorkOrder(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t2")
	w := seedWorkOrder(t, svc, t2Admin, e.ID)

	if _, err := svc.CreateReport(context.Background(), t1Tech, NewReport{WorkOrderID: w.ID}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.CreateReport(context.Background(), t1Tech, NewReport{}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReportVisibilityScoped(t *testing.T) {
	svc, store := newTestService(t)
	e1 := seedEquipment(t, store, "t1")
	e2 := seedEquipment(t, store, "t2")
	w1 := seedWorkOrder(t, svc, t1Admin, e1.ID)
	w2 := seedWorkOrder(t, svc, t2Admin, e2.ID)
	mine, err := svc.CreateReport(context.Background(), t1Tech, NewReport{WorkOrderID: w1.ID})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	foreign, err := svc.CreateReport(context.Background(), t2Admin, NewReport{WorkOrderID: w2.ID})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	all, err := svc.ListReports(context.Background(), elevatedActor)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("elevated caller should see 2, got %d", len(all))
	}
	visible, err := svc.ListReports(context.Background(), t1Tech)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != mine.ID {
		t.Fatalf("t1 caller should see only its report, got %+v", visible)
	}
	// A foreign report reads as absent, not as forbidden.
	if _, err := svc.GetReport(context.Background(), t1Tech, foreign.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReportCrossTenantForbidden(t *testing.T) {
	svc, store := newTestService(t)
	e := seedEquipment(t, store, "t1")
	w := seedWorkOrder(t, svc, t1Admin, e.ID)
	rp, err := svc.CreateReport(context.Background(), t1Tech, NewReport{WorkOrderID: w.ID})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	desc := "recalibrated after the seal swap"
	if _, err := svc.UpdateReport(context.Background(), t2Admin, rp.ID, ReportPatch{Description: &desc}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	got, err := svc.UpdateReport(context.Background(), t1Tech, rp.ID, ReportPatch{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateReport: %v", err)
	}
	if got.Description != desc {
		t.Fatalf("description = %q", got.Description)
	}
	if err := svc.DeleteReport(context.Background(), t2Admin, rp.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.DeleteReport(context.Background(), t1Tech, rp.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
}

func TestRunDueManualElevatedOnly(t *testing.T) {
	svc, store := newTestService(t)
	seedSchedule(t, store, "t1", Daily, date(2025, time.June, 9))
	if _, err := svc.RunDue(context.Background(), t1Admin); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	report, err := svc.RunDue(context.Background(), elevatedActor)
	if err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestStatsScoped(t *testing.T) {
	svc, store := newTestService(t)
	e1 := seedEquipment(t, store, "t1")
	seedEquipment(t, store, "t2")
	seedSchedule(t, store, "t1", Weekly, date(2025, time.June, 12)) // due within a week
	seedSchedule(t, store, "t1", Weekly, date(2025, time.July, 12))
	if _, err := svc.CreateWorkOrder(context.Background(), t1Admin, NewWorkOrder{
		EquipmentID: e1.ID,
		Type:        "corrective",
		PlannedDate: date(2025, time.June, 12),
	}); err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}

	stats, err := svc.Stats(context.Background(), t1Admin)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.EquipmentCount != 1 {
		t.Fatalf("equipment count = %d, want 1", stats.EquipmentCount)
	}
	if stats.WorkOrdersByStatus[StatusPending] != 1 {
		t.Fatalf("pending count = %d, want 1", stats.WorkOrdersByStatus[StatusPending])
	}
	if stats.DueWithinWeek != 1 {
		t.Fatalf("due within week = %d, want 1", stats.DueWithinWeek)
	}

	global, err := svc.Stats(context.Background(), elevatedActor)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if global.EquipmentCount != 2 {
		t.Fatalf("global equipment count = %d, want 2", global.EquipmentCount)
	}
}
