package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"maintrack.org/internal/audit"
	"maintrack.org/internal/auth"
	"maintrack.org/internal/maintenance"
)

// --- tenants ---

func (a *API) handleTenantsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createTenant(w, r)
	case http.MethodGet:
		a.listTenants(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTenantResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/v1/tenants/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getTenant(w, r, id)
	case http.MethodPatch:
		a.updateTenant(w, r, id)
	case http.MethodDelete:
		a.deleteTenant(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createTenant(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req maintenance.NewTenant
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenant, err := a.maint.CreateTenant(r.Context(), actor, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.create", map[string]any{"id": tenant.ID, "name": tenant.Name})
	w.Header().Set("Location", "/v1/tenants/"+tenant.ID)
	writeJSON(w, http.StatusCreated, tenant)
}

func (a *API) listTenants(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	tenants, err := a.maint.ListTenants(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": tenants})
}

func (a *API) getTenant(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	tenant, err := a.maint.GetTenant(r.Context(), actor, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (a *API) updateTenant(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var patch maintenance.TenantPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenant, err := a.maint.UpdateTenant(r.Context(), actor, id, patch)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.update", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, tenant)
}

func (a *API) deleteTenant(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.maint.DeleteTenant(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "tenant.delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// --- equipment ---

func (a *API) handleEquipmentCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createEquipment(w, r)
	case http.MethodGet:
		a.listEquipment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleEquipmentResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/v1/equipment/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getEquipment(w, r, id)
	case http.MethodPatch:
		a.updateEquipment(w, r, id)
	case http.MethodDelete:
		a.deleteEquipment(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createEquipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req maintenance.NewEquipment
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	equipment, err := a.maint.CreateEquipment(r.Context(), actor, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "equipment.create", map[string]any{"id": equipment.ID})
	w.Header().Set("Location", "/v1/equipment/"+equipment.ID)
	writeJSON(w, http.StatusCreated, equipment)
}

func (a *API) listEquipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	items, err := a.maint.ListEquipment(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getEquipment(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	equipment, err := a.maint.GetEquipment(r.Context(), actor, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, equipment)
}

func (a *API) updateEquipment(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var patch maintenance.EquipmentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	equipment, err := a.maint.UpdateEquipment(r.Context(), actor, id, patch)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "equipment.update", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, equipment)
}

func (a *API) deleteEquipment(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.maint.DeleteEquipment(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "equipment.delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// --- schedules ---

func (a *API) handleSchedulesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createSchedule(w, r)
	case http.MethodGet:
		a.listSchedules(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleScheduleResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/v1/schedules/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getSchedule(w, r, id)
	case http.MethodPatch:
		a.updateSchedule(w, r, id)
	case http.MethodDelete:
		a.deleteSchedule(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createSchedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req maintenance.NewSchedule
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	schedule, err := a.maint.CreateSchedule(r.Context(), actor, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "schedule.create", map[string]any{
		"id":           schedule.ID,
		"equipment_id": schedule.EquipmentID,
		"frequency":    string(schedule.Frequency),
	})
	w.Header().Set("Location", "/v1/schedules/"+schedule.ID)
	writeJSON(w, http.StatusCreated, schedule)
}

func (a *API) listSchedules(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	items, err := a.maint.ListSchedules(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getSchedule(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	schedule, err := a.maint.GetSchedule(r.Context(), actor, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) updateSchedule(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var patch maintenance.SchedulePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	schedule, err := a.maint.UpdateSchedule(r.Context(), actor, id, patch)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "schedule.update", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, schedule)
}

func (a *API) deleteSchedule(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.maint.DeleteSchedule(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "schedule.delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// --- work orders ---

func (a *API) handleWorkOrdersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createWorkOrder(w, r)
	case http.MethodGet:
		a.listWorkOrders(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleWorkOrderResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/v1/workorders/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getWorkOrder(w, r, id)
	case http.MethodPatch:
		a.updateWorkOrder(w, r, id)
	case http.MethodDelete:
		a.deleteWorkOrder(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createWorkOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req maintenance.NewWorkOrder
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wo, err := a.maint.CreateWorkOrder(r.Context(), actor, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "workorder.create", map[string]any{
		"id":           wo.ID,
		"equipment_id": wo.EquipmentID,
		"type":         string(wo.Type),
	})
	w.Header().Set("Location", "/v1/workorders/"+wo.ID)
	writeJSON(w, http.StatusCreated, wo)
}

func (a *API) listWorkOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	items, err := a.maint.ListWorkOrders(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getWorkOrder(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	wo, err := a.maint.GetWorkOrder(r.Context(), actor, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

func (a *API) updateWorkOrder(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var patch maintenance.WorkOrderPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	wo, err := a.maint.UpdateWorkOrder(r.Context(), actor, id, patch)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "workorder.update", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, wo)
}

func (a *API) deleteWorkOrder(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.maint.DeleteWorkOrder(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "workorder.delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// --- reports ---

func (a *API) handleReportsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createReport(w, r)
	case http.MethodGet:
		a.listReports(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleReportResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(w, r, "/v1/reports/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getReport(w, r, id)
	case http.MethodPatch:
		a.updateReport(w, r, id)
	case http.MethodDelete:
		a.deleteReport(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) createReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var req maintenance.NewReport
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.maint.CreateReport(r.Context(), actor, req)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "report.create", map[string]any{
		"id":            report.ID,
		"work_order_id": report.WorkOrderID,
	})
	w.Header().Set("Location", "/v1/reports/"+report.ID)
	writeJSON(w, http.StatusCreated, report)
}

func (a *API) listReports(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	items, err := a.maint.ListReports(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getReport(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	report, err := a.maint.GetReport(r.Context(), actor, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) updateReport(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	var patch maintenance.ReportPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	report, err := a.maint.UpdateReport(r.Context(), actor, id, patch)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "report.update", map[string]any{"id": id})
	writeJSON(w, http.StatusOK, report)
}

func (a *API) deleteReport(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	if err := a.maint.DeleteReport(r.Context(), actor, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "report.delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// --- scheduler / stats ---

func (a *API) handleSchedulerRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	report, err := a.maint.RunDue(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "scheduler.run", map[string]any{
		"processed": report.Processed,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"as_of":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := a.identity(w, r)
	if !ok {
		return
	}
	stats, err := a.maint.Stats(r.Context(), actor)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

// resourceID extracts the trailing id from a resource path; subresources
// are rejected here.
func resourceID(w http.ResponseWriter, r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case maintenance.IsValidation(err), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, maintenance.ErrConflict), errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, maintenance.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
