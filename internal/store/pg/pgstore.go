// Package pg implements the maintenance store on PostgreSQL via database/sql
// with the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"maintrack.org/internal/auth"
	"maintrack.org/internal/maintenance"
)

// Store implements maintenance.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ maintenance.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func rowsAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return maintenance.ErrNotFound
	}
	return nil
}

func (s *Store) CreateTenant(ctx context.Context, t *maintenance.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		insert into tenants(id, name, address, created_at, updated_at)
		values($1, $2, $3, $4, $5)
	`, t.ID, t.Name, t.Address, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return maintenance.ErrConflict
	}
	return err
}

func (s *Store) GetTenant(ctx context.Context, id string) (*maintenance.Tenant, error) {
	var t maintenance.Tenant
	err := s.db.QueryRowContext(ctx, `
		select id, name, address, created_at, updated_at
		from tenants where id=$1
	`, id).Scan(&t.ID, &t.Name, &t.Address, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, maintenance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]*maintenance.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, address, created_at, updated_at
		from tenants order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*maintenance.Tenant
	for rows.Next() {
		var t maintenance.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Address, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &t)
	}
	return res, rows.Err()
}

func (s *Store) UpdateTenant(ctx context.Context, t *maintenance.Tenant) error {
	res, err := s.db.ExecContext(ctx, `
		update tenants set name=$2, address=$3, updated_at=$4
		where id=$1
	`, t.ID, t.Name, t.Address, t.UpdatedAt)
	if isUniqueViolation(err) {
		return maintenance.ErrConflict
	}
	return rowsAffected(res, err)
}

func (s *Store) DeleteTenant(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tenants where id=$1`, id)
	return rowsAffected(res, err)
}

func (s *Store) CreateEquipment(ctx context.Context, e *maintenance.Equipment) error {
	_, err := s.db.ExecContext(ctx, `
		insert into equipment(id, tenant_id, name, type, commissioned_at, location, created_at, updated_at)
		values($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.TenantID, e.Name, e.Type, nullTime(e.CommissionedAt), e.Location, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) GetEquipment(ctx context.Context, id string) (*maintenance.Equipment, error) {
	return scanEquipment(s.db.QueryRowContext(ctx, `
		select id, tenant_id, name, type, commissioned_at, location, created_at, updated_at
		from equipment where id=$1
	`, id))
}

func (s *Store) ListEquipment(ctx context.Context, scope auth.Scope) ([]*maintenance.Equipment, error) {
	query := `
		select id, tenant_id, name, type, commissioned_at, location, created_at, updated_at
		from equipment`
	var args []any
	if !scope.All {
		query += ` where tenant_id=$1`
		args = append(args, scope.TenantID)
	}
	query += ` order by created_at asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*maintenance.Equipment
	for rows.Next() {
		var e maintenance.Equipment
		var commissioned sql.NullTime
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.Type, &commissioned, &e.Location, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.CommissionedAt = commissioned.Time
		res = append(res, &e)
	}
	return res, rows.Err()
}

func (s *Store) UpdateEquipment(ctx context.Context, e *maintenance.Equipment) error {
	res, err := s.db.ExecContext(ctx, `
		update equipment set tenant_id=$2, name=$3, type=$4, commissioned_at=$5, location=$6, updated_at=$7
		where id=$1
	`, e.ID, e.TenantID, e.Name, e.Type, nullTime(e.CommissionedAt), e.Location, e.UpdatedAt)
	return rowsAffected(res, err)
}

func (s *Store) DeleteEquipment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from equipment where id=$1`, id)
	return rowsAffected(res, err)
}

func (s *Store) CreateSchedule(ctx context.Context, sc *maintenance.Schedule) error {
	_, err := s.db.ExecContext(ctx, `
		insert into schedules(id, tenant_id, equipment_id, frequency, next_due, created_at, updated_at)
		values($1, $2, $3, $4, $5, $6, $7)
	`, sc.ID, sc.TenantID, sc.EquipmentID, string(sc.Frequency), sc.NextDue, sc.CreatedAt, sc.UpdatedAt)
	return err
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*maintenance.Schedule, error) {
	return scanSchedule(s.db.QueryRowContext(ctx, `
		select id, tenant_id, equipment_id, frequency, next_due, created_at, updated_at
		from schedules where id=$1
	`, id))
}

func (s *Store) ListSchedules(ctx context.Context, scope auth.Scope) ([]*maintenance.Schedule, error) {
	query := `
		select id, tenant_id, equipment_id, frequency, next_due, created_at, updated_at
		from schedules`
	var args []any
	if !scope.All {
		query += ` where tenant_id=$1`
		args = append(args, scope.TenantID)
	}
	query += ` order by next_due asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *Store) DueSchedules(ctx context.Context, now time.Time) ([]*maintenance.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, tenant_id, equipment_id, frequency, next_due, created_at, updated_at
		from schedules where next_due <= $1 order by next_due asc
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *Store) UpdateSchedule(ctx context.Context, sc *maintenance.Schedule) error {
	res, err := s.db.ExecContext(ctx, `
		update schedules set frequency=$2, next_due=$3, updated_at=$4
		where id=$1
	`, sc.ID, string(sc.Frequency), sc.NextDue, sc.UpdatedAt)
	return rowsAffected(res, err)
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from schedules where id=$1`, id)
	return rowsAffected(res, err)
}

// ExecuteSchedule advances one due cycle in a single transaction. The
// conditional update claims the cycle: when a concurrent run already moved
// next_due past the observed value, zero rows match and the whole
// transaction rolls back without writing the work order.
func (s *Store) ExecuteSchedule(ctx context.Context, scheduleID string, observed time.Time, wo *maintenance.WorkOrder, nextDue time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		update schedules set next_due=$3, updated_at=$4
		where id=$1 and next_due=$2
	`, scheduleID, observed, nextDue, wo.CreatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a lost race from a schedule deleted underneath us.
		var exists bool
		if err := tx.QueryRowContext(ctx, `select exists(select 1 from schedules where id=$1)`, scheduleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return maintenance.ErrNotFound
		}
		return maintenance.ErrScheduleClaimed
	}

	if err := insertWorkOrder(ctx, tx, wo); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) CreateWorkOrder(ctx context.Context, w *maintenance.WorkOrder) error {
	return insertWorkOrder(ctx, s.db, w)
}

func (s *Store) GetWorkOrder(ctx context.Context, id string) (*maintenance.WorkOrder, error) {
	return scanWorkOrder(s.db.QueryRowContext(ctx, `
		select id, tenant_id, equipment_id, type, status, origin, planned_date, due_date, description, creator_id, created_at, updated_at
		from work_orders where id=$1
	`, id))
}

func (s *Store) ListWorkOrders(ctx context.Context, scope auth.Scope) ([]*maintenance.WorkOrder, error) {
	query := `
		select id, tenant_id, equipment_id, type, status, origin, planned_date, due_date, description, creator_id, created_at, updated_at
		from work_orders`
	var args []any
	if !scope.All {
		query += ` where tenant_id=$1`
		args = append(args, scope.TenantID)
	}
	query += ` order by planned_date asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*maintenance.WorkOrder
	for rows.Next() {
		w, err := scanWorkOrderRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (s *Store) UpdateWorkOrder(ctx context.Context, w *maintenance.WorkOrder) error {
	res, err := s.db.ExecContext(ctx, `
		update work_orders set type=$2, status=$3, planned_date=$4, due_date=$5, description=$6, updated_at=$7
		where id=$1
	`, w.ID, string(w.Type), string(w.Status), w.PlannedDate, nullTime(w.DueDate), w.Description, w.UpdatedAt)
	return rowsAffected(res, err)
}

func (s *Store) DeleteWorkOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from work_orders where id=$1`, id)
	return rowsAffected(res, err)
}

func (s *Store) CreateReport(ctx context.Context, rp *maintenance.Report) error {
	_, err := s.db.ExecContext(ctx, `
		insert into reports(id, tenant_id, work_order_id, description, parts_replaced, duration, submitted_by, created_at, updated_at)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rp.ID, rp.TenantID, rp.WorkOrderID, rp.Description, rp.PartsReplaced, rp.Duration, rp.SubmittedBy, rp.CreatedAt, rp.UpdatedAt)
	return err
}

func (s *Store) GetReport(ctx context.Context, id string) (*maintenance.Report, error) {
	var rp maintenance.Report
	err := s.db.QueryRowContext(ctx, `
		select id, tenant_id, work_order_id, description, parts_replaced, duration, submitted_by, created_at, updated_at
		from reports where id=$1
	`, id).Scan(&rp.ID, &rp.TenantID, &rp.WorkOrderID, &rp.Description, &rp.PartsReplaced, &rp.Duration, &rp.SubmittedBy, &rp.CreatedAt, &rp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, maintenance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Store) ListReports(ctx context.Context, scope auth.Scope) ([]*maintenance.Report, error) {
	query := `
		select id, tenant_id, work_order_id, description, parts_replaced, duration, submitted_by, created_at, updated_at
		from reports`
	var args []any
	if !scope.All {
		query += ` where tenant_id=$1`
		args = append(args, scope.TenantID)
	}
	query += ` order by created_at asc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*maintenance.Report
	for rows.Next() {
		var rp maintenance.Report
		if err := rows.Scan(&rp.ID, &rp.TenantID, &rp.WorkOrderID, &rp.Description, &rp.PartsReplaced, &rp.Duration, &rp.SubmittedBy, &rp.CreatedAt, &rp.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &rp)
	}
	return res, rows.Err()
}

func (s *Store) UpdateReport(ctx context.Context, rp *maintenance.Report) error {
	res, err := s.db.ExecContext(ctx, `
		update reports set description=$2, parts_replaced=$3, duration=$4, updated_at=$5
		where id=$1
	`, rp.ID, rp.Description, rp.PartsReplaced, rp.Duration, rp.UpdatedAt)
	return rowsAffected(res, err)
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from reports where id=$1`, id)
	return rowsAffected(res, err)
}

func (s *Store) CountEquipment(ctx context.Context, scope auth.Scope) (int, error) {
	query := `select count(*) from equipment`
	var args []any
	if !scope.All {
		query += ` where tenant_id=$1`
		args = append(args, scope.TenantID)
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *Store) CountWorkOrdersByStatus(ctx context.Context, scope auth.Scope) (map[maintenance.WorkOrderStatus]int, error) {
	query := `select status, count(*) from work_orders`
	var args []any
	if !scope.All {
		query += ` where tenant_id=$1`
		args = append(args, scope.TenantID)
	}
	query += ` group by status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[maintenance.WorkOrderStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[maintenance.WorkOrderStatus(status)] = n
	}
	return out, rows.Err()
}

func (s *Store) CountSchedulesDueWithin(ctx context.Context, scope auth.Scope, from, until time.Time) (int, error) {
	query := `select count(*) from schedules where next_due >= $1 and next_due <= $2`
	args := []any{from, until}
	if !scope.All {
		query += ` and tenant_id=$3`
		args = append(args, scope.TenantID)
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertWorkOrder(ctx context.Context, db execer, w *maintenance.WorkOrder) error {
	_, err := db.ExecContext(ctx, `
		insert into work_orders(id, tenant_id, equipment_id, type, status, origin, planned_date, due_date, description, creator_id, created_at, updated_at)
		values($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, w.ID, w.TenantID, w.EquipmentID, string(w.Type), string(w.Status), string(w.Origin),
		w.PlannedDate, nullTime(w.DueDate), w.Description, w.CreatorID, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert work order: %w", err)
	}
	return nil
}

func scanEquipment(row *sql.Row) (*maintenance.Equipment, error) {
	var e maintenance.Equipment
	var commissioned sql.NullTime
	err := row.Scan(&e.ID, &e.TenantID, &e.Name, &e.Type, &commissioned, &e.Location, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, maintenance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.CommissionedAt = commissioned.Time
	return &e, nil
}

func scanSchedule(row *sql.Row) (*maintenance.Schedule, error) {
	var sc maintenance.Schedule
	var freq string
	err := row.Scan(&sc.ID, &sc.TenantID, &sc.EquipmentID, &freq, &sc.NextDue, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, maintenance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sc.Frequency = maintenance.Frequency(freq)
	return &sc, nil
}

func collectSchedules(rows *sql.Rows) ([]*maintenance.Schedule, error) {
	var res []*maintenance.Schedule
	for rows.Next() {
		var sc maintenance.Schedule
		var freq string
		if err := rows.Scan(&sc.ID, &sc.TenantID, &sc.EquipmentID, &freq, &sc.NextDue, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		sc.Frequency = maintenance.Frequency(freq)
		res = append(res, &sc)
	}
	return res, rows.Err()
}

func scanWorkOrder(row *sql.Row) (*maintenance.WorkOrder, error) {
	var w maintenance.WorkOrder
	var typ, status, origin string
	var due sql.NullTime
	err := row.Scan(&w.ID, &w.TenantID, &w.EquipmentID, &typ, &status, &origin,
		&w.PlannedDate, &due, &w.Description, &w.CreatorID, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, maintenance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	w.Type = maintenance.WorkOrderType(typ)
	w.Status = maintenance.WorkOrderStatus(status)
	w.Origin = maintenance.WorkOrderOrigin(origin)
	w.DueDate = due.Time
	return &w, nil
}

func scanWorkOrderRow(rows *sql.Rows) (*maintenance.WorkOrder, error) {
	var w maintenance.WorkOrder
	var typ, status, origin string
	var due sql.NullTime
	if err := rows.Scan(&w.ID, &w.TenantID, &w.EquipmentID, &typ, &status, &origin,
		&w.PlannedDate, &due, &w.Description, &w.CreatorID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Type = maintenance.WorkOrderType(typ)
	w.Status = maintenance.WorkOrderStatus(status)
	w.Origin = maintenance.WorkOrderOrigin(origin)
	w.DueDate = due.Time
	return &w, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
