package maintenance

import (
	"time"

	"maintrack.org/internal/ids"
)

// WorkOrderFromSchedule builds the preventive work order for one due cycle
// of a schedule. The planned date is the schedule's due date, not the time
// the engine happened to run, so late runs still plan the work on the day
// it was due.
func WorkOrderFromSchedule(s *Schedule, now time.Time) *WorkOrder {
	return &WorkOrder{
		ID:          ids.New(),
		TenantID:    s.TenantID,
		EquipmentID: s.EquipmentID,
		Type:        Preventive,
		Status:      StatusPending,
		Origin:      SystemGenerated,
		PlannedDate: s.NextDue,
		DueDate:     s.NextDue,
		Description: "Generated automatically from the maintenance schedule.",
		CreatorID:   SystemCreator,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
