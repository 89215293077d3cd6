package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskProfileOrphanAudit reports accounts that have no profile.
	TaskProfileOrphanAudit = "profile:orphan_audit"
)

// OrphanAuditPayload describes one audit run. Email is set when the run was
// triggered by a failed sign-up.
type OrphanAuditPayload struct {
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// NewOrphanAuditTask constructs an Asynq task.
func NewOrphanAuditTask(payload OrphanAuditPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfileOrphanAudit, data, asynq.MaxRetry(3)), nil
}
