package services

import (
	"context"
	"encoding/json"
	"fmt"
)

// Dispatcher routes dequeued tasks to their handlers. The same dispatcher
// backs both the asynq worker and the in-process fallback queue.
type Dispatcher struct {
	audit *AuditService
	email *EmailService
}

func NewDispatcher(audit *AuditService, email *EmailService) *Dispatcher {
	return &Dispatcher{audit: audit, email: email}
}

func (d *Dispatcher) Process(ctx context.Context, taskType string, payload []byte) error {
	switch taskType {
	case TaskTypeAudit:
		var rec AuditRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return err
		}
		return d.audit.Record(&rec)
	case TaskTypeInvitationEmail:
		var mail InvitationEmail
		if err := json.Unmarshal(payload, &mail); err != nil {
			return err
		}
		return d.email.SendInvitation(&mail)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}
