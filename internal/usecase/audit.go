package usecase

import (
	"context"
	"encoding/json"
	"time"

	"cafe/internal/apperr"
	"cafe/internal/domain/model"
	repo "cafe/internal/repository"
)

// 監査ログ1件。before/after はJSONにして残す。
func writeAudit(ctx context.Context, logs repo.AuditLogRepository, at time.Time, actor model.Actor, action model.AuditAction, resource model.AuditResourceType, resourceID int64, before, after any) error {
	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)
	if err := logs.Create(ctx, model.AuditLog{
		ActorType:    actor.Type,
		ActorID:      actor.ID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
		CreatedAt:    at,
	}); err != nil {
		return apperr.Internal("db error", err)
	}
	return nil
}

type statusJSON struct {
	Status string `json:"status"`
}

var systemActor = model.Actor{Type: model.ActorSystem, ID: "system"}
