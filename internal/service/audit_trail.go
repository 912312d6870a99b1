package service

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditTrail writes best-effort audit records on behalf of a service.
type auditTrail struct {
	repo   auditLogger
	agent  string
	logger *zap.Logger
}

func newAuditTrail(repo auditLogger, agent string, logger *zap.Logger) auditTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return auditTrail{repo: repo, agent: agent, logger: logger}
}

func (a auditTrail) record(ctx context.Context, actorID, action, resource, resourceID string, before, after interface{}) {
	if a.repo == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     action,
		Resource:   resource,
		ResourceID: optionalString(resourceID),
		OldValues:  marshalAudit(before),
		NewValues:  marshalAudit(after),
		IPAddress:  "system",
		UserAgent:  a.agent,
	}
	if err := a.repo.CreateAuditLog(ctx, log); err != nil {
		a.logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
