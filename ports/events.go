package ports

import (
	"context"

	"github.com/layer-3/cerberus/core"
)

// AuditPublisher delivers authentication and authorization audit events to an
// external sink. Publishing must never fail the request being audited.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, event core.AuditEvent) error
}
