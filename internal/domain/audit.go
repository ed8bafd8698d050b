package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction tags an audit entry with the operation that produced it.
type AuditAction string

const (
	AuditActionCreate            AuditAction = "create"
	AuditActionUpdate            AuditAction = "update"
	AuditActionDelete            AuditAction = "delete"
	AuditActionImportCreate      AuditAction = "import_create"
	AuditActionImportUpdate      AuditAction = "import_update"
	AuditActionMassAssign        AuditAction = "attribution_masse"
	AuditActionMassAssignPct     AuditAction = "attribution_masse_pourcentage"
	AuditActionMassUnassignPct   AuditAction = "desattribution_masse_pourcentage"
)

// Audit field keys for the record's own scalar slots, and the sentinel used
// by soft-delete entries.
const (
	AuditFieldOwner    = "assigne_a"
	AuditFieldCategory = "categorie"
	AuditFieldDeleted  = "__suppression__"
)

// AuditEntry is one immutable log row capturing a single field-level change.
// A create logs every initially-set field with a nil old value; an update
// logs only fields whose stringified value changed.
type AuditEntry struct {
	ID        int64       `json:"id"`
	RecordID  uuid.UUID   `json:"record_id"`
	FieldKey  string      `json:"field_key"`
	OldValue  *string     `json:"old_value,omitempty"`
	NewValue  *string     `json:"new_value,omitempty"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
	Action    AuditAction `json:"action"`
	FileName  string      `json:"file_name,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
