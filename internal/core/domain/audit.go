package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditWithdrawalRequest AuditAction = "WITHDRAWAL_REQUEST"
	AuditWithdrawalApprove AuditAction = "WITHDRAWAL_APPROVE"
	AuditWithdrawalReject  AuditAction = "WITHDRAWAL_REJECT"
	AuditWithdrawalHold    AuditAction = "WITHDRAWAL_HOLD"
	AuditWithdrawalSubmit  AuditAction = "WITHDRAWAL_SUBMIT"
	AuditWithdrawalRetry   AuditAction = "WITHDRAWAL_RETRY"
	AuditDisputeOpen       AuditAction = "DISPUTE_OPEN"
	AuditDisputeApprove    AuditAction = "DISPUTE_APPROVE"
	AuditDisputeReject     AuditAction = "DISPUTE_REJECT"
	AuditBankAccountAdd    AuditAction = "BANK_ACCOUNT_ADD"
	AuditBankAccountVerify AuditAction = "BANK_ACCOUNT_VERIFY"
	AuditBankAccountRemove AuditAction = "BANK_ACCOUNT_REMOVE"
	AuditSetPrimary        AuditAction = "BANK_ACCOUNT_SET_PRIMARY"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    Role        `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
