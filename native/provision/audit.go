package provision

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"mintgate/core/types"
)

// Approval pipeline step names recorded in the audit log.
const (
	StepDeployStorageUnit = "deploy_storage_unit"
	StepGrantProxyCommit  = "grant_proxy_commit"
	StepApproveFiles      = "approve_files"
	StepRevokeProxyCommit = "revoke_proxy_commit"
	StepDeployTokenUnit   = "deploy_token_unit"
	StepGrantTokenAdmin   = "grant_token_admin"
	StepGrantOwnerCommit  = "grant_owner_commit"
)

// StepRecord marks one completed pipeline step. Unit is set for steps
// that produced or touched a specific unit, so a failed attempt leaves
// enough to find orphaned units.
type StepRecord struct {
	Name        string          `json:"name"`
	Unit        types.Principal `json:"unit,omitempty"`
	CompletedAt int64           `json:"completedAt"`
}

// ApprovalAttempt is the audit trail of one ApproveRequest invocation.
// The pipeline performs no compensating rollback, so the attempt log is
// the only record of which side effects a failed approval left behind.
type ApprovalAttempt struct {
	ID        string       `json:"id"`
	RequestID uint64       `json:"requestId"`
	StartedAt int64        `json:"startedAt"`
	Steps     []StepRecord `json:"steps"`
}

// AuditStore persists approval attempts keyed by attempt id.
type AuditStore struct {
	attempts map[string]*ApprovalAttempt
}

// NewAuditStore returns an empty audit log.
func NewAuditStore() *AuditStore {
	return &AuditStore{attempts: make(map[string]*ApprovalAttempt)}
}

// Begin opens a new attempt for the request and returns its id.
func (s *AuditStore) Begin(requestID uint64, now int64) string {
	id := uuid.NewString()
	s.attempts[id] = &ApprovalAttempt{ID: id, RequestID: requestID, StartedAt: now}
	return id
}

// Record appends a completed step to the attempt. Unknown attempt ids are
// ignored.
func (s *AuditStore) Record(attemptID, step string, unit types.Principal, now int64) {
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return
	}
	attempt.Steps = append(attempt.Steps, StepRecord{
		Name:        step,
		Unit:        append(types.Principal(nil), unit...),
		CompletedAt: now,
	})
}

// Attempts returns every attempt recorded for the request, oldest first.
func (s *AuditStore) Attempts(requestID uint64) []*ApprovalAttempt {
	attempts := make([]*ApprovalAttempt, 0)
	for _, attempt := range s.attempts {
		if attempt.RequestID == requestID {
			clone := *attempt
			clone.Steps = append([]StepRecord(nil), attempt.Steps...)
			attempts = append(attempts, &clone)
		}
	}
	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].StartedAt == attempts[j].StartedAt {
			return attempts[i].ID < attempts[j].ID
		}
		return attempts[i].StartedAt < attempts[j].StartedAt
	})
	return attempts
}

// SnapshotName implements snapshot.Component.
func (s *AuditStore) SnapshotName() string { return "provision.audit" }

// SnapshotVersion implements snapshot.Component.
func (s *AuditStore) SnapshotVersion() uint32 { return 1 }

// MarshalSnapshot implements snapshot.Component.
func (s *AuditStore) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(s.attempts)
}

// UnmarshalSnapshot implements snapshot.Component.
func (s *AuditStore) UnmarshalSnapshot(_ uint32, data []byte) error {
	var attempts map[string]*ApprovalAttempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		return err
	}
	if attempts == nil {
		attempts = make(map[string]*ApprovalAttempt)
	}
	s.attempts = attempts
	return nil
}
