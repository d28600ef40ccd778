package service

import (
	"context"
	"sync"
	"time"
)

// Pinger reports storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether a remote collaborator answers.
type HealthChecker interface {
	Health(ctx context.Context) bool
}

// ForwardTarget is the CRM as seen by the status report.
type ForwardTarget interface {
	HealthChecker
	Configured() bool
}

// IntegrationStatus is a point-in-time view of the external collaborators.
type IntegrationStatus struct {
	Database      bool
	AI            bool
	CRMConfigured bool
	CRMHealthy    bool
	Timestamp     time.Time
}

// StatusService checks the database, classifier and CRM.
type StatusService struct {
	db         Pinger
	classifier HealthChecker
	crm        ForwardTarget
}

// NewStatusService constructs the service.
func NewStatusService(db Pinger, classifier HealthChecker, crm ForwardTarget) *StatusService {
	return &StatusService{db: db, classifier: classifier, crm: crm}
}

// IntegrationStatus checks every collaborator concurrently. The CRM is only
// checked when it is configured.
func (s *StatusService) IntegrationStatus(ctx context.Context) IntegrationStatus {
	status := IntegrationStatus{
		CRMConfigured: s.crm != nil && s.crm.Configured(),
	}

	var wg sync.WaitGroup
	if s.db != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.Database = s.db.Ping(ctx) == nil
		}()
	}
	if s.classifier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.AI = s.classifier.Health(ctx)
		}()
	}
	if status.CRMConfigured {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.CRMHealthy = s.crm.Health(ctx)
		}()
	}
	wg.Wait()

	status.Timestamp = time.Now().UTC()
	return status
}
