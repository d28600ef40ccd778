package worker

import (
	"github.com/spec-kit/ticket-intake/internal/service"
)

// StartNotificationWorker registers the audit log handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
