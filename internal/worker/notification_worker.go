package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/cassette-service/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to status,
// reconciliation and replacement events. Notifications run synchronously on
// the publishing goroutine.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		logger.Info("notifications disabled")
		return
	}
	notifications.RegisterHandlers()
	logger.Info("notification handlers registered")
}
