package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/events"
	"github.com/spec-kit/abteilung-service/internal/service"
)

// NotificationWorker delivers department events to the notification
// service from a background goroutine.
type NotificationWorker struct {
	queue   chan events.Event
	service *service.NotificationService
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// StartNotificationWorker subscribes to department_created and starts the
// delivery loop. It stops when ctx is cancelled.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notificationService *service.NotificationService, logger *zap.Logger, buffer int) *NotificationWorker {
	if notificationService == nil || dispatcher == nil {
		return nil
	}
	if buffer <= 0 {
		buffer = 64
	}
	w := &NotificationWorker{
		queue:   make(chan events.Event, buffer),
		service: notificationService,
		logger:  logger,
	}
	dispatcher.Subscribe(events.EventDepartmentCreated, w.enqueue)

	w.wg.Add(1)
	go w.run(ctx)
	return w
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_id", event.ID),
			zap.Int64("department_id", event.DepartmentID))
	}
	return nil
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			if err := w.service.Handle(ctx, event); err != nil {
				w.logger.Warn("notification failed",
					zap.String("event_id", event.ID),
					zap.Int64("department_id", event.DepartmentID),
					zap.Error(err))
			}
		}
	}
}

// Wait blocks until the delivery loop has exited.
func (w *NotificationWorker) Wait() {
	if w != nil {
		w.wg.Wait()
	}
}
