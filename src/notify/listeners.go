package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/log"
	"github.com/streamalert-go/streamalert-go/src/pkg/events"
	"github.com/streamalert-go/streamalert-go/src/pkg/sentry"
	"github.com/streamalert-go/streamalert-go/src/scheduler"
)

// RegisterEventListeners wires transition events to delivery. Dispatch
// is synchronous on the poll goroutine, so the actual send is handed
// off to its own goroutine.
func RegisterEventListeners(ed events.Dispatcher) {
	listener := events.NewEventListener(func(event *events.Event) {
		alert, ok := event.Object.(*scheduler.Alert)
		if !ok {
			return
		}

		if event.Type == scheduler.EntityOffline {
			cfg := configs.GetCurrentConfig()
			if cfg == nil || !cfg.Notify.OnOffline {
				return
			}
		}

		log.WithFields(logrus.Fields{
			"group_id":   alert.GroupID,
			"entity":     string(alert.Entity.ID),
			"transition": alert.Transition.String(),
		}).Info("entity transition")

		sentry.Go(func() {
			if err := SendNotification(alert); err != nil {
				log.GetLogger().WithError(err).Error("failed to send notification")
			}
		})
	})

	ed.AddEventListener(scheduler.EntityLive, listener)
	ed.AddEventListener(scheduler.EntityChanged, listener)
	ed.AddEventListener(scheduler.EntityOffline, listener)
}
