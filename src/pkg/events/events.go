// Package events implements a small in-process event dispatcher used to
// decouple the poll scheduler from notification delivery and any other
// transition consumer.
package events

import "sync"

type EventType string

type Event struct {
	Type   EventType
	Object any
}

func NewEvent(eventType EventType, object any) *Event {
	return &Event{
		Type:   eventType,
		Object: object,
	}
}

type EventListener struct {
	Handler func(event *Event)
}

func NewEventListener(h func(event *Event)) *EventListener {
	return &EventListener{Handler: h}
}

type Dispatcher interface {
	AddEventListener(eventType EventType, listener *EventListener)
	RemoveEventListener(eventType EventType, listener *EventListener)
	DispatchEvent(event *Event)
}

func NewDispatcher() Dispatcher {
	return &dispatcher{
		listeners: make(map[EventType][]*EventListener),
	}
}

type dispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]*EventListener
}

func (d *dispatcher) AddEventListener(eventType EventType, listener *EventListener) {
	if listener == nil || listener.Handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], listener)
}

func (d *dispatcher) RemoveEventListener(eventType EventType, listener *EventListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ls := d.listeners[eventType]
	for i, l := range ls {
		if l == listener {
			d.listeners[eventType] = append(ls[:i], ls[i+1:]...)
			return
		}
	}
}

// DispatchEvent invokes every listener registered for the event's type,
// synchronously and in registration order. Listeners that may block
// should hand off to their own goroutine.
func (d *dispatcher) DispatchEvent(event *Event) {
	if event == nil {
		return
	}
	d.mu.RLock()
	ls := make([]*EventListener, len(d.listeners[event.Type]))
	copy(ls, d.listeners[event.Type])
	d.mu.RUnlock()
	for _, l := range ls {
		l.Handler(event)
	}
}
