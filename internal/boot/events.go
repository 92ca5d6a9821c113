package boot

import (
	"fmt"
	"time"
)

type EventKind int

const (
	// EventReady follows the initial enumeration sweep.
	EventReady EventKind = iota
	// EventAttach is raised when a transaction is created for a port.
	EventAttach
	// EventDetach is raised when a transaction is removed, Reason tells why.
	EventDetach
	// EventProgress is raised on every step change.
	EventProgress
)

var eventKindToStr = map[EventKind]string{
	EventReady:    "ready",
	EventAttach:   "attach",
	EventDetach:   "detach",
	EventProgress: "progress",
}

func (k EventKind) String() string {
	s, ok := eventKindToStr[k]
	if !ok {
		return fmt.Sprintf("event(%d)", int(k))
	}
	return s
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Reason is why a transaction was removed or a device released.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonComplete      Reason = "complete"
	ReasonUnplug        Reason = "unplug"
	ReasonFileNotFound  Reason = "file-not-found"
	ReasonTransferError Reason = "transfer-error"
	ReasonLinkError     Reason = "link-error"
)

type Event struct {
	Kind     EventKind `json:"kind"`
	PortID   string    `json:"port_id,omitempty"`
	DeviceID string    `json:"device_id,omitempty"`
	Session  string    `json:"session,omitempty"`
	Stage    Stage     `json:"-"`
	File     string    `json:"file,omitempty"`
	Step     int       `json:"step"`
	Progress int       `json:"progress"`
	Reason   Reason    `json:"reason,omitempty"`
	Time     time.Time `json:"time"`
}

func newEvent(kind EventKind, t *Transaction, reason Reason) Event {
	ev := Event{Kind: kind, Reason: reason, Time: time.Now()}
	if t != nil {
		ev.PortID = t.PortID
		ev.DeviceID = t.DeviceID
		ev.Session = t.ID.String()
		ev.Stage = t.Stage
		ev.File = t.File
		ev.Step = t.Step
		ev.Progress = t.Progress()
	}
	return ev
}

// EventHandler is called on the scanner goroutine and must not block.
type EventHandler func(Event)
