package boot

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zxhio/usbboot/internal/usb"
	"github.com/zxhio/usbboot/pkg/netutil"
)

// DefaultTerminalStep is the number of confirmed transfers of a full two
// stage boot. It is measured, not derived, so progress is approximate.
const DefaultTerminalStep = 1124

// Transaction tracks one physical port across both boot stages.
type Transaction struct {
	ID       uuid.UUID
	PortID   string
	DeviceID string
	Stage    Stage
	File     string
	Step     int
	Terminal int
	Stats    netutil.Statistics
	Created  time.Time
	Updated  time.Time

	// cancel stops the device task serving this port, nil when none runs.
	cancel context.CancelFunc
}

func newTransaction(portID string, terminal int) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:       uuid.New(),
		PortID:   portID,
		Terminal: terminal,
		Created:  now,
		Updated:  now,
	}
}

// Progress is floor(step / terminal * 100).
func (t *Transaction) Progress() int {
	if t.Terminal <= 0 {
		return 0
	}
	return min(t.Step, t.Terminal) * 100 / t.Terminal
}

func (t *Transaction) Complete() bool { return t.Step >= t.Terminal }
func (t *Transaction) Serving() bool  { return t.cancel != nil }

func (t *Transaction) advance() {
	if t.Step < t.Terminal {
		t.Step++
	}
	t.Updated = time.Now()
}

func (t *Transaction) finish() {
	t.Step = t.Terminal
	t.Updated = time.Now()
}

func (t *Transaction) stopTask() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// TransactionInfo is a copy of a transaction taken on the scanner goroutine.
type TransactionInfo struct {
	ID       string             `json:"id"`
	PortID   string             `json:"port_id"`
	DeviceID string             `json:"device_id"`
	Stage    string             `json:"stage"`
	File     string             `json:"file"`
	Step     int                `json:"step"`
	Terminal int                `json:"terminal"`
	Progress int                `json:"progress"`
	Serving  bool               `json:"serving"`
	Stats    netutil.Statistics `json:"stats"`
	Created  time.Time          `json:"created"`
	Updated  time.Time          `json:"updated"`
}

func (t *Transaction) Info() TransactionInfo {
	stats := t.Stats
	stats.Timestamp = t.Updated
	return TransactionInfo{
		ID:       t.ID.String(),
		PortID:   t.PortID,
		DeviceID: t.DeviceID,
		Stage:    t.Stage.String(),
		File:     t.File,
		Step:     t.Step,
		Terminal: t.Terminal,
		Progress: t.Progress(),
		Serving:  t.Serving(),
		Stats:    stats,
		Created:  t.Created,
		Updated:  t.Updated,
	}
}

// registry is the scanner's state. It is owned by the scanner goroutine and
// never shared.
type registry struct {
	transactions map[string]*Transaction   // port id
	open         map[string]usb.DeviceInfo // device id
}

func newRegistry() *registry {
	return &registry{
		transactions: make(map[string]*Transaction),
		open:         make(map[string]usb.DeviceInfo),
	}
}

func (r *registry) get(portID string) (*Transaction, bool) {
	t, ok := r.transactions[portID]
	return t, ok
}

func (r *registry) getOrCreate(portID string, terminal int) (*Transaction, bool) {
	if t, ok := r.transactions[portID]; ok {
		return t, false
	}
	t := newTransaction(portID, terminal)
	r.transactions[portID] = t
	return t, true
}

func (r *registry) remove(portID string) (*Transaction, bool) {
	t, ok := r.transactions[portID]
	if !ok {
		return nil, false
	}
	delete(r.transactions, portID)
	t.stopTask()
	return t, true
}

// markOpen records a device id. It returns false when the id is already
// being handled.
func (r *registry) markOpen(info usb.DeviceInfo) bool {
	if _, ok := r.open[info.DeviceID()]; ok {
		return false
	}
	r.open[info.DeviceID()] = info
	return true
}

func (r *registry) markClosed(deviceID string) (usb.DeviceInfo, bool) {
	info, ok := r.open[deviceID]
	delete(r.open, deviceID)
	return info, ok
}

func (r *registry) isOpen(deviceID string) bool {
	_, ok := r.open[deviceID]
	return ok
}

// portOpen reports whether any open device sits on portID.
func (r *registry) portOpen(portID string) bool {
	for _, info := range r.open {
		if info.PortID() == portID {
			return true
		}
	}
	return false
}

func (r *registry) clear() {
	for _, t := range r.transactions {
		t.stopTask()
	}
	clear(r.transactions)
	clear(r.open)
}

func (r *registry) snapshot() []TransactionInfo {
	infos := make([]TransactionInfo, 0, len(r.transactions))
	for _, t := range r.transactions {
		infos = append(infos, t.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PortID < infos[j].PortID })
	return infos
}
