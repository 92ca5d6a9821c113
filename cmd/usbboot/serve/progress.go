package serve

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pterm/pterm"
	"github.com/zxhio/usbboot/internal/boot"
)

// bar is what the display needs from a pterm progress bar.
type bar interface {
	UpdateTitle(title string) *pterm.ProgressbarPrinter
	Add(count int) *pterm.ProgressbarPrinter
	Stop() (*pterm.ProgressbarPrinter, error)
}

// progress renders one bar per port. Events are handed over from the scanner
// goroutine through a channel and rendered on its own goroutine.
type progress struct {
	multi   *pterm.MultiPrinter
	events  chan boot.Event
	done    chan struct{}
	stop    sync.Once
	newBar  func(title string) (bar, error)
	println func(a ...any)

	bars    map[string]bar
	current map[string]int
	summary map[boot.Reason]int
}

func newProgress(w io.Writer) (*progress, error) {
	multi := pterm.DefaultMultiPrinter.WithWriter(w)
	if _, err := multi.Start(); err != nil {
		return nil, err
	}

	p := newProgressWith(
		func(title string) (bar, error) {
			return pterm.DefaultProgressbar.
				WithTotal(100).
				WithShowElapsedTime(true).
				WithWriter(multi.NewWriter()).
				Start(title)
		},
		func(a ...any) { fmt.Fprintln(multi.NewWriter(), a...) },
	)
	p.multi = multi
	go p.run()
	return p, nil
}

func newProgressWith(newBar func(string) (bar, error), println func(...any)) *progress {
	return &progress{
		events:  make(chan boot.Event, 256),
		done:    make(chan struct{}),
		newBar:  newBar,
		println: println,
		bars:    make(map[string]bar),
		current: make(map[string]int),
		summary: make(map[boot.Reason]int),
	}
}

// Handle is a boot.EventHandler. Progress events are dropped when the display
// lags since the next one carries the absolute value.
func (p *progress) Handle(ev boot.Event) {
	if ev.Kind == boot.EventProgress {
		select {
		case p.events <- ev:
		default:
		}
		return
	}
	p.events <- ev
}

// Stop must be called after the scanner stopped emitting events.
func (p *progress) Stop() {
	p.stop.Do(func() { close(p.events) })
	<-p.done
}

func (p *progress) run() {
	defer close(p.done)
	for ev := range p.events {
		p.update(ev)
	}

	ports := make([]string, 0, len(p.bars))
	for port := range p.bars {
		ports = append(ports, port)
	}
	sort.Strings(ports)
	for _, port := range ports {
		p.bars[port].UpdateTitle(port + " interrupted")
		p.bars[port].Stop()
	}
	if len(p.summary) > 0 {
		p.println(pterm.Info.Sprintf("%d booted, %d failed", p.summary[boot.ReasonComplete], p.failed()))
	}
	if p.multi != nil {
		p.multi.Stop()
	}
}

func (p *progress) failed() int {
	n := 0
	for reason, count := range p.summary {
		if reason != boot.ReasonComplete {
			n += count
		}
	}
	return n
}

func (p *progress) update(ev boot.Event) {
	switch ev.Kind {
	case boot.EventReady:
		p.println(pterm.Info.Sprint("Waiting for devices"))

	case boot.EventAttach:
		p.bar(ev)

	case boot.EventProgress:
		b := p.bar(ev)
		if b == nil {
			return
		}
		b.UpdateTitle(title(ev))
		p.advance(ev.PortID, b, ev.Progress)

	case boot.EventDetach:
		b, ok := p.bars[ev.PortID]
		if !ok {
			return
		}
		p.summary[ev.Reason]++
		if ev.Reason == boot.ReasonComplete {
			b.UpdateTitle(fmt.Sprintf("%-12s done", ev.PortID))
			p.advance(ev.PortID, b, 100)
		} else {
			b.UpdateTitle(fmt.Sprintf("%-12s %s", ev.PortID, ev.Reason))
		}
		b.Stop()
		delete(p.bars, ev.PortID)
		delete(p.current, ev.PortID)
	}
}

func (p *progress) bar(ev boot.Event) bar {
	if b, ok := p.bars[ev.PortID]; ok {
		return b
	}
	b, err := p.newBar(title(ev))
	if err != nil {
		return nil
	}
	p.bars[ev.PortID] = b
	p.current[ev.PortID] = 0
	return b
}

func (p *progress) advance(port string, b bar, progress int) {
	if delta := progress - p.current[port]; delta > 0 {
		b.Add(delta)
		p.current[port] = progress
	}
}

func title(ev boot.Event) string {
	if ev.File == "" {
		return fmt.Sprintf("%-12s %s", ev.PortID, ev.Stage)
	}
	return fmt.Sprintf("%-12s %-4s %s", ev.PortID, ev.Stage, ev.File)
}
