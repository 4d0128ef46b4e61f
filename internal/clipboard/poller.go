package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/runnerr0/clipstash/internal/history"
	"github.com/runnerr0/clipstash/internal/storage"
)

// snapshot is one observed clipboard change, classified and ready for the
// dedup engine.
type snapshot struct {
	typ     storage.ContentType
	value   string
	payload []byte
}

// Poller samples the clipboard device at a fixed interval and feeds
// detected changes to the history manager. Ingestion runs on its own
// goroutine behind an ordered queue so a slow storage write never blocks
// the sampling timer, and changes are processed in the order detected.
type Poller struct {
	dev      Device
	mgr      *history.Manager
	interval time.Duration

	lastMark int64
	snaps    chan snapshot
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
}

// NewPoller creates a poller sampling at the given interval.
func NewPoller(dev Device, mgr *history.Manager, interval time.Duration) *Poller {
	return &Poller{
		dev:      dev,
		mgr:      mgr,
		interval: interval,
		snaps:    make(chan snapshot, 64),
		done:     make(chan struct{}),
	}
}

// Start begins monitoring. The clipboard contents present at start are not
// captured; only subsequent changes are.
func (p *Poller) Start(ctx context.Context) error {
	if p.running {
		return fmt.Errorf("poller already running")
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.lastMark = p.dev.ChangeCount()

	go p.ingestLoop(ctx)
	go p.pollLoop(ctx)

	slog.Info("clipboard poller started", "interval", p.interval)
	return nil
}

// Stop halts monitoring and waits for in-flight ingestion to drain.
func (p *Poller) Stop() {
	if !p.running {
		return
	}
	p.running = false
	p.cancel()
	<-p.done
	slog.Info("clipboard poller stopped")
}

func (p *Poller) pollLoop(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick()
		}
	}
}

// tick compares the change marker and, on a change, classifies the new
// contents and queues them for ingestion. The marker is updated before
// any processing so overlapping ticks never reprocess the same change.
func (p *Poller) tick() {
	mark := p.dev.ChangeCount()
	if mark == p.lastMark {
		return
	}
	p.lastMark = mark

	snap, ok := p.classify()
	if !ok {
		return
	}

	select {
	case p.snaps <- snap:
	default:
		// Queue full: drop the change. A missed entry is preferable to
		// blocking the timer.
		slog.Warn("ingest queue full, dropping clipboard change", "type", snap.typ)
	}
}

// classify reads the clipboard preferring text over image. Empty text and
// unrecognized formats yield no snapshot.
func (p *Poller) classify() (snapshot, bool) {
	if text := p.dev.ReadText(); text != "" {
		return snapshot{typ: storage.TypeText, value: text}, true
	}

	if img := p.dev.ReadImage(); len(img) > 0 {
		name := "image_" + time.Now().Format("2006-01-02 15.04.05.000")
		return snapshot{typ: storage.TypeImage, value: name, payload: img}, true
	}

	return snapshot{}, false
}

func (p *Poller) ingestLoop(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.snaps:
			// A storage failure must never stop the monitor: log and
			// move on to the next change.
			if _, err := p.mgr.Add(ctx, snap.typ, snap.value, snap.payload); err != nil {
				slog.Error("clipboard ingest failed", "type", snap.typ, "err", err)
			}
		}
	}
}

// CopyEntry writes a history entry's content back to the clipboard, the
// first half of the paste flow. The resulting clipboard change is observed
// by the next tick and resolves as a refresh of the same entry.
func (p *Poller) CopyEntry(ctx context.Context, id string) error {
	entry, err := p.mgr.Entry(ctx, id)
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("copy entry %s: %w", id, storage.ErrNotFound)
	}

	switch entry.Type {
	case storage.TypeText:
		p.dev.WriteText(entry.Value)
	case storage.TypeImage:
		data, err := p.mgr.Payload(ctx, entry)
		if err != nil {
			return fmt.Errorf("load payload: %w", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("copy entry %s: payload missing", id)
		}
		p.dev.WriteImage(data)
	default:
		return fmt.Errorf("unsupported clipboard type: %s", entry.Type)
	}

	return nil
}
