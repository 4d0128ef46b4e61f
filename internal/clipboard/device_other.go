//go:build !darwin

package clipboard

import (
	"fmt"
	"hash/fnv"
	"sync"

	"golang.design/x/clipboard"
)

// otherDevice serves platforms without a native pasteboard change counter.
// ChangeCount hashes the current contents and bumps a counter whenever the
// hash moves, which makes each marker comparison a full clipboard read —
// acceptable at the poller's sampling interval.
type otherDevice struct {
	mu      sync.Mutex
	count   int64
	lastSum uint64
}

// NewDevice returns the portable clipboard device.
func NewDevice() (Device, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard init: %w", err)
	}
	return &otherDevice{}, nil
}

func (d *otherDevice) ChangeCount() int64 {
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)

	h := fnv.New64a()
	h.Write(text)
	h.Write([]byte{0})
	h.Write(img)
	sum := h.Sum64()

	d.mu.Lock()
	defer d.mu.Unlock()
	if sum != d.lastSum {
		d.lastSum = sum
		d.count++
	}
	return d.count
}

func (d *otherDevice) ReadText() string {
	return string(clipboard.Read(clipboard.FmtText))
}

func (d *otherDevice) ReadImage() []byte {
	return clipboard.Read(clipboard.FmtImage)
}

func (d *otherDevice) WriteText(text string) {
	clipboard.Write(clipboard.FmtText, []byte(text))
}

func (d *otherDevice) WriteImage(png []byte) {
	clipboard.Write(clipboard.FmtImage, png)
}

func (d *otherDevice) Close() {}
