// Package clipboard provides access to the system clipboard and the
// background poller that feeds clipboard changes into the history engine.
// Build constraints select the device implementation:
//
//	device_darwin.go — macOS via golang.design/x/clipboard + cgo changeCount
//	device_other.go  — everything else via golang.design/x/clipboard with a
//	                   synthesized change counter
package clipboard

// Device is the OS clipboard as the core sees it: an opaque change marker
// plus typed read/write access. Image bytes are always PNG-encoded; the
// backend is responsible for normalizing whatever intermediate format the
// OS hands over.
type Device interface {
	// ChangeCount returns a marker that changes whenever the clipboard
	// contents change. The absolute value is meaningless; only inequality
	// with a previously observed marker matters.
	ChangeCount() int64

	// ReadText returns the current text content, or "" if none.
	ReadText() string

	// ReadImage returns the current image content as PNG bytes, or nil.
	ReadImage() []byte

	WriteText(text string)
	WriteImage(png []byte)

	// Close releases any resources held by the device.
	Close()
}

// State is a saved snapshot of the clipboard's item set, used to restore
// the user's clipboard after a temporary write (the paste shim writes an
// entry, triggers the paste keystroke, then puts the original back).
type State struct {
	Text  string
	Image []byte
}

// Save captures the device's current contents.
func Save(d Device) State {
	return State{Text: d.ReadText(), Image: d.ReadImage()}
}

// Restore writes a previously saved snapshot back to the device.
func (s State) Restore(d Device) {
	if len(s.Image) > 0 {
		d.WriteImage(s.Image)
	}
	if s.Text != "" {
		d.WriteText(s.Text)
	}
}
