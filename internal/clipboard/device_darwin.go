//go:build darwin

package clipboard

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger clipstash_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"fmt"

	"golang.design/x/clipboard"
)

type darwinDevice struct{}

// NewDevice returns the macOS clipboard device. The pasteboard's native
// changeCount serves as the change marker; golang.design/x/clipboard
// handles content access and hands images over as PNG.
func NewDevice() (Device, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard init: %w", err)
	}
	return &darwinDevice{}, nil
}

func (d *darwinDevice) ChangeCount() int64 {
	return int64(C.clipstash_changeCount())
}

func (d *darwinDevice) ReadText() string {
	return string(clipboard.Read(clipboard.FmtText))
}

func (d *darwinDevice) ReadImage() []byte {
	return clipboard.Read(clipboard.FmtImage)
}

func (d *darwinDevice) WriteText(text string) {
	clipboard.Write(clipboard.FmtText, []byte(text))
}

func (d *darwinDevice) WriteImage(png []byte) {
	clipboard.Write(clipboard.FmtImage, png)
}

func (d *darwinDevice) Close() {}
