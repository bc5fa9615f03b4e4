//go:build screen

package video

import (
	"fmt"
	"log"
	"os"

	"github.com/d21d3q/framebuffer"
)

// ScreenSupported returns whether screen support is compiled in.
func ScreenSupported() bool {
	return true
}

// Display shows frames on a framebuffer.
type Display struct {
	renderer        *Renderer
	pixBuffer       []byte
	width, height   int
	lineLengthBytes int
	initialized     bool
}

// New opens the framebuffer.
func New(cfg Config) (*Display, error) {
	dev := cfg.Device
	if dev == "" {
		dev = "/dev/fb0"
	}
	fb, err := framebuffer.OpenFrameBuffer(dev, os.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fb.VarScreenInfo()
	if err != nil {
		return nil, fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fb.FixScreenInfo()
	if err != nil {
		return nil, fmt.Errorf("get fixed screen info: %w", err)
	}
	if varInfo.BitsPerPixel != 16 {
		return nil, fmt.Errorf("framebuffer %s: %d bpp, want 16", dev, varInfo.BitsPerPixel)
	}

	d := &Display{
		width:           int(varInfo.XRes),
		height:          int(varInfo.YRes),
		lineLengthBytes: int(fixedInfo.LineLength),
	}
	d.pixBuffer, err = fb.Pixels()
	if err != nil {
		return nil, fmt.Errorf("get pixel data: %w", err)
	}
	log.Printf("Video: framebuffer %dx%d, %d bpp, stride %d bytes",
		d.width, d.height, varInfo.BitsPerPixel, d.lineLengthBytes)

	d.renderer = NewRenderer(cfg, d.width, d.height)
	d.initialized = true
	d.clear()
	return d, nil
}

func (d *Display) clear() {
	for i := range d.pixBuffer {
		d.pixBuffer[i] = 0
	}
}

// Show renders f and copies it to the framebuffer in one step.
func (d *Display) Show(f Frame) {
	if !d.initialized {
		return
	}
	copy(d.pixBuffer, RGB565(d.renderer.Render(f), d.lineLengthBytes))
}

// Release blanks the screen.
func (d *Display) Release() error {
	if d.initialized {
		d.clear()
	}
	d.initialized = false
	return nil
}

// Width returns the display width.
func (d *Display) Width() int {
	return d.width
}

// Height returns the display height.
func (d *Display) Height() int {
	return d.height
}
