package video

import (
	"encoding/binary"
	"fmt"
	"image"
	"log"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
)

// Config holds video display configuration.
type Config struct {
	Enabled  bool   `yaml:"enabled"`
	Device   string `yaml:"device"`    // framebuffer device, default /dev/fb0
	FontPath string `yaml:"font_path"` // TTF; gg's built-in face when empty or unreadable
	LogoPath string `yaml:"logo_path"` // PNG shown in the top left corner
}

// DefaultFont is used when no font path is configured.
const DefaultFont = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// Frame is everything drawn on one screen.
type Frame struct {
	Title    string // active source
	Value    string // pending value
	Progress string // "2 of 5" in list mode
	Status   string
	Success  bool
	Fault    bool
	Flipped  bool
}

// Renderer draws frames into an RGBA image.
type Renderer struct {
	width, height int
	fontPath      string
	logo          image.Image
	faces         map[float64]font.Face
}

// NewRenderer returns a renderer for a width x height screen.
func NewRenderer(cfg Config, width, height int) *Renderer {
	r := &Renderer{
		width:    width,
		height:   height,
		fontPath: cfg.FontPath,
		faces:    map[float64]font.Face{},
	}
	if r.fontPath == "" {
		r.fontPath = DefaultFont
	}
	if cfg.LogoPath != "" {
		logo, err := gg.LoadPNG(cfg.LogoPath)
		if err != nil {
			log.Printf("Video: failed to load logo: %v", err)
		} else {
			r.SetLogo(logo)
		}
	}
	return r
}

// SetLogo scales img to a fifth of the screen height.
func (r *Renderer) SetLogo(img image.Image) {
	size := r.height / 5
	if size < 1 || img == nil {
		r.logo = nil
		return
	}
	b := img.Bounds()
	w := b.Dx() * size / b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	r.logo = dst
}

// face returns the configured font at size, or nil to keep the default.
func (r *Renderer) face(size float64) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	f, err := gg.LoadFontFace(r.fontPath, size)
	if err != nil {
		log.Printf("Video: failed to load font: %v", err)
		f = nil
	}
	r.faces[size] = f
	return f
}

func (r *Renderer) setSize(dc *gg.Context, size float64) {
	if f := r.face(size); f != nil {
		dc.SetFontFace(f)
	}
}

// Render draws f.
func (r *Renderer) Render(f Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	dc := gg.NewContextForRGBA(img)
	w, h := float64(r.width), float64(r.height)

	if f.Flipped {
		dc.RotateAbout(math.Pi, w/2, h/2)
	}

	switch {
	case f.Success:
		dc.SetRGB(0, 0.6, 0)
	case f.Fault:
		dc.SetRGB(0.7, 0, 0)
	default:
		dc.SetRGB(0.05, 0.15, 0.45)
	}
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	if r.logo != nil {
		dc.DrawImage(r.logo, 8, 8)
	}

	dc.SetRGB(1, 1, 1)
	r.setSize(dc, h/12)
	dc.DrawStringAnchored(f.Title, w/2, h/8, 0.5, 0.5)
	if f.Progress != "" {
		dc.DrawStringAnchored(f.Progress, w-12, h/8, 1, 0.5)
	}

	if f.Value != "" {
		r.setSize(dc, h/7)
		dc.DrawStringWrapped(f.Value, w/2, h*0.45, 0.5, 0.5, w-32, 1.2, gg.AlignCenter)
	}

	r.setSize(dc, h/10)
	dc.SetRGB(1, 1, 0.8)
	dc.DrawStringAnchored(f.Status, w/2, h*0.85, 0.5, 0.5)

	return img
}

// RGB565 packs img into a little-endian 16bpp buffer with the given row
// stride in bytes.
func RGB565(img *image.RGBA, stride int) []byte {
	b := img.Bounds()
	out := make([]byte, b.Dy()*stride)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r5 := uint16(img.Pix[i]) >> 3
			g6 := uint16(img.Pix[i+1]) >> 2
			b5 := uint16(img.Pix[i+2]) >> 3
			o := y*stride + x*2
			if o+1 < len(out) {
				binary.LittleEndian.PutUint16(out[o:], r5<<11|g6<<5|b5)
			}
		}
	}
	return out
}

// String describes the frame for logs.
func (f Frame) String() string {
	return fmt.Sprintf("%s %q %s [%s]", f.Title, f.Value, f.Progress, f.Status)
}
