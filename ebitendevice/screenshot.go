package ebitendevice

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
)

// Screenshot queues a labeled capture of the target image, taken at the
// end of the next Submit. The PNG is written to ScreenshotDir with a
// timestamped file name.
func (d *Device) Screenshot(label string) {
	d.shots = append(d.shots, label)
}

// flushScreenshots captures the target once for every queued label.
func (d *Device) flushScreenshots() error {
	if len(d.shots) == 0 {
		return nil
	}
	defer func() { d.shots = d.shots[:0] }()

	dir := d.ScreenshotDir
	if dir == "" {
		dir = "screenshots"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "ebitendevice: screenshot dir")
	}

	b := d.target.Bounds()
	pixels := make([]byte, 4*b.Dx()*b.Dy())
	d.target.ReadPixels(pixels)
	img := unpremultiply(pixels, b.Dx(), b.Dy())

	now := time.Now()
	for _, label := range d.shots {
		name := fmt.Sprintf("%s_%s.png", now.Format("2006-01-02T150405"), sanitizeLabel(label))
		path := filepath.Join(dir, name)
		if err := savePNG(path, img); err != nil {
			return err
		}
		tessera.Logger().Info("ebitendevice: screenshot", "path", path)
	}
	return nil
}

// unpremultiply converts premultiplied RGBA pixels to straight alpha.
func unpremultiply(pixels []byte, w, h int) *image.NRGBA {
	out := &image.NRGBA{Pix: pixels, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}
	for px := out.Pix; len(px) >= 4; px = px[4:] {
		if a := uint32(px[3]); a != 0 && a != 0xff {
			for c := range 3 {
				px[c] = uint8(min(uint32(px[c])*0xff/a, 0xff))
			}
		}
	}
	return out
}

func savePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "ebitendevice: create screenshot")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(png.Encode(f, img), "ebitendevice: encode %s", path)
}

// sanitizeLabel keeps letters, digits, '-' and '.' and turns everything
// else into '_'. Blank labels become "unlabeled".
func sanitizeLabel(label string) string {
	if label = strings.TrimSpace(label); label == "" {
		return "unlabeled"
	}
	return strings.Map(func(c rune) rune {
		if c < utf8.RuneSelf && (c == '-' || c == '.' || unicode.IsLetter(c) || unicode.IsDigit(c)) {
			return c
		}
		return '_'
	}, label)
}
