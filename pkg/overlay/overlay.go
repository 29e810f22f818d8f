// Package overlay draws the accepted regions of a frame onto its color image, so that a human
// can check the ground truth. Nothing in here affects which regions are accepted.
package overlay

import (
	"errors"
	"image"
	"image/color"
	"os"
	"sync"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/scene"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var ErrNothingRendered = errors.New("No overlay has been rendered yet")

var (
	BoxColor   = color.RGBA{0, 0, 200, 255}
	LabelColor = color.RGBA{255, 20, 147, 255}
)

const (
	BoxLineWidth = 2
	LabelSize    = 18
)

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Canvas holds the most recently composed overlay image.
// Render holds the lock for the entire draw, so a reader never sees a half drawn frame.
type Canvas struct {
	log     logs.Log
	lock    sync.Mutex
	face    font.Face // Not thread safe. Only used while 'lock' is held.
	latest  *image.RGBA
	version int64 // Incremented every time a new image is published
}

func NewCanvas(log logs.Log) *Canvas {
	return &Canvas{
		log:  logs.NewPrefixLogger(log, "Overlay:"),
		face: truetype.NewFace(labelFont, &truetype.Options{Size: LabelSize}),
	}
}

// Render draws a box and a label for every accepted region on top of a copy of background,
// and publishes the result.
func (c *Canvas) Render(background *cimg.Image, accepted []scene.AnnotatedRegion) {
	c.lock.Lock()
	defer c.lock.Unlock()

	// Any channel layout is accepted. The background itself is never modified.
	bgImage, err := background.ToRGBA(255).ToImage()
	if err != nil {
		c.log.Errorf("Failed to convert overlay background: %v", err)
		return
	}
	dc := gg.NewContextForImage(bgImage)
	dc.SetFontFace(c.face)
	for _, a := range accepted {
		drawRegion(dc, a.Region.Box, a.Annotation.Classification.Classname)
	}
	c.latest = dc.Image().(*image.RGBA)
	c.version++
}

func drawRegion(dc *gg.Context, box scene.Rect, label string) {
	dc.SetColor(BoxColor)
	dc.SetLineWidth(BoxLineWidth)
	dc.DrawRectangle(float64(box.X), float64(box.Y), float64(box.Width), float64(box.Height))
	dc.Stroke()

	// The label sits above the box, with its baseline one text height above the top edge
	_, textHeight := dc.MeasureString(label)
	dc.SetColor(LabelColor)
	dc.DrawString(label, float64(box.X), float64(box.Y)-textHeight)
}

// Snapshot returns a copy of the latest overlay, and its version number.
// Returns nil if nothing has been rendered yet.
func (c *Canvas) Snapshot() (*image.RGBA, int64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.latest == nil {
		return nil, 0
	}
	clone := image.NewRGBA(c.latest.Rect)
	copy(clone.Pix, c.latest.Pix)
	return clone, c.version
}

// Version is incremented every time a new overlay is published
func (c *Canvas) Version() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.version
}

// SnapshotJPEG returns the latest overlay, compressed to JPEG
func (c *Canvas) SnapshotJPEG(quality int) ([]byte, error) {
	img, _ := c.Snapshot()
	if img == nil {
		return nil, ErrNothingRendered
	}
	native, err := cimg.FromImage(img, false)
	if err != nil {
		return nil, err
	}
	return cimg.Compress(native.ToRGB(), cimg.MakeCompressParams(cimg.Sampling420, quality, 0))
}

// SaveJPEG writes the latest overlay to a file
func (c *Canvas) SaveJPEG(filename string, quality int) error {
	b, err := c.SnapshotJPEG(quality)
	if err != nil {
		return err
	}
	c.log.Debugf("Writing %v", filename)
	return os.WriteFile(filename, b, 0644)
}
