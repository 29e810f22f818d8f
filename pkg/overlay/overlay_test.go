package overlay

import (
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/unrealgt/pkg/scene"
	"github.com/stretchr/testify/require"
)

func accepted(id int64, box scene.Rect, classname string) scene.AnnotatedRegion {
	return scene.AnnotatedRegion{
		Region: scene.Region{ClusterID: id, Box: box},
		Annotation: scene.GroundTruth{
			Classification: scene.Classification{Classname: classname},
		},
	}
}

func TestRender(t *testing.T) {
	c := NewCanvas(logs.NewTestingLog(t))
	img, version := c.Snapshot()
	require.Nil(t, img)
	require.Equal(t, int64(0), version)
	_, err := c.SnapshotJPEG(80)
	require.ErrorIs(t, err, ErrNothingRendered)

	bg := cimg.NewImage(120, 80, cimg.PixelFormatRGB)
	c.Render(bg, []scene.AnnotatedRegion{accepted(1, scene.MakeRect(10, 40, 30, 30), "LinuxCup")})

	img, version = c.Snapshot()
	require.NotNil(t, img)
	require.Equal(t, int64(1), version)
	require.Equal(t, 120, img.Rect.Dx())
	require.Equal(t, 80, img.Rect.Dy())

	// Left edge of the box
	px := img.RGBAAt(10, 55)
	require.Greater(t, px.B, uint8(150))
	require.Less(t, px.R, uint8(50))

	// Center of the box is untouched
	require.Equal(t, uint8(0), img.RGBAAt(25, 55).B)

	// The label is drawn somewhere above the box
	found := false
	for y := 0; y < 40 && !found; y++ {
		for x := 10; x < 120; x++ {
			if img.RGBAAt(x, y).R > 100 {
				found = true
				break
			}
		}
	}
	require.True(t, found)

	// The background is not modified
	for _, p := range bg.Pixels {
		require.Equal(t, uint8(0), p)
	}

	// Snapshots are copies
	img.Pix[0] = 99
	again, _ := c.Snapshot()
	require.NotEqual(t, uint8(99), again.Pix[0])
}

func TestRenderNothingAccepted(t *testing.T) {
	c := NewCanvas(logs.NewTestingLog(t))
	c.Render(cimg.NewImage(16, 16, cimg.PixelFormatRGB), nil)
	c.Render(cimg.NewImage(16, 16, cimg.PixelFormatRGB), []scene.AnnotatedRegion{})
	require.Equal(t, int64(2), c.Version())
	img, _ := c.Snapshot()
	require.Equal(t, uint8(0), img.RGBAAt(8, 8).B)
}

func TestRenderOtherFormats(t *testing.T) {
	for _, format := range []cimg.PixelFormat{cimg.PixelFormatGRAY, cimg.PixelFormatRGBA} {
		c := NewCanvas(logs.NewTestingLog(t))
		bg := cimg.NewImage(20, 10, format)
		for i := range bg.Pixels {
			bg.Pixels[i] = 255
		}
		c.Render(bg, []scene.AnnotatedRegion{accepted(1, scene.MakeRect(4, 4, 10, 5), "LinuxCup")})
		img, version := c.Snapshot()
		require.Equal(t, int64(1), version)
		require.Equal(t, 20, img.Rect.Dx())
		require.Equal(t, 10, img.Rect.Dy())
		// Last pixel of the last row is white background
		require.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(19, 9))
		// Left edge of the box is blue
		require.Less(t, img.RGBAAt(4, 6).R, uint8(50))
	}
}

func TestConcurrentRender(t *testing.T) {
	c := NewCanvas(logs.NewTestingLog(t))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bg := cimg.NewImage(64, 64, cimg.PixelFormatRGB)
			c.Render(bg, []scene.AnnotatedRegion{accepted(int64(i), scene.MakeRect(i, 20, 20, 20), "JaMilch")})
			c.Snapshot()
		}()
	}
	wg.Wait()
	require.Equal(t, int64(8), c.Version())
}

func TestSaveJPEG(t *testing.T) {
	c := NewCanvas(logs.NewTestingLog(t))
	c.Render(cimg.NewImage(64, 48, cimg.PixelFormatRGB), []scene.AnnotatedRegion{accepted(1, scene.MakeRect(5, 25, 20, 20), "SojaMilch")})
	filename := filepath.Join(t.TempDir(), "overlay.jpg")
	require.NoError(t, c.SaveJPEG(filename, 90))
	raw, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xd8}, raw[:2])

	decoded, err := cimg.ReadFile(filename)
	require.NoError(t, err)
	require.Equal(t, 64, decoded.Width)
	require.Equal(t, 48, decoded.Height)
}
