package gt

import (
	"github.com/cyclopcam/unrealgt/pkg/scene"
)

var (
	colorCup     = scene.RGB(10, 20, 30)
	colorJaMilch = scene.RGB(200, 10, 10)
	colorSoja    = scene.RGB(10, 200, 10)
	colorUnknown = scene.RGB(1, 2, 3)
	colorProp    = scene.RGB(7, 7, 7)
	colorWhite   = scene.RGB(255, 255, 255)
	colorBlack   = scene.RGB(0, 0, 0)
)

func testObjects() scene.InstanceColorMap {
	return scene.InstanceColorMap{
		"SM_LinuxCup_5":     colorCup,
		"SM_JaMilch_1":      colorJaMilch,
		"SM_SojaMilch_2":    colorSoja,
		"SM_UnknownThing_2": colorUnknown,
		"Prop":              colorProp,
	}
}

func region(id int64, x, y, w, h int) scene.Region {
	return scene.Region{ClusterID: id, Box: scene.MakeRect(x, y, w, h)}
}
