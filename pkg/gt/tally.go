package gt

import (
	"github.com/cyclopcam/unrealgt/pkg/scene"
)

type tallyEntry struct {
	instance string
	count    int
}

// Tally counts pixel hits per instance, and remembers the order in which instances were first seen.
// The insertion order is what makes majority selection deterministic when counts tie.
type Tally struct {
	entries []tallyEntry
	index   map[string]int
	total   int
}

func NewTally() *Tally {
	return &Tally{
		index: map[string]int{},
	}
}

func (t *Tally) Add(instance string) {
	t.total++
	if i, ok := t.index[instance]; ok {
		t.entries[i].count++
		return
	}
	t.index[instance] = len(t.entries)
	t.entries = append(t.entries, tallyEntry{instance: instance, count: 1})
}

// Count returns the number of hits for one instance
func (t *Tally) Count(instance string) int {
	if i, ok := t.index[instance]; ok {
		return t.entries[i].count
	}
	return 0
}

// Len is the number of distinct instances seen
func (t *Tally) Len() int {
	return len(t.entries)
}

// Total is the sum of all hits
func (t *Tally) Total() int {
	return t.total
}

// Majority returns the instance with the strictly greatest count.
// On a tie, the instance that was added first wins.
func (t *Tally) Majority() (instance string, count int, ok bool) {
	if len(t.entries) == 0 {
		return "", 0, false
	}
	best := 0
	for i := 1; i < len(t.entries); i++ {
		if t.entries[i].count > t.entries[best].count {
			best = i
		}
	}
	return t.entries[best].instance, t.entries[best].count, true
}

// TallyRegion scans every pixel of box (clipped to the image), in row major order,
// and counts the pixels that match a known instance color.
// Pixels that match nothing are skipped.
func TallyRegion(box scene.Rect, seg *scene.SegmentationImage, index *ColorIndex) *Tally {
	t := NewTally()
	box = box.Clip(seg.Width(), seg.Height())
	if box.Empty() {
		return t
	}
	// Segmentation images are mostly long runs of one color, so remember the previous lookup
	prevColor := scene.Color{}
	var prevNames []string
	havePrev := false
	for y := box.Y; y < box.Y2(); y++ {
		row := seg.Row(y, box.X, box.X2())
		for i := 0; i < len(row); i += 3 {
			c := scene.Color{row[i], row[i+1], row[i+2]}
			if !havePrev || c != prevColor {
				prevColor = c
				prevNames = index.Lookup(c)
				havePrev = true
			}
			for _, instance := range prevNames {
				t.Add(instance)
			}
		}
	}
	return t
}
