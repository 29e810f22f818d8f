package gt

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Objects that exist in the Unreal Engine kitchen scenes, and which we are allowed to emit as ground truth
var UnrealObjects = []string{
	"AlbiHimbeerJuice",
	"BlueCeramicIkeaMug",
	"BlueMetalPlateWhiteSpeckles",
	"BluePlasticBowl",
	"BluePlasticFork",
	"BluePlasticKnife",
	"BluePlasticSpoon",
	"CupEcoOrange",
	"EdekaRedBowl",
	"ElBrygCoffee",
	"JaMilch",
	"JodSalz",
	"KelloggsCornFlakes",
	"KelloggsToppasMini",
	"KnusperSchokoKeks",
	"KoellnMuesliKnusperHonigNuss",
	"LargeGreySpoon",
	"LinuxCup",
	"LionCerealBox",
	"MarkenSalz",
	"MeerSalz",
	"NesquikCereal",
	"PfannerGruneIcetea",
	"PfannerPfirsichIcetea",
	"RedMetalBowlWhiteSpeckles",
	"RedMetalCupWhiteSpeckles",
	"RedMetalPlateWhiteSpeckles",
	"RedPlasticFork",
	"RedPlasticKnife",
	"RedPlasticSpoon",
	"ReineButterMilch",
	"SeverinPancakeMaker",
	"SiggBottle",
	"SlottedSpatula",
	"SojaMilch",
	"SpitzenReis",
	"TomatoAlGustoBasilikum",
	"TomatoSauceOroDiParma",
	"VollMilch",
	"WeideMilchSmall",
	"WhiteCeramicIkeaBowl",
	"YellowCeramicPlate",
}

// Catalog is the closed vocabulary of object types.
// It is read-only after construction, so it can be shared between threads.
type Catalog struct {
	names []string
	set   map[string]struct{}
}

func NewCatalog(names []string) *Catalog {
	c := &Catalog{
		names: make([]string, 0, len(names)),
		set:   make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		if _, exists := c.set[n]; exists {
			continue
		}
		c.names = append(c.names, n)
		c.set[n] = struct{}{}
	}
	return c
}

var defaultCatalog = NewCatalog(UnrealObjects)

// DefaultCatalog returns the compiled-in catalog of Unreal objects
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Load a text file with one object type name on each line.
// Blank lines and lines starting with '#' are ignored.
func LoadCatalogFile(filename string) (*Catalog, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	names := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Error reading catalog file %v: %w", filename, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("Catalog file %v is empty", filename)
	}
	return NewCatalog(names), nil
}

// Contains is an exact, case sensitive match
func (c *Catalog) Contains(name string) bool {
	_, ok := c.set[name]
	return ok
}

func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns the catalog entries in their original order
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}
