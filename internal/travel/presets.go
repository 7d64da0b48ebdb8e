package travel

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var ErrUnknownPreset = errors.New("unknown layout preset")

// DefaultSettleOffset is how far past the gateway a route comes to rest.
const DefaultSettleOffset = 30

// Stage is the drawing area a grid layout is computed from.
type Stage struct {
	Width         float64 `yaml:"width"`
	Height        float64 `yaml:"height"`
	Margin        float64 `yaml:"margin"`
	CorridorWidth float64 `yaml:"corridor_width"`
}

// ZoneSpec names a zone before it has geometry.
type ZoneSpec struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// GridLayout lays the zones out in two columns on either side of a corridor
// running down the middle of the stage. Zones alternate left and right, top
// to bottom, and each gateway sits at the middle of the corridor-facing side.
func GridLayout(stage Stage, settleOffset float64, specs ...ZoneSpec) (*Layout, error) {
	if len(specs) == 0 {
		return NewLayout(stage.Width/2, settleOffset)
	}
	cx := stage.Width / 2
	rows := (len(specs) + 1) / 2
	rowHeight := (stage.Height - stage.Margin*float64(rows+1)) / float64(rows)
	if rowHeight <= 0 || cx-stage.CorridorWidth/2 <= stage.Margin {
		return nil, fmt.Errorf("stage %vx%v too small for %d zones: %w", stage.Width, stage.Height, len(specs), ErrInvalidZone)
	}
	leftMin, leftMax := stage.Margin, cx-stage.CorridorWidth/2
	rightMin, rightMax := cx+stage.CorridorWidth/2, stage.Width-stage.Margin

	zones := make([]Zone, 0, len(specs))
	for i, s := range specs {
		row := i / 2
		top := stage.Margin + float64(row)*(rowHeight+stage.Margin)
		mid := top + rowHeight/2
		z := Zone{ID: s.ID, Name: s.Name}
		if i%2 == 0 {
			z.Bounds = orb.Bound{Min: orb.Point{leftMin, top}, Max: orb.Point{leftMax, top + rowHeight}}
			z.Gateway = orb.Point{leftMax, mid}
		} else {
			z.Bounds = orb.Bound{Min: orb.Point{rightMin, top}, Max: orb.Point{rightMax, top + rowHeight}}
			z.Gateway = orb.Point{rightMin, mid}
		}
		zones = append(zones, z)
	}
	return NewLayout(cx, settleOffset, zones...)
}

type preset struct {
	stage Stage
	zones []ZoneSpec
}

var presets = map[string]preset{
	"godmode": {
		stage: Stage{Width: 800, Height: 600, Margin: 20, CorridorWidth: 120},
		zones: []ZoneSpec{
			{ID: "downtown", Name: "Downtown"},
			{ID: "suburbs", Name: "Suburbs"},
			{ID: "campus", Name: "University Campus"},
			{ID: "industrial", Name: "Industrial Park"},
		},
	},
	"simulation": {
		stage: Stage{Width: 300, Height: 100, CorridorWidth: 100},
		zones: []ZoneSpec{
			{ID: "home", Name: "Home"},
			{ID: "office", Name: "Office"},
		},
	},
}

// Preset builds one of the built-in maps.
func Preset(name string, settleOffset float64) (*Layout, error) {
	stage, zones, err := PresetZones(name)
	if err != nil {
		return nil, err
	}
	return GridLayout(stage, settleOffset, zones...)
}

// PresetZones returns the default stage and the zone names of a built-in map.
func PresetZones(name string) (Stage, []ZoneSpec, error) {
	p, ok := presets[name]
	if !ok {
		return Stage{}, nil, fmt.Errorf("%q: %w", name, ErrUnknownPreset)
	}
	return p.stage, append([]ZoneSpec(nil), p.zones...), nil
}
