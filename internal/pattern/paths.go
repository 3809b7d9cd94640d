package pattern

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/paulmach/orb"
)

// ErrNoPaths is returned by Paths for patterns that are not built from
// polylines.
var ErrNoPaths = errors.New("pattern has no stroke paths")

type strandFunc func(s Settings, ns noise.Settings, w, h float64) []strand

var strandBuilders = map[string]strandFunc{
	"organic_flow": flowStrands,
	"veins":        veinStrands,
	"dragon_curve": dragonStrands,
}

// PathPatterns lists the pattern ids Paths accepts, sorted.
func PathPatterns() []string {
	out := make([]string, 0, len(strandBuilders))
	for id := range strandBuilders {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Paths returns the polylines a path-based pattern strokes, in drawing
// order and in pixel coordinates of a Width×Height canvas.
func Paths(id string, s Settings, ns noise.Settings) ([]orb.LineString, error) {
	if _, _, ok := Lookup(id); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, id)
	}
	build, ok := strandBuilders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoPaths, id)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	strands := build(s, ns, float64(s.Width), float64(s.Height))
	out := make([]orb.LineString, len(strands))
	for i, st := range strands {
		out[i] = st.path
	}
	return out, nil
}
