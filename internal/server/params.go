package server

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/noise"
	"github.com/MeKo-Tech/textilegen/internal/palette"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
)

// parseRenderFile splits "plaid.webp" into the pattern id and format.
// A missing extension means PNG.
func parseRenderFile(name string) (string, export.Format, bool) {
	ext := path.Ext(name)
	id := strings.TrimSuffix(name, ext)
	if id == "" {
		return "", "", false
	}
	if ext == "" {
		return id, export.PNG, true
	}
	f, err := export.ParseFormat(ext)
	if err != nil {
		return "", "", false
	}
	return id, f, true
}

type queryReader struct {
	q   url.Values
	err error
}

func (r *queryReader) floatVar(key string, dst *float64) {
	v := r.q.Get(key)
	if v == "" || r.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = f
}

func (r *queryReader) intVar(key string, dst *int) {
	v := r.q.Get(key)
	if v == "" || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = n
}

func (r *queryReader) int64Var(key string, dst *int64) {
	v := r.q.Get(key)
	if v == "" || r.err != nil {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = n
}

func (r *queryReader) boolVar(key string, dst *bool) {
	v := r.q.Get(key)
	if v == "" || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %q", key, v)
		return
	}
	*dst = b
}

// applyQuery overlays query parameters onto base. Keys follow the config
// file's snake_case names; palette is a comma separated list of hex colors
// with or without the leading '#'; an empty palette clears the default.
func applyQuery(q url.Values, base pattern.Settings, ns noise.Settings) (pattern.Settings, noise.Settings, error) {
	s := base
	r := &queryReader{q: q}

	r.intVar("width", &s.Width)
	r.intVar("height", &s.Height)
	r.int64Var("seed", &s.Seed)
	r.floatVar("scale", &s.Scale)
	r.intVar("octaves", &s.Octaves)
	r.floatVar("persistence", &s.Persistence)
	r.floatVar("lacunarity", &s.Lacunarity)
	r.floatVar("grid_size", &s.GridSize)
	r.floatVar("line_width", &s.LineWidth)
	r.intVar("cell_count", &s.CellCount)
	r.intVar("iterations", &s.Iterations)
	r.floatVar("zoom", &s.Zoom)
	r.floatVar("center_x", &s.CenterX)
	r.floatVar("center_y", &s.CenterY)
	r.floatVar("julia_real", &s.JuliaReal)
	r.floatVar("julia_imag", &s.JuliaImag)
	r.boolVar("seamless", &s.Seamless)

	r.floatVar("frequency", &ns.Frequency)
	r.floatVar("amplitude", &ns.Amplitude)
	r.floatVar("roughness", &ns.Roughness)
	r.boolVar("ridged", &ns.Ridged)
	r.boolVar("billowy", &ns.Billowy)
	r.boolVar("iq", &ns.IQ)
	if r.err != nil {
		return s, ns, r.err
	}

	if v := q.Get("color_mode"); v != "" {
		m, err := palette.ParseMode(v)
		if err != nil {
			return s, ns, err
		}
		s.ColorMode = m
	}
	if q.Has("palette") {
		var colors []string
		for _, c := range strings.Split(q.Get("palette"), ",") {
			if c = strings.TrimSpace(c); c != "" {
				colors = append(colors, "#"+strings.TrimPrefix(c, "#"))
			}
		}
		s.Palette = colors
	}
	return s, ns, nil
}
