package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/textilegen/internal/effects"
	"github.com/MeKo-Tech/textilegen/internal/embroidery"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/MeKo-Tech/textilegen/internal/pattern"
	"github.com/paulmach/orb"
)

// maxUploadBytes bounds request bodies of the embroidery and upscale
// endpoints.
const maxUploadBytes = 32 << 20

type planPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// planRequest is a freehand polyline in pixel space plus stitch
// parameters. Missing parameters keep their defaults.
type planRequest struct {
	Points []planPoint `json:"points"`
	embroidery.Params
}

type planResponse struct {
	OK bool `json:"ok"`
	embroidery.Plan
}

func (p *Preview) writePlan(w http.ResponseWriter, name string, plan embroidery.Plan, params embroidery.Params, dst bool) {
	if !dst {
		if plan.Points == nil {
			plan.Points = []embroidery.Point{}
		}
		writeJSON(w, p.log(), planResponse{OK: true, Plan: plan})
		return
	}

	var buf bytes.Buffer
	if err := embroidery.WriteDST(&buf, name, plan.Points, params.MMPerPx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".dst"))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		p.log().Error("failed to write response", "error", err)
	}
}

// servePointsPlan runs POST /api/embroidery/plan. ?format=dst answers
// with a DST file instead of the JSON plan.
func (p *Preview) servePointsPlan(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	req := planRequest{Params: embroidery.DefaultParams()}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	ls := make(orb.LineString, len(req.Points))
	for i, pt := range req.Points {
		ls[i] = orb.Point{pt.X, pt.Y}
	}
	plan, err := embroidery.Generate([]orb.LineString{ls}, req.Params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.log().Info("stitch plan generated", "strategy", plan.Info.Strategy, "stitches", plan.Info.StitchCount)
	p.writePlan(w, "points", plan, req.Params, r.URL.Query().Get("format") == "dst")
}

// stitchQuery overlays stitch parameters from the query onto the defaults.
func stitchQuery(r *http.Request) (embroidery.Params, error) {
	params := embroidery.DefaultParams()
	q := r.URL.Query()
	st, err := embroidery.ParseStrategy(q.Get("strategy"))
	if err != nil {
		return params, err
	}
	params.Strategy = st

	qr := &queryReader{q: q}
	qr.floatVar("density", &params.Density)
	qr.floatVar("width_mm", &params.WidthMM)
	qr.intVar("passes", &params.Passes)
	qr.floatVar("stitch_len_mm", &params.StitchLenMM)
	qr.floatVar("mm_per_px", &params.MMPerPx)
	if qr.err != nil {
		return params, qr.err
	}
	if c := q.Get("thread"); c != "" {
		params.Color = "#" + strings.TrimPrefix(c, "#")
	}
	return params, params.Validate()
}

// servePatternPlan runs GET /api/embroidery/{file}, stitching the strokes
// of a path pattern. file is "<pattern>.dst" or "<pattern>.json".
func (p *Preview) servePatternPlan(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	file := r.PathValue("file")
	ext := strings.ToLower(path.Ext(file))
	id := strings.TrimSuffix(file, path.Ext(file))
	if ext != ".dst" && ext != ".json" {
		http.NotFound(w, r)
		return
	}
	if _, _, ok := pattern.Lookup(id); !ok {
		http.Error(w, fmt.Sprintf("unknown pattern: %s", id), http.StatusNotFound)
		return
	}

	s, ns, err := p.settingsFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params, err := stitchQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	paths, err := pattern.Paths(id, s, ns)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, pattern.ErrNoPaths) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	plan, err := embroidery.Generate(paths, params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.log().Info("pattern stitched", "pattern", id, "strategy", plan.Info.Strategy, "stitches", plan.Info.StitchCount)
	p.writePlan(w, id, plan, params, ext == ".dst")
}

// uploadFormat picks the decoder from a Content-Type, then from the file
// extension, then falls back to PNG.
func uploadFormat(ctype, filename string) export.Format {
	if mt, _, err := mime.ParseMediaType(ctype); err == nil {
		if f, err := export.ParseFormat(mt); err == nil {
			return f
		}
	}
	if f, err := export.ParseFormat(filepath.Ext(filename)); err == nil {
		return f
	}
	return export.PNG
}

// uploadedImage reads the request image from a multipart "image" field or
// from the raw body.
func uploadedImage(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	ctype := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ctype); err == nil && mt == "multipart/form-data" {
		f, hdr, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("missing image field: %w", err)
		}
		defer f.Close()
		return export.Decode(f, uploadFormat(hdr.Header.Get("Content-Type"), hdr.Filename))
	}
	return export.Decode(r.Body, uploadFormat(ctype, ""))
}

// serveUpscale runs POST /api/upscale?scale=2..4 and answers with a PNG.
func (p *Preview) serveUpscale(w http.ResponseWriter, r *http.Request) {
	if !allowCORS(w, r) {
		return
	}
	scale := effects.MinUpscale
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid scale: %q", v), http.StatusBadRequest)
			return
		}
		scale = n
	}
	if scale < effects.MinUpscale || scale > effects.MaxUpscale {
		http.Error(w, effects.ErrInvalidScale.Error(), http.StatusBadRequest)
		return
	}

	img, err := uploadedImage(w, r)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid image: %v", err), http.StatusBadRequest)
		return
	}
	b := img.Bounds()
	if b.Dx() > p.cfg.MaxDimension || b.Dy() > p.cfg.MaxDimension {
		http.Error(w, fmt.Sprintf("width and height must not exceed %d", p.cfg.MaxDimension), http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("upscale_%dx%d_x%d", b.Dx(), b.Dy(), scale)
	big, ok := p.run(w, r, key, func() (*image.NRGBA, error) {
		return effects.Upscale(img, scale)
	})
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, big, export.PNG, 0); err != nil {
		p.totalFailed.Add(1)
		http.Error(w, "failed to encode image", http.StatusInternalServerError)
		return
	}
	p.totalRendered.Add(1)
	p.log().Info("texture upscaled", "scale", scale, "width", big.Bounds().Dx(), "height", big.Bounds().Dy())

	w.Header().Set("Content-Type", export.PNG.MIME())
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		p.log().Error("failed to write response", "error", err)
	}
}
