package server

import (
	"bytes"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/textilegen/internal/embroidery"
	"github.com/MeKo-Tech/textilegen/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(t *testing.T, h http.Handler, target, ctype string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPointsPlanEndpoint(t *testing.T) {
	h := New(Options{}, nil).Handler()
	body := `{"points":[{"x":0,"y":0},{"x":100,"y":0}],"strategy":"zigzag","mm_per_px":1,"stitch_len_mm":10,"width_mm":4}`

	rec := post(t, h, "/api/embroidery/plan", "application/json", []byte(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		OK     bool               `json:"ok"`
		Points []embroidery.Point `json:"points"`
		Info   embroidery.Info    `json:"info"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.OK)
	require.Len(t, got.Points, 12)
	assert.Equal(t, embroidery.ColorChange, got.Points[0].Kind)
	assert.InDelta(t, 2, got.Points[1].Y, 1e-9)
	assert.InDelta(t, -2, got.Points[2].Y, 1e-9)
	assert.Equal(t, 11, got.Info.StitchCount)
	assert.Equal(t, embroidery.Zigzag, got.Info.Strategy)
	assert.Equal(t, 1, got.Info.Passes)
}

func TestPointsPlanEndpointDefaultsAndErrors(t *testing.T) {
	h := New(Options{}, nil).Handler()

	rec := post(t, h, "/api/embroidery/plan", "application/json", []byte(`{"points":[{"x":3,"y":4}]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"points":[],"info":{"stitch_count":0,"jump_count":0,"paths":0,"strategy":"outline","mm_per_px":0.26,"stitch_len_mm":2.5,"width_mm":2,"passes":1}}`, rec.Body.String())

	rec = post(t, h, "/api/embroidery/plan", "application/json", []byte(`{"points":[{"x":0,"y":0},{"x":9,"y":9}],"strategy":"cross"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, "/api/embroidery/plan", "application/json", []byte(`{"points":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointsPlanEndpointDST(t *testing.T) {
	h := New(Options{}, nil).Handler()
	body := `{"points":[{"x":0,"y":0},{"x":50,"y":0}]}`

	rec := post(t, h, "/api/embroidery/plan?format=dst", "application/json", []byte(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "points.dst")

	pts, err := embroidery.ReadDST(rec.Body, embroidery.DefaultParams().MMPerPx)
	require.NoError(t, err)
	require.NotEmpty(t, pts)
	assert.InDelta(t, 50, pts[len(pts)-1].X, 0.25)
}

func TestPatternPlanEndpoint(t *testing.T) {
	h := New(Options{}, nil).Handler()

	rec := get(t, h, http.MethodGet, "/api/embroidery/dragon_curve.json?width=64&height=64&iterations=6&strategy=satin&passes=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var plan embroidery.Plan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plan))
	assert.Equal(t, embroidery.Satin, plan.Info.Strategy)
	assert.Equal(t, 2, plan.Info.Passes)
	assert.NotZero(t, plan.Info.StitchCount)

	rec = get(t, h, http.MethodGet, "/api/embroidery/veins.dst?width=64&height=64")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Body.String(), "LA:veins"))

	for target, code := range map[string]int{
		"/api/embroidery/plaid.dst":                      http.StatusUnprocessableEntity,
		"/api/embroidery/nope.dst":                       http.StatusNotFound,
		"/api/embroidery/veins.png":                      http.StatusNotFound,
		"/api/embroidery/veins.dst?strategy=cross":       http.StatusBadRequest,
		"/api/embroidery/veins.dst?mm_per_px=0":          http.StatusBadRequest,
		"/api/embroidery/veins.dst?width=99999":          http.StatusBadRequest,
		"/api/embroidery/veins.json?passes=many":         http.StatusBadRequest,
		"/api/embroidery/organic_flow.json?cell_count=1": http.StatusOK,
	} {
		rec := get(t, h, http.MethodGet, target)
		assert.Equal(t, code, rec.Code, target)
	}
}

func TestUpscaleEndpoint(t *testing.T) {
	srv := New(Options{}, nil)
	h := srv.Handler()

	src := image.NewNRGBA(image.Rect(0, 0, 5, 4))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	var raw bytes.Buffer
	require.NoError(t, export.Encode(&raw, src, export.PNG, 0))

	rec := post(t, h, "/api/upscale?scale=3", "image/png", raw.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, image.Rect(0, 0, 15, 12), decodePNG(t, rec).Bounds())

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("image", "tile.png")
	require.NoError(t, err)
	_, err = part.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec = post(t, h, "/api/upscale", mw.FormDataContentType(), form.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, image.Rect(0, 0, 10, 8), decodePNG(t, rec).Bounds())
	assert.EqualValues(t, 2, srv.Status().Render.TotalRendered)

	rec = post(t, h, "/api/upscale?scale=5", "image/png", raw.Bytes())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post(t, h, "/api/upscale?scale=two", "image/png", raw.Bytes())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = post(t, h, "/api/upscale", "image/png", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpscaleRespectsMaxDimension(t *testing.T) {
	h := New(Options{Preview: PreviewConfig{MaxDimension: 4}}, nil).Handler()
	var raw bytes.Buffer
	require.NoError(t, export.Encode(&raw, image.NewNRGBA(image.Rect(0, 0, 8, 2)), export.PNG, 0))

	rec := post(t, h, "/api/upscale", "image/png", raw.Bytes())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
