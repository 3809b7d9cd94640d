//go:build js && wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/textilegen/internal/pattern"
)

func errorResult(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// generate renders the JSON request {pattern, settings, noise}; omitted
// settings keep their defaults. It returns {width, height, data} where data
// is a Uint8ClampedArray ready for new ImageData(data, width, height).
func generate(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("missing request")
	}

	req, err := pattern.DecodeRequest([]byte(args[0].String()), 512, 512)
	if err != nil {
		return errorResult("%v", err)
	}

	img, err := pattern.Render(req.Pattern, req.Settings, req.Noise)
	if err != nil {
		return errorResult("%v", err)
	}

	data := js.Global().Get("Uint8ClampedArray").New(len(img.Pix))
	js.CopyBytesToJS(data, img.Pix)
	return map[string]any{
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"data":   data,
	}
}

// patterns returns the catalog as a JSON string.
func patterns(this js.Value, args []js.Value) any {
	b, err := json.Marshal(pattern.Catalog())
	if err != nil {
		return errorResult("%v", err)
	}
	return string(b)
}

func main() {
	js.Global().Set("textilegenGenerate", js.FuncOf(generate))
	js.Global().Set("textilegenPatterns", js.FuncOf(patterns))

	fmt.Println("textilegen WASM module loaded")
	select {}
}
