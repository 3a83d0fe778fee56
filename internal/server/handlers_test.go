package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImageAt writes a solid-color PNG to path.
func createTestImageAt(t *testing.T, path string, width, height int, c color.Color) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
}

// createTestGIFAt writes a two-frame GIF to path.
func createTestGIFAt(t *testing.T, path string, width, height int) {
	t.Helper()
	palette := color.Palette{color.Black, color.White}
	anim := &gif.GIF{}
	for i := 0; i < 2; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, width, height), palette)
		frame.SetColorIndex(0, 0, uint8(i))
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 20)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, anim); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
}

// callTool sends a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) *MCPResponse {
	t.Helper()
	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}
	paramsJSON, _ := json.Marshal(params)

	resp := s.handleRequest(&MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeText unmarshals the text content of a successful tool response.
func decodeText[T any](t *testing.T, resp *MCPResponse) T {
	t.Helper()
	var out T
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content %v", result["content"])
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &out); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
	return out
}

// loadErrorKind returns the kind carried by a load failure response.
func loadErrorKind(t *testing.T, resp *MCPResponse) string {
	t.Helper()
	if resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	data, ok := resp.Error.Data.(LoadErrorData)
	if !ok {
		t.Fatalf("error data should be LoadErrorData, got %T (%v)", resp.Error.Data, resp.Error.Data)
	}
	return data.Kind
}

func TestHandleToolsCall_Set(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	createTestImageAt(t, filepath.Join(dir, "a.png"), 100, 50, color.RGBA{255, 0, 0, 255})

	resp := callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot":        "main.go:3",
		"url":         "a.png",
		"scale":       2,
		"source_file": filepath.Join(dir, "main.go"),
	})
	state := decodeText[SlotState](t, resp)

	if state.Slot != "main.go:3" || state.URL != "a.png" || state.OriginalURL != "a.png" {
		t.Errorf("unexpected identity %+v", state)
	}
	if state.ResolvedPath != filepath.Join(dir, "a.png") {
		t.Errorf("ResolvedPath: got %s", state.ResolvedPath)
	}
	if state.EffectiveSize.Width != 200 || state.EffectiveSize.Height != 100 {
		t.Errorf("EffectiveSize: got %+v, want 200x100", state.EffectiveSize)
	}
	if state.Image == nil || state.Image.Format != "png" || state.Image.Animated {
		t.Errorf("unexpected image info %+v", state.Image)
	}
	if state.LastError != nil {
		t.Errorf("LastError: got %+v", state.LastError)
	}
}

func TestHandleToolsCall_SetDefaultsScale(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	createTestImageAt(t, filepath.Join(dir, "a.png"), 10, 20, color.White)

	state := decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot":        "s",
		"url":         "a.png",
		"source_file": filepath.Join(dir, "main.go"),
	}))
	if state.Scale != 1 || state.EffectiveSize.Width != 10 {
		t.Errorf("default scale should be 1, got %v (%+v)", state.Scale, state.EffectiveSize)
	}
}

func TestHandleToolsCall_SetFailureKinds(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name     string
		url      string
		source   string
		wantKind string
	}{
		{"empty source", "a.png", "", "invalid_reference"},
		{"empty url", "", filepath.Join(dir, "main.go"), "invalid_reference"},
		{"missing file", "missing.png", filepath.Join(dir, "main.go"), "not_found"},
		{"corrupt file", "bad.png", filepath.Join(dir, "main.go"), "decode_failure"},
		{"remote uri", "https://example.com/a.png", filepath.Join(dir, "main.go"), "decode_failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			resp := callTool(t, s, "comment_image_set", map[string]interface{}{
				"slot":        "s",
				"url":         tt.url,
				"source_file": tt.source,
			})
			if got := loadErrorKind(t, resp); got != tt.wantKind {
				t.Errorf("kind: got %s, want %s", got, tt.wantKind)
			}
		})
	}
}

func TestHandleToolsCall_FailedSetKeepsPreviousImage(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	source := filepath.Join(dir, "main.go")
	createTestImageAt(t, filepath.Join(dir, "a.png"), 8, 8, color.White)

	decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "s", "url": "a.png", "source_file": source,
	}))
	resp := callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "s", "url": "gone.png", "scale": 4, "source_file": source,
	})
	if kind := loadErrorKind(t, resp); kind != "not_found" {
		t.Errorf("kind: got %s, want not_found", kind)
	}

	state := decodeText[SlotState](t, callTool(t, s, "comment_image_info", map[string]interface{}{"slot": "s"}))
	if state.URL != "a.png" || state.EffectiveSize.Width != 8 {
		t.Errorf("previous image should stay displayed, got %+v", state)
	}
	if state.LastError == nil || state.LastError.Kind != "not_found" {
		t.Errorf("LastError: got %+v, want not_found", state.LastError)
	}
}

func TestHandleToolsCall_Scale(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	createTestImageAt(t, filepath.Join(dir, "a.png"), 100, 50, color.White)

	decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "s", "url": "a.png", "source_file": filepath.Join(dir, "main.go"),
	}))

	tests := []struct {
		scale        float64
		wantW, wantH float64
	}{
		{0.5, 50, 25},
		{3, 300, 150},
		{0, 100, 50},
		{-1, 100, 50},
	}
	for _, tt := range tests {
		state := decodeText[SlotState](t, callTool(t, s, "comment_image_scale", map[string]interface{}{
			"slot": "s", "scale": tt.scale,
		}))
		if state.EffectiveSize.Width != tt.wantW || state.EffectiveSize.Height != tt.wantH {
			t.Errorf("scale %v: got %+v, want %vx%v", tt.scale, state.EffectiveSize, tt.wantW, tt.wantH)
		}
	}

	resp := callTool(t, s, "comment_image_scale", map[string]interface{}{"slot": "nope", "scale": 2})
	if resp.Error == nil || !strings.Contains(resp.Error.Data.(string), "unknown image slot") {
		t.Errorf("unknown slot should fail, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_Info(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	createTestImageAt(t, filepath.Join(dir, "a.png"), 20, 20, color.RGBA{255, 0, 0, 255})

	decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "s", "url": "a.png", "source_file": filepath.Join(dir, "main.go"),
	}))
	state := decodeText[SlotState](t, callTool(t, s, "comment_image_info", map[string]interface{}{"slot": "s"}))

	if state.Placeholder == nil {
		t.Fatal("info should include a placeholder color")
	}
	if state.Placeholder.Hex != "#f00000" {
		t.Errorf("placeholder hex: got %s, want #f00000", state.Placeholder.Hex)
	}
	if state.Image == nil || state.Image.ContentHash == "" || state.Image.FileSizeBytes == 0 {
		t.Errorf("unexpected image info %+v", state.Image)
	}
}

func TestHandleToolsCall_Render(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	createTestImageAt(t, filepath.Join(dir, "a.png"), 10, 6, color.White)
	createTestGIFAt(t, filepath.Join(dir, "b.gif"), 4, 4)
	source := filepath.Join(dir, "main.go")

	decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "static", "url": "a.png", "scale": 2, "source_file": source,
	}))
	decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "anim", "url": "b.gif", "scale": 3, "source_file": source,
	}))

	tests := []struct {
		slot      string
		frame     int
		wantW     int
		wantH     int
		wantFrame int
		wantDelay int64
	}{
		{"static", 0, 20, 12, 0, 0},
		{"anim", 0, 12, 12, 0, 200},
		{"anim", 3, 12, 12, 1, 200},
	}
	for _, tt := range tests {
		result := decodeText[struct {
			Width       int    `json:"width"`
			Height      int    `json:"height"`
			Frame       int    `json:"frame"`
			DelayMillis int64  `json:"delay_ms"`
			ImageBase64 string `json:"image_base64"`
			MimeType    string `json:"mime_type"`
		}](t, callTool(t, s, "comment_image_render", map[string]interface{}{
			"slot": tt.slot, "frame": tt.frame,
		}))

		if result.Width != tt.wantW || result.Height != tt.wantH {
			t.Errorf("%s: size %dx%d, want %dx%d", tt.slot, result.Width, result.Height, tt.wantW, tt.wantH)
		}
		if result.Frame != tt.wantFrame || result.DelayMillis != tt.wantDelay {
			t.Errorf("%s frame %d: got frame %d delay %d", tt.slot, tt.frame, result.Frame, result.DelayMillis)
		}
		if result.MimeType != "image/png" || result.ImageBase64 == "" {
			t.Errorf("%s: missing PNG payload", tt.slot)
		}
	}
}

func TestHandleToolsCall_RenderWithoutImage(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()

	// A failed first set keeps the slot without an image.
	callTool(t, s, "comment_image_set", map[string]interface{}{
		"slot": "s", "url": "later.png", "source_file": filepath.Join(dir, "main.go"),
	})
	resp := callTool(t, s, "comment_image_render", map[string]interface{}{"slot": "s"})
	if resp.Error == nil {
		t.Fatal("render without an image should fail")
	}
}

func TestHandleToolsCall_RenderOversizedScale(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	source := filepath.Join(dir, "main.go")
	createTestImageAt(t, filepath.Join(dir, "a.png"), 100, 50, color.White)
	createTestGIFAt(t, filepath.Join(dir, "b.gif"), 4, 4)

	tests := []struct {
		slot  string
		url   string
		scale float64
	}{
		{"static", "a.png", 1e6},
		{"animated", "b.gif", 1e300},
	}
	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			state := decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
				"slot": tt.slot, "url": tt.url, "scale": tt.scale, "source_file": source,
			}))
			if state.EffectiveSize.Width <= 0 {
				t.Errorf("effective size should stay positive, got %+v", state.EffectiveSize)
			}

			resp := callTool(t, s, "comment_image_render", map[string]interface{}{"slot": tt.slot})
			if resp.Error == nil {
				t.Fatal("render at an oversized scale should fail")
			}
			if msg, _ := resp.Error.Data.(string); !strings.Contains(msg, "too large") {
				t.Errorf("error data should explain the limit, got %v", resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_DisposeAndList(t *testing.T) {
	s := newTestServer(t, nil)
	dir := t.TempDir()
	source := filepath.Join(dir, "main.go")
	createTestImageAt(t, filepath.Join(dir, "a.png"), 4, 4, color.White)

	for _, slot := range []string{"b", "a"} {
		decodeText[SlotState](t, callTool(t, s, "comment_image_set", map[string]interface{}{
			"slot": slot, "url": "a.png", "source_file": source,
		}))
	}

	list := decodeText[ListResult](t, callTool(t, s, "comment_image_list", map[string]interface{}{}))
	if len(list.Slots) != 2 || list.Slots[0].Slot != "a" || list.Slots[1].Slot != "b" {
		t.Errorf("unexpected slots %+v", list.Slots)
	}
	if len(list.WatchedDirs) != 1 || list.WatchedDirs[0] != dir {
		t.Errorf("WatchedDirs: got %v, want [%s]", list.WatchedDirs, dir)
	}

	disposed := decodeText[map[string]interface{}](t, callTool(t, s, "comment_image_dispose", map[string]interface{}{"slot": "a"}))
	if disposed["disposed"] != true {
		t.Errorf("unexpected dispose result %v", disposed)
	}
	if resp := callTool(t, s, "comment_image_dispose", map[string]interface{}{"slot": "a"}); resp.Error == nil {
		t.Error("second dispose should fail")
	}
	if resp := callTool(t, s, "comment_image_info", map[string]interface{}{"slot": "a"}); resp.Error == nil {
		t.Error("info on a disposed slot should fail")
	}

	list = decodeText[ListResult](t, callTool(t, s, "comment_image_list", map[string]interface{}{}))
	if len(list.Slots) != 1 || list.Slots[0].Slot != "b" {
		t.Errorf("unexpected slots after dispose %+v", list.Slots)
	}
}

func TestHandleToolsCall_MissingSlot(t *testing.T) {
	s := newTestServer(t, nil)
	for _, name := range []string{
		"comment_image_set",
		"comment_image_scale",
		"comment_image_info",
		"comment_image_render",
		"comment_image_dispose",
	} {
		t.Run(name, func(t *testing.T) {
			resp := callTool(t, s, name, map[string]interface{}{})
			if resp.Error == nil {
				t.Fatal("missing slot should fail")
			}
			if data, _ := resp.Error.Data.(string); !strings.Contains(data, "slot is required") {
				t.Errorf("unexpected error data %v", resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t, nil)
	resp := callTool(t, s, "nonexistent_tool", map[string]interface{}{})
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("unknown tool should fail with -32000, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil)

	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`{invalid json}`),
	}

	resp := s.handleToolsCall(req)

	if resp.Error == nil {
		t.Fatal("Expected error for invalid params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("Error code: got %d, want -32602", resp.Error.Code)
	}
}

func TestExecuteTool_InvalidJSON(t *testing.T) {
	s := newTestServer(t, nil)
	if _, err := s.executeTool("comment_image_info", json.RawMessage(`{bad`)); err == nil {
		t.Error("invalid arguments should fail")
	}
}
