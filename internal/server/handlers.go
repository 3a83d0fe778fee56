package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ironsheep/comment-image-mcp/internal/imaging"
	"github.com/ironsheep/comment-image-mcp/internal/resource"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "comment_image_set").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// LoadErrorData is the error data attached to image load failures so the
// host can choose a placeholder.
type LoadErrorData struct {
	Kind  string `json:"kind"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Load failures carry a LoadErrorData; other failures carry the error text.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		var le *resource.LoadError
		if errors.As(err, &le) {
			return s.errorResponse(req.ID, -32000, "Image load failed", LoadErrorData{
				Kind:  le.Kind.String(),
				URL:   le.URL,
				Error: err.Error(),
			})
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "comment_image_set":
		return s.handleSet(args)
	case "comment_image_scale":
		return s.handleScale(args)
	case "comment_image_info":
		return s.handleInfo(args)
	case "comment_image_render":
		return s.handleRender(args)
	case "comment_image_dispose":
		return s.handleDispose(args)
	case "comment_image_list":
		return s.handleList(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// SlotState describes what a slot currently displays.
type SlotState struct {
	Slot          string                  `json:"slot"`
	URL           string                  `json:"url"`
	OriginalURL   string                  `json:"original_url,omitempty"`
	ResolvedPath  string                  `json:"resolved_path,omitempty"`
	Scale         float64                 `json:"scale"`
	EffectiveSize imaging.Size            `json:"effective_size"`
	Image         *imaging.ImageInfo      `json:"image,omitempty"`
	Placeholder   *imaging.ColorFrequency `json:"placeholder_color,omitempty"`
	LastError     *LoadErrorData          `json:"last_error,omitempty"`
}

func slotState(slot string, r *resource.Resource, withColor bool) *SlotState {
	v := r.View()
	state := &SlotState{
		Slot:          slot,
		Scale:         v.Scale,
		EffectiveSize: v.Size,
		Image:         imaging.Info(v.Decoded),
	}
	if ref := v.Reference; ref != nil {
		state.URL = ref.ExpandedURL
		state.OriginalURL = ref.OriginalURL
		state.ResolvedPath = ref.ResolvedPath
	}
	if withColor {
		if c, ok := imaging.DominantColor(v.Decoded); ok {
			state.Placeholder = &c
		}
	}
	if v.LastError != nil {
		data := &LoadErrorData{Error: v.LastError.Error()}
		if kind, ok := resource.KindOf(v.LastError); ok {
			data.Kind = kind.String()
		}
		state.LastError = data
	}
	return state
}

func requireSlot(slot string) error {
	if slot == "" {
		return errors.New("slot is required")
	}
	return nil
}

// === Slot Handlers ===

type setArgs struct {
	Slot        string   `json:"slot"`
	URL         string   `json:"url"`
	OriginalURL string   `json:"original_url"`
	Scale       *float64 `json:"scale"`
	SourceFile  string   `json:"source_file"`
}

func (s *Server) handleSet(args json.RawMessage) (interface{}, error) {
	var a setArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requireSlot(a.Slot); err != nil {
		return nil, err
	}
	if a.OriginalURL == "" {
		a.OriginalURL = a.URL
	}
	scale := 1.0
	if a.Scale != nil {
		scale = *a.Scale
	}

	r, err := s.registry.Set(a.Slot, a.URL, a.OriginalURL, scale, a.SourceFile)
	if err != nil {
		return nil, err
	}
	return slotState(a.Slot, r, false), nil
}

type scaleArgs struct {
	Slot  string  `json:"slot"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleScale(args json.RawMessage) (interface{}, error) {
	var a scaleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requireSlot(a.Slot); err != nil {
		return nil, err
	}
	r, err := s.registry.SetScale(a.Slot, a.Scale)
	if err != nil {
		return nil, err
	}
	return slotState(a.Slot, r, false), nil
}

type slotArgs struct {
	Slot string `json:"slot"`
}

func (s *Server) lookup(args json.RawMessage) (string, *resource.Resource, error) {
	var a slotArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", nil, err
	}
	if err := requireSlot(a.Slot); err != nil {
		return "", nil, err
	}
	r, ok := s.registry.Get(a.Slot)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", resource.ErrUnknownSlot, a.Slot)
	}
	return a.Slot, r, nil
}

func (s *Server) handleInfo(args json.RawMessage) (interface{}, error) {
	slot, r, err := s.lookup(args)
	if err != nil {
		return nil, err
	}
	return slotState(slot, r, true), nil
}

type renderArgs struct {
	Slot  string `json:"slot"`
	Frame int    `json:"frame"`
}

func (s *Server) handleRender(args json.RawMessage) (interface{}, error) {
	slot, r, err := s.lookup(args)
	if err != nil {
		return nil, err
	}
	var a renderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	v := r.View()
	if v.Decoded == nil {
		return nil, fmt.Errorf("slot %s has no image loaded", slot)
	}
	return imaging.Render(v.Decoded, v.Scale, a.Frame)
}

func (s *Server) handleDispose(args json.RawMessage) (interface{}, error) {
	var a slotArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := requireSlot(a.Slot); err != nil {
		return nil, err
	}
	if err := s.registry.Dispose(a.Slot); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"slot":     a.Slot,
		"disposed": true,
	}, nil
}

// ListResult summarises every slot held by the server.
type ListResult struct {
	Slots        []*SlotState `json:"slots"`
	WatchedDirs  []string     `json:"watched_dirs"`
	CachedImages int          `json:"cached_images"`
}

func (s *Server) handleList(_ json.RawMessage) (interface{}, error) {
	result := &ListResult{
		Slots:        []*SlotState{},
		WatchedDirs:  s.registry.WatchedDirs(),
		CachedImages: s.registry.CachedImages(),
	}
	for _, slot := range s.registry.Slots() {
		if r, ok := s.registry.Get(slot); ok {
			result.Slots = append(result.Slots, slotState(slot, r, false))
		}
	}
	return result, nil
}
