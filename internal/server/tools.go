package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func slotProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Host identifier of the comment image, e.g. the buffer and line it is drawn on",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "comment_image_set",
			Description: "Point a slot at an image referenced from a source comment, decode it and start watching the file. On failure the slot keeps showing its previous image and the error data carries kind invalid_reference, not_found or decode_failure.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slot": slotProperty(),
					"url": map[string]interface{}{
						"type":        "string",
						"description": "Image URL from the comment. $(Name) variables and ${ENV} references are expanded; relative paths resolve against the source file's directory",
					},
					"original_url": map[string]interface{}{
						"type":        "string",
						"description": "URL exactly as written in the comment. Defaults to url",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Display scale. Values <= 0 show the native size. Default 1.0",
						"default":     1.0,
					},
					"source_file": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the source file containing the comment",
					},
				},
				"required": []string{"slot", "url", "source_file"},
			},
		},
		{
			Name:        "comment_image_scale",
			Description: "Change the display scale of a slot without decoding the image again.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slot": slotProperty(),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Display scale. Values <= 0 show the native size",
					},
				},
				"required": []string{"slot", "scale"},
			},
		},
		{
			Name:        "comment_image_info",
			Description: "Describe what a slot displays: URLs, effective size, image metadata, the last load error and a placeholder color.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slot": slotProperty(),
				},
				"required": []string{"slot"},
			},
		},
		{
			Name:        "comment_image_render",
			Description: "Return the slot's image scaled to its effective size as base64-encoded PNG. Animated images render one frame at a time.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slot": slotProperty(),
					"frame": map[string]interface{}{
						"type":        "integer",
						"description": "Animation frame index, wrapped to the frame count. Default 0",
						"default":     0,
					},
				},
				"required": []string{"slot"},
			},
		},
		{
			Name:        "comment_image_dispose",
			Description: "Release a slot and stop watching its file. Pending change notifications for it are dropped.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"slot": slotProperty(),
				},
				"required": []string{"slot"},
			},
		},
		{
			Name:        "comment_image_list",
			Description: "List every slot with its current state, plus the watched directories and decode cache size.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
