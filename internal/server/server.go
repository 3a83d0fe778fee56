package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/ironsheep/comment-image-mcp/internal/resource"
)

// InvalidatedMethod is the notification sent when a watched image changed
// on disk and the host should repaint its slot.
const InvalidatedMethod = "notifications/comment_image/invalidated"

// Server handles MCP protocol communication
type Server struct {
	registry *resource.Registry
	version  string
	debug    bool
	logger   *log.Logger

	in     io.Reader
	outMu  sync.Mutex
	output *json.Encoder
}

// Options configures a Server.
type Options struct {
	// Registry configures the slot registry the server creates. Its
	// OnInvalidate is replaced by the server's notification sender.
	Registry resource.RegistryOptions

	// Version is reported in serverInfo.
	Version string

	// Debug logs every request method.
	Debug bool

	// In and Out default to stdin and stdout.
	In  io.Reader
	Out io.Writer

	// Logger defaults to the standard logger.
	Logger *log.Logger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// InvalidatedParams is the payload of InvalidatedMethod.
type InvalidatedParams struct {
	Slot   string  `json:"slot"`
	URL    string  `json:"url"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// New creates a new MCP server instance and its slot registry.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		version: version,
		debug:   opts.Debug,
		logger:  logger,
		in:      in,
		output:  json.NewEncoder(out),
	}

	regOpts := opts.Registry
	if regOpts.Logger == nil {
		regOpts.Logger = logger
	}
	regOpts.OnInvalidate = s.notifyInvalidated

	registry, err := resource.NewRegistry(regOpts)
	if err != nil {
		return nil, err
	}
	s.registry = registry
	return s, nil
}

// Run reads requests until the input ends, writing responses and
// notifications to the output.
func (s *Server) Run() error {
	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Printf("Failed to parse request: %v", err)
			continue
		}
		if s.debug {
			s.logger.Printf("Request: %s", req.Method)
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := s.write(resp); err != nil {
				s.logger.Printf("Failed to encode response: %v", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// Close disposes every slot and stops file watching.
func (s *Server) Close() error {
	return s.registry.Close()
}

// write serialises v onto the output. Notifications arrive from the
// registry loop while Run writes responses.
func (s *Server) write(v interface{}) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	return s.output.Encode(v)
}

func (s *Server) notifyInvalidated(slot string, r *resource.Resource) {
	size := r.EffectiveSize()
	n := &MCPNotification{
		JSONRPC: "2.0",
		Method:  InvalidatedMethod,
		Params: InvalidatedParams{
			Slot:   slot,
			URL:    r.URL(),
			Width:  size.Width,
			Height: size.Height,
		},
	}
	if s.debug {
		s.logger.Printf("Slot %s changed on disk: %s", slot, r.ResolvedPath())
	}
	if err := s.write(n); err != nil {
		s.logger.Printf("Failed to encode notification: %v", err)
	}
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "comment-image-mcp",
				"version": s.version,
			},
		},
	}
}
