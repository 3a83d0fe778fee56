// Package server implements the MCP (Model Context Protocol) server through
// which a host editor displays images referenced from source comments.
//
// The host owns layout and painting. It tells the server which image each
// comment slot should show, asks for scaled bitmaps, and repaints when the
// server reports that a watched image changed on disk.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - comment_image_set: point a slot at an image URL relative to a source file
//   - comment_image_scale: change a slot's display scale
//   - comment_image_info: report URLs, sizes, metadata and the last error
//   - comment_image_render: scaled PNG of the current image or animation frame
//   - comment_image_dispose: release a slot and its file watch
//   - comment_image_list: every slot plus watcher and cache state
//
// # Notifications
//
// When a watched file is modified or replaced and decodes successfully, the
// server sends notifications/comment_image/invalidated with the slot, its
// URL and the new effective size. A file that fails to decode produces no
// notification; the slot keeps its previous image and records the error.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses with code -32000.
// Image load failures carry LoadErrorData whose kind is invalid_reference,
// not_found or decode_failure; other failures carry the error text.
//
// # Usage
//
//	srv, err := server.New(server.Options{Version: version})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
