// ABOUTME: Method dispatcher shared by the HTTP and stdio transports.
// ABOUTME: Routes tools and resources methods; tool failures become isError results.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/menu-gateway/internal/ordering"
	"github.com/2389/menu-gateway/internal/widgets"
)

// dispatch handles one JSON-RPC request for the connection connID.
// Notifications return nil.
func (s *Server) dispatch(ctx context.Context, connID string, req *JSONRPCRequest) *JSONRPCResponse {
	if req.isNotification() {
		if strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Debug("accepted MCP notification", "method", req.Method)
		} else {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		return nil
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, s.initializeResult(req.Params))
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, connID, req)
	case "resources/list":
		return s.handleResourcesList(req)
	case "resources/read":
		return s.handleResourcesRead(req)
	case "resources/templates/list":
		return resultResponse(req.ID, MCPListResourceTemplatesResult{ResourceTemplates: []any{}})
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

// initializeResult echoes the client's protocol version when we support it.
func (s *Server) initializeResult(params json.RawMessage) map[string]any {
	version := latestProtocolVersion
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 && json.Unmarshal(params, &p) == nil && supportedProtocolVersions[p.ProtocolVersion] {
		version = p.ProtocolVersion
	}

	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
}

func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	defs := s.registry.List()
	result := MCPListToolsResult{Tools: make([]MCPToolInfo, len(defs))}
	for i, def := range defs {
		result.Tools[i] = MCPToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: json.RawMessage(def.InputSchemaJSON),
			Meta:        def.Meta(),
		}
	}

	s.logger.Debug("tools/list", "count", len(defs))
	return resultResponse(req.ID, result)
}

func (s *Server) handleToolsCall(ctx context.Context, connID string, req *JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required")
	}

	if cached, ok := s.replay.get(connID, req.ID); ok {
		s.logger.Info("replaying duplicate tools/call",
			"tool_name", params.Name,
			"session_id", connID,
		)
		return resultResponse(req.ID, cached)
	}

	// Correlates log lines for one call.
	requestID := uuid.New().String()
	s.logger.Debug("tools/call",
		"tool_name", params.Name,
		"request_id", requestID,
		"session_id", connID,
	)

	result := s.callTool(ctx, connID, requestID, params)
	s.replay.put(connID, req.ID, result)

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"is_error", result.IsError,
	)
	return resultResponse(req.ID, result)
}

func (s *Server) callTool(ctx context.Context, connID, requestID string, params MCPCallToolParams) *MCPCallToolResult {
	def, err := s.registry.Validate(params.Name, params.Arguments)
	if err != nil {
		return s.toolError(params.Name, requestID, "", err)
	}

	store := s.sessions.For(ctx, connID)
	res, err := s.executor.Execute(ctx, store, params.Name, params.Arguments)
	if err != nil {
		return s.toolError(params.Name, requestID, def.OutputTemplate, err)
	}

	template := res.OutputTemplate
	if template == "" {
		template = def.OutputTemplate
	}
	result := &MCPCallToolResult{
		Content:           []MCPContent{{Type: "text", Text: res.Text}},
		StructuredContent: res.Structured,
	}
	if template != "" {
		result.Meta = map[string]any{"openai/outputTemplate": template}
	}
	return result
}

// toolError converts a failure into an isError result so the assistant can
// read the message and the connection stays usable.
func (s *Server) toolError(toolName, requestID, template string, err error) *MCPCallToolResult {
	level := "tool execution failed"
	if ordering.IsValidationError(err) {
		level = "tool call rejected"
	}
	s.logger.Warn(level,
		"tool_name", toolName,
		"request_id", requestID,
		"error", err,
	)

	message := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = "tool execution timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	}

	result := &MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: message}},
		IsError: true,
	}
	if template != "" {
		result.Meta = map[string]any{"openai/outputTemplate": template}
	}
	return result
}

func (s *Server) handleResourcesList(req *JSONRPCRequest) *JSONRPCResponse {
	list := s.widgets.List()
	result := MCPListResourcesResult{Resources: make([]MCPResource, len(list))}
	for i, w := range list {
		result.Resources[i] = MCPResource{
			URI:         w.URI,
			Name:        w.Name,
			Description: w.Description,
			MimeType:    w.MimeType,
			Meta:        w.Meta(),
		}
	}
	return resultResponse(req.ID, result)
}

func (s *Server) handleResourcesRead(req *JSONRPCRequest) *JSONRPCResponse {
	var params MCPReadResourceParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.URI == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "uri is required")
	}

	w, err := s.widgets.Resolve(params.URI)
	if err != nil {
		if errors.Is(err, widgets.ErrUnknownWidget) {
			return errorResponse(req.ID, JSONRPCInvalidParams, "resource not found: "+params.URI)
		}
		return errorResponse(req.ID, JSONRPCInternalError, "failed to read resource")
	}

	return resultResponse(req.ID, MCPReadResourceResult{
		Contents: []MCPResourceContents{{
			URI:      w.URI,
			MimeType: w.MimeType,
			Text:     w.Markup,
			Meta:     w.Meta(),
		}},
	})
}
