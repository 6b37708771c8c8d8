// ABOUTME: Newline-delimited JSON-RPC transport over stdin/stdout.
// ABOUTME: One request per line, processed in order, sharing the HTTP dispatcher.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StdioConnID is the connection id used for the single stdio client.
const StdioConnID = "stdio"

// ServeStdio reads requests from in and writes responses to out until in is
// exhausted or ctx is cancelled. Logging must not go to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("=== MCP STDIO TRANSPORT STARTED ===")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), MaxRequestBodySize)

	var mu sync.Mutex
	enc := json.NewEncoder(out)
	write := func(resp *JSONRPCResponse) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(resp)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			if err := write(errorResponse(nil, JSONRPCParseError, "invalid JSON")); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
			continue
		}
		if req.JSONRPC != "2.0" {
			if err := write(errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
			continue
		}

		resp := s.dispatch(ctx, StdioConnID, &req)
		if resp == nil {
			continue
		}
		if err := write(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	s.logger.Info("=== MCP STDIO TRANSPORT CLOSED ===")
	return nil
}
