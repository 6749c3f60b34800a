package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/static-reflection/internal/reflection"
	"github.com/mvp-joe/static-reflection/internal/registry"
)

// ClassSource hands out reflectors by class name or by file.
// *registry.Registry implements it.
type ClassSource interface {
	Get(ctx context.Context, fqcn string) (*reflection.Class, error)
	Inspect(path string) *reflection.Class
}

// ClassFactsRequest represents the php_class_facts parameters.
type ClassFactsRequest struct {
	Class string `json:"class"` // Fully-qualified class name
	Path  string `json:"path"`  // PHP file, used when class is empty
}

// ClassFactsResponse is the php_class_facts result.
type ClassFactsResponse struct {
	File  string                 `json:"file"`
	Facts *reflection.FactRecord `json:"facts"`
}

// AddClassFactsTool registers the php_class_facts tool with an MCP server.
func AddClassFactsTool(s *server.MCPServer, source ClassSource) {
	tool := mcp.NewTool(
		"php_class_facts",
		mcp.WithDescription("Read the declaration header of a PHP class, interface or trait without executing it. Returns its fully-qualified name, kind, abstract/final modifiers, resolved parents and interfaces, use imports and doc comment."),
		mcp.WithString("class",
			mcp.Description("Fully-qualified class name, e.g. 'App\\Http\\Controller'. Located through PSR-4 autoload rules.")),
		mcp.WithString("path",
			mcp.Description("Path of a PHP file to inspect instead of a class name")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createClassFactsHandler(source))
}

// createClassFactsHandler creates the handler function for php_class_facts.
func createClassFactsHandler(source ClassSource) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req ClassFactsRequest
		if err := bindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if req.Class == "" && req.Path == "" {
			return mcp.NewToolResultError("class or path parameter is required"), nil
		}

		class, err := resolveClass(ctx, source, req.Class, req.Path)
		if err != nil {
			return classError(err)
		}

		facts, err := class.Facts(ctx)
		if err != nil {
			return classError(err)
		}

		return jsonResult(ClassFactsResponse{File: class.FileName(), Facts: facts})
	}
}

// resolveClass prefers the class name and falls back to the file.
func resolveClass(ctx context.Context, source ClassSource, name, path string) (*reflection.Class, error) {
	if name != "" {
		return source.Get(ctx, name)
	}
	return source.Inspect(path), nil
}

// classError turns lookup and parse failures the caller can fix into tool
// errors. Anything else is a server failure.
func classError(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, registry.ErrClassNotFound),
		errors.Is(err, reflection.ErrConsistency),
		errors.Is(err, reflection.ErrIO),
		errors.Is(err, reflection.ErrOracle):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
