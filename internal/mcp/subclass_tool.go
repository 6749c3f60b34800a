package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/static-reflection/internal/reflection"
)

// IsSubclassOfRequest represents the php_is_subclass_of parameters.
type IsSubclassOfRequest struct {
	Class          string `json:"class"`
	Ancestor       string `json:"ancestor"`
	InterfacesOnly bool   `json:"interfaces_only"` // Only match implemented interfaces
	DirectOnly     bool   `json:"direct_only"`     // Never look past the declaration header
}

// IsSubclassOfResponse is the php_is_subclass_of result.
type IsSubclassOfResponse struct {
	Class    string `json:"class"`
	Ancestor string `json:"ancestor"`
	Result   bool   `json:"result"`
}

// AddIsSubclassOfTool registers the php_is_subclass_of tool with an MCP server.
func AddIsSubclassOfTool(s *server.MCPServer, source ClassSource) {
	tool := mcp.NewTool(
		"php_is_subclass_of",
		mcp.WithDescription("Check whether a PHP class extends or implements an ancestor, directly or through any depth of inheritance. Ancestors without project sources are answered from the configured manifests."),
		mcp.WithString("class",
			mcp.Required(),
			mcp.Description("Fully-qualified name of the class to check")),
		mcp.WithString("ancestor",
			mcp.Required(),
			mcp.Description("Fully-qualified name of the parent class or interface")),
		mcp.WithBoolean("interfaces_only",
			mcp.Description("Only match interfaces, like implementsInterface (default: false)")),
		mcp.WithBoolean("direct_only",
			mcp.Description("Only match parents and interfaces named in the declaration itself (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createIsSubclassOfHandler(source))
}

// createIsSubclassOfHandler creates the handler function for php_is_subclass_of.
func createIsSubclassOfHandler(source ClassSource) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req IsSubclassOfRequest
		if err := bindArguments(request, &req); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := requireString("class", req.Class); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := requireString("ancestor", req.Ancestor); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ancestor := strings.TrimPrefix(req.Ancestor, reflection.NamespaceSeparator)

		class, err := source.Get(ctx, req.Class)
		if err != nil {
			return classError(err)
		}

		var result bool
		switch {
		case req.DirectOnly:
			result, err = class.IsSubclassOfAny(ctx, []string{ancestor})
		case req.InterfacesOnly:
			result, err = class.ImplementsInterface(ctx, ancestor)
		default:
			result, err = class.IsSubclassOf(ctx, ancestor)
		}
		if err != nil {
			return classError(err)
		}

		return jsonResult(IsSubclassOfResponse{
			Class:    class.Name(),
			Ancestor: ancestor,
			Result:   result,
		})
	}
}
