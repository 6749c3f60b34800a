package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mvp-joe/static-reflection/internal/doccomment"
)

// DocCommentRequest represents the php_doc_comment parameters.
type DocCommentRequest struct {
	Class     string   `json:"class"`
	Path      string   `json:"path"`
	Tags      []string `json:"tags"`       // Restrict annotations to these tags
	PlainText bool     `json:"plain_text"` // Include the block without decoration
}

// DocCommentResponse is the php_doc_comment result.
type DocCommentResponse struct {
	Class       string                 `json:"class"`
	Summary     string                 `json:"summary"`
	Annotations doccomment.Annotations `json:"annotations"`
	PlainText   string                 `json:"plain_text,omitempty"`
}

// AddDocCommentTool registers the php_doc_comment tool with an MCP server.
func AddDocCommentTool(s *server.MCPServer, source ClassSource) {
	tool := mcp.NewTool(
		"php_doc_comment",
		mcp.WithDescription("Read the doc comment of a PHP class, interface or trait. Returns the summary paragraph and single-line annotations such as @see or @deprecated."),
		mcp.WithString("class",
			mcp.Description("Fully-qualified class name")),
		mcp.WithString("path",
			mcp.Description("Path of a PHP file to read instead of a class name")),
		mcp.WithArray("tags",
			mcp.Description("Only return these annotation tags, e.g. ['see', 'deprecated'] (default: all)")),
		mcp.WithBoolean("plain_text",
			mcp.Description("Include the full comment text without '*' decoration (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createDocCommentHandler(source))
}

// createDocCommentHandler creates the handler function for php_doc_comment.
func createDocCommentHandler(source ClassSource) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req DocCommentRequest
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

		doc, err := class.Doc(ctx)
		if err != nil {
			return classError(err)
		}
		facts, err := class.Facts(ctx)
		if err != nil {
			return classError(err)
		}

		parsed := doc.Parse()
		resp := DocCommentResponse{
			Class:       facts.FQCN,
			Summary:     parsed.Summary,
			Annotations: filterTags(parsed.Annotations, req.Tags),
		}
		if req.PlainText {
			resp.PlainText = doc.PlainText()
		}
		return jsonResult(resp)
	}
}

func filterTags(all doccomment.Annotations, tags []string) doccomment.Annotations {
	if len(tags) == 0 {
		return all
	}
	filtered := make(doccomment.Annotations, len(tags))
	for _, tag := range tags {
		tag = strings.TrimPrefix(tag, "@")
		if values, ok := all[tag]; ok {
			filtered[tag] = values
		}
	}
	return filtered
}
