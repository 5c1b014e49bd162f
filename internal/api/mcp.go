package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ltnguyen/askdocs/internal/chat"
	"github.com/ltnguyen/askdocs/internal/storage"
)

// MCPDeps holds dependencies for the MCP server. The chat store drives the
// ask tool so conversations started over MCP show up next to HTTP ones.
type MCPDeps struct {
	Ingest  Ingester
	Catalog *storage.Store
	Index   IndexAdmin
	Chat    *chat.Store
	TopK    int
}

// NewMCPServer creates an MCP server exposing the document base over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"askdocs",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("askdocs: local retrieval-augmented question answering over your documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question answered from the indexed documents."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("conversation_id", mcp.Description("Conversation to continue (optional)")),
			mcp.WithBoolean("include_sources", mcp.Description("Include source previews in the response (default true)")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Add a text document to the knowledge base."),
			mcp.WithString("content", mcp.Description("The text content to ingest"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Title for the document")),
			mcp.WithString("source", mcp.Description("Where the content came from")),
		),
		mcpAddDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("search_documents",
			mcp.WithDescription("Semantically search the indexed chunks without generating an answer."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 4)")),
		),
		mcpSearchDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("list_documents",
			mcp.WithDescription("List all documents in the catalog."),
		),
		mcpListDocuments(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"askdocs://stats",
			"Index Statistics",
			mcp.WithResourceDescription("Total number of indexed chunks"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		conversationID := req.GetString("conversation_id", "")
		includeSources := req.GetBool("include_sources", true)

		resp, err := deps.Chat.Chat(ctx, question, conversationID, includeSources)
		if err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		title := req.GetString("title", "")
		source := req.GetString("source", "mcp")

		receipt, err := deps.Ingest.AddText(ctx, content, title, source, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("ingestion failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Ingested document %s with %d chunks", receipt.DocID, receipt.ChunkCount)), nil
	}
}

func mcpSearchDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.TopK)
		if limit <= 0 {
			limit = deps.TopK
		}
		if limit > 50 {
			limit = 50
		}

		results, err := deps.Index.Search(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docs, err := deps.Catalog.ListDocuments()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list documents: %v", err)), nil
		}

		b, err := json.Marshal(docs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal documents: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		n, err := deps.Index.Count()
		if err != nil {
			return nil, fmt.Errorf("failed to count chunks: %w", err)
		}

		b, err := json.Marshal(map[string]int{"total_chunks": n})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
