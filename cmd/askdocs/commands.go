package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ltnguyen/askdocs/internal/chat"
	"github.com/ltnguyen/askdocs/internal/config"
	"github.com/ltnguyen/askdocs/internal/ingest"
	"github.com/ltnguyen/askdocs/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add a document to the knowledge base",
	Long: `Add a document to the knowledge base.

Examples:
  askdocs ingest --text "Go favors composition over inheritance"
  askdocs ingest --url https://example.com/article
  askdocs ingest --file ./notes.md --title "My notes"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")

		if text == "" && url == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var path string
		req := map[string]any{}
		if title != "" {
			req["title"] = title
		}

		switch {
		case text != "":
			path = "/documents/text"
			req["content"] = text
			req["source"] = "cli"
		case url != "":
			path = "/documents/web"
			req["url"] = url
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			path = "/documents/file"
			req["filename"] = filepath.Base(file)
			req["content"] = base64.StdEncoding.EncodeToString(data)
		}

		printStep("Ingesting...")
		resp, err := client.post(cmd.Context(), path, req)
		if err != nil {
			return err
		}

		var receipt ingest.Receipt
		if err := decodeJSON(resp, &receipt); err != nil {
			return err
		}

		printSuccess("%s", receipt.Message)
		printStatus("Document", "%s", receipt.DocID)
		printStatus("Chunks", "%d", receipt.ChunkCount)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "file path to ingest (text, markdown, or PDF)")
	ingestCmd.Flags().String("title", "", "title for the document")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		conversationID, _ := cmd.Flags().GetString("conversation")
		showSources, _ := cmd.Flags().GetBool("sources")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"message":         question,
			"include_sources": showSources,
		}
		if conversationID != "" {
			req["conversation_id"] = conversationID
		}

		resp, err := client.post(cmd.Context(), "/chat", req)
		if err != nil {
			return err
		}

		var result chat.Response
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Degraded {
			printWarning("answer degraded: %s", result.DegradedReason)
		}

		fmt.Fprintln(os.Stdout, result.Message)

		if showSources && len(result.Sources) > 0 {
			fmt.Fprintln(os.Stderr)
			printStep("Sources")
			for i, src := range result.Sources {
				label := src.Source
				if label == "" {
					label = "(unknown)"
				}
				printStatus(fmt.Sprintf("%d", i+1), "%s", label)
			}
		}

		printStatus("Conversation", "%s", result.ConversationID)
		printStatus("Time", "%.2fs", result.ProcessingTime)
		return nil
	},
}

func init() {
	askCmd.Flags().String("conversation", "", "conversation ID to continue")
	askCmd.Flags().Bool("sources", false, "show source chunks used for the answer")
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage ingested documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents")
		if err != nil {
			return err
		}

		var docs []storage.DocumentRecord
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Fprintln(os.Stdout, "no documents")
			return nil
		}
		for _, d := range docs {
			fmt.Fprintf(os.Stdout, "%s  %-8s  %-9s  %3d chunks  %s\n",
				d.ID, d.Kind, d.Status, d.ChunkCount, d.Title)
		}
		return nil
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents/"+args[0])
		if err != nil {
			return err
		}

		var doc any
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document and its index chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/documents/"+args[0])
		if err != nil {
			return err
		}

		var result struct {
			Status        string `json:"status"`
			ChunksRemoved int    `json:"chunks_removed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s (%d chunks removed)", args[0], result.ChunksRemoved)
		return nil
	},
}

var docsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all documents and index chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/documents")
		if err != nil {
			return err
		}

		var result struct {
			DocumentsRemoved int `json:"documents_removed"`
			ChunksRemoved    int `json:"chunks_removed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %d documents (%d chunks)", result.DocumentsRemoved, result.ChunksRemoved)
		return nil
	},
}

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents/stats")
		if err != nil {
			return err
		}

		var stats storage.DocumentStats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Documents", "%d", stats.TotalDocuments)
		for status, n := range stats.ByStatus {
			printStatus("  "+status, "%d", n)
		}
		for kind, n := range stats.ByKind {
			printStatus("  "+kind, "%d", n)
		}
		return nil
	},
}

func init() {
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsDeleteCmd)
	docsCmd.AddCommand(docsClearCmd)
	docsCmd.AddCommand(docsStatsCmd)
}

// --- convos ---

var convosCmd = &cobra.Command{
	Use:   "convos",
	Short: "Manage chat conversations",
}

var convosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations")
		if err != nil {
			return err
		}

		var convos []chat.Conversation
		if err := decodeJSON(resp, &convos); err != nil {
			return err
		}

		if len(convos) == 0 {
			fmt.Fprintln(os.Stdout, "no conversations")
			return nil
		}
		for _, c := range convos {
			fmt.Fprintf(os.Stdout, "%s  %3d messages  updated %s\n",
				c.ID, len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var convosShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}

		var convo chat.Conversation
		if err := decodeJSON(resp, &convo); err != nil {
			return err
		}

		for _, m := range convo.Messages {
			role := colorize(colorBold, m.Role+":")
			fmt.Fprintf(os.Stdout, "%s %s\n\n", role, m.Content)
		}
		return nil
	},
}

var convosDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/conversations/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted conversation %s", args[0])
		return nil
	},
}

var convosClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/conversations")
		if err != nil {
			return err
		}

		var result struct {
			ConversationsRemoved int `json:"conversations_removed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %d conversations", result.ConversationsRemoved)
		return nil
	},
}

var convosStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show conversation statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/conversations/stats")
		if err != nil {
			return err
		}

		var stats chat.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Conversations", "%d", stats.TotalConversations)
		printStatus("Messages", "%d", stats.TotalMessages)
		printStatus("Avg per convo", "%.2f", stats.AverageMessages)
		return nil
	},
}

func init() {
	convosCmd.AddCommand(convosListCmd)
	convosCmd.AddCommand(convosShowCmd)
	convosCmd.AddCommand(convosDeleteCmd)
	convosCmd.AddCommand(convosClearCmd)
	convosCmd.AddCommand(convosStatsCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage askdocs configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, info := range config.ShowAll(cfg) {
			fmt.Fprintf(os.Stdout, "%-20s = %-40s (env %s)\n", info.Key, info.Value, info.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			printError("%v", err)
			fmt.Fprintf(os.Stderr, "valid keys: %s\n", strings.Join(config.ValidKeys(), ", "))
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
