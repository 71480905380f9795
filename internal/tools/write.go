package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsaffron/term-llm/internal/llm"
)

// WriteFileTool implements the write_file tool.
type WriteFileTool struct {
	approval *ApprovalManager
}

// NewWriteFileTool creates a new WriteFileTool.
func NewWriteFileTool(approval *ApprovalManager) *WriteFileTool {
	return &WriteFileTool{
		approval: approval,
	}
}

func (t *WriteFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        WriteFileToolName,
		Description: "Create or overwrite a file with the specified content. Creates parent directories if needed.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the file to write",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Full file content to write",
				},
			},
			"required":             []string{"file_path", "content"},
			"additionalProperties": false,
		},
	}
}

func (t *WriteFileTool) Preview(args map[string]any) string {
	return argString(args, "file_path")
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filePath := argString(args, "file_path")
	content := argString(args, "content")

	if filePath == "" {
		return formatToolError(NewToolError(ErrInvalidParams, "file_path is required")), nil
	}

	// Check permissions via approval manager
	if t.approval != nil {
		outcome, err := t.approval.CheckPathApproval(WriteFileToolName, filePath, filePath, true)
		if err != nil {
			if toolErr, ok := err.(*ToolError); ok {
				return formatToolError(toolErr), nil
			}
			return formatToolError(NewToolError(ErrPermissionDenied, err.Error())), nil
		}
		if outcome == Cancel {
			return formatToolError(NewToolErrorf(ErrPermissionDenied, "access denied: %s", filePath)), nil
		}
	}

	// Resolve absolute path
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return formatToolError(NewToolErrorf(ErrInvalidParams, "cannot resolve path: %v", err)), nil
	}

	// Check if file exists for before/after size reporting
	existingContent := ""
	isNew := true
	if data, err := os.ReadFile(absPath); err == nil {
		existingContent = string(data)
		isNew = false
	}

	// Create parent directories
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return formatToolError(NewToolErrorf(ErrExecutionFailed, "failed to create directory: %v", err)), nil
	}

	// Atomic write: write to temp file, then rename
	tempFile := absPath + ".tmp"
	if err := os.WriteFile(tempFile, []byte(content), 0644); err != nil {
		return formatToolError(NewToolErrorf(ErrExecutionFailed, "failed to write temp file: %v", err)), nil
	}

	if err := os.Rename(tempFile, absPath); err != nil {
		// Clean up temp file on failure
		os.Remove(tempFile)
		return formatToolError(NewToolErrorf(ErrExecutionFailed, "failed to rename temp file: %v", err)), nil
	}

	// Build result message
	var sb strings.Builder
	if isNew {
		sb.WriteString(fmt.Sprintf("Created new file: %s\n", absPath))
		sb.WriteString(fmt.Sprintf("Size: %d bytes, %d lines", len(content), countLines(content)))
	} else {
		sb.WriteString(fmt.Sprintf("Updated file: %s\n", absPath))
		oldLines := countLines(existingContent)
		newLines := countLines(content)
		sb.WriteString(fmt.Sprintf("Lines: %d -> %d\n", oldLines, newLines))
		sb.WriteString(fmt.Sprintf("Size: %d -> %d bytes", len(existingContent), len(content)))
	}

	return sb.String(), nil
}

// countLines counts the number of lines in a string.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	count := strings.Count(s, "\n")
	// Add 1 if doesn't end with newline
	if !strings.HasSuffix(s, "\n") {
		count++
	}
	return count
}
