package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samsaffron/term-llm/internal/llm"
)

// ListDirTool implements the list_dir tool: a single-level directory
// listing, distinct from glob's recursive pattern search.
type ListDirTool struct {
	approval *ApprovalManager
	limits   OutputLimits
}

// NewListDirTool creates a new ListDirTool.
func NewListDirTool(approval *ApprovalManager, limits OutputLimits) *ListDirTool {
	return &ListDirTool{
		approval: approval,
		limits:   limits,
	}
}

func (t *ListDirTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ListDirToolName,
		Description: "List the immediate contents of a directory, sorted by name. Directories are suffixed with '/'.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory to list (defaults to current directory)",
				},
			},
			"required":             []string{},
			"additionalProperties": false,
		},
	}
}

func (t *ListDirTool) Preview(args map[string]any) string {
	path := argString(args, "path")
	if path == "" {
		return "."
	}
	return path
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	warning := WarnUnknownParams(args, []string{"path"})

	dirPath := argString(args, "path")
	if dirPath == "" {
		var err error
		dirPath, err = os.Getwd()
		if err != nil {
			return warning + formatToolError(NewToolErrorf(ErrExecutionFailed, "cannot get working directory: %v", err)), nil
		}
	}

	if t.approval != nil {
		outcome, err := t.approval.CheckPathApproval(ListDirToolName, dirPath, dirPath, false)
		if err != nil {
			if toolErr, ok := err.(*ToolError); ok {
				return warning + formatToolError(toolErr), nil
			}
			return warning + formatToolError(NewToolError(ErrPermissionDenied, err.Error())), nil
		}
		if outcome == Cancel {
			return warning + formatToolError(NewToolErrorf(ErrPermissionDenied, "access denied: %s", dirPath)), nil
		}
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return warning + formatToolError(NewToolError(ErrFileNotFound, dirPath)), nil
		}
		return warning + formatToolError(NewToolErrorf(ErrExecutionFailed, "list error: %v", err)), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return warning + "Directory is empty.", nil
	}

	truncated := false
	if len(names) > t.limits.MaxResults {
		names = names[:t.limits.MaxResults]
		truncated = true
	}

	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(n)
		sb.WriteString("\n")
	}
	output := strings.TrimSuffix(sb.String(), "\n")
	if truncated {
		output += fmt.Sprintf("\n\n[Results truncated at %d entries]", t.limits.MaxResults)
	}

	return warning + output, nil
}
