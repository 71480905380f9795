package tools

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ApprovalChoice represents a user's approval selection.
type ApprovalChoice int

const (
	ApprovalChoiceDeny      ApprovalChoice = iota // Deny the request
	ApprovalChoiceOnce                            // Allow once, no memory
	ApprovalChoiceFile                            // Allow this file only (session)
	ApprovalChoiceDirectory                       // Allow this directory (session)
	ApprovalChoiceRepoRead                        // Allow read for entire repo (remembered)
	ApprovalChoiceRepoWrite                       // Allow write for entire repo (remembered)
	ApprovalChoicePattern                         // Allow shell pattern in repo (remembered)
	ApprovalChoiceCommand                         // Allow this specific command (session)
	ApprovalChoiceCancelled                       // User cancelled
)

// ApprovalResult contains the result of an approval prompt.
type ApprovalResult struct {
	Choice     ApprovalChoice
	Path       string
	Pattern    string
	SaveToRepo bool
	Cancelled  bool
}

// ApprovalOption represents a single option in the approval prompt.
type ApprovalOption struct {
	Label       string
	Description string
	Choice      ApprovalChoice
	Path        string
	Pattern     string
	SaveToRepo  bool
}

// buildFileOptions builds the menu for a file access request.
func buildFileOptions(path string, repoInfo *GitRepoInfo, isWrite bool) []ApprovalOption {
	var options []ApprovalOption
	accessType := "read"
	if isWrite {
		accessType = "write"
	}

	dir := getDirectoryForApproval(path)

	if repoInfo != nil && repoInfo.IsRepo {
		relPath := GetRelativePath(path, repoInfo.Root)
		relDir := GetRelativePath(dir, repoInfo.Root)

		repoChoice := ApprovalChoiceRepoRead
		if isWrite {
			repoChoice = ApprovalChoiceRepoWrite
		}
		options = append(options, ApprovalOption{
			Label:       fmt.Sprintf("Allow %s for entire repo", accessType),
			Description: fmt.Sprintf("Approve all files in %s (remembered)", repoInfo.RepoName),
			Choice:      repoChoice,
			Path:        repoInfo.Root,
			SaveToRepo:  true,
		})

		options = append(options, ApprovalOption{
			Label:       fmt.Sprintf("Allow %s for this directory", accessType),
			Description: fmt.Sprintf("Approve %s (session only)", relDir),
			Choice:      ApprovalChoiceDirectory,
			Path:        dir,
			SaveToRepo:  false,
		})

		options = append(options, ApprovalOption{
			Label:       "Allow this file only",
			Description: fmt.Sprintf("Approve %s (session only)", relPath),
			Choice:      ApprovalChoiceFile,
			Path:        path,
			SaveToRepo:  false,
		})
	} else {
		options = append(options, ApprovalOption{
			Label:       fmt.Sprintf("Allow %s for this directory", accessType),
			Description: fmt.Sprintf("Approve %s (session only)", dir),
			Choice:      ApprovalChoiceDirectory,
			Path:        dir,
			SaveToRepo:  false,
		})

		options = append(options, ApprovalOption{
			Label:       "Allow this file only",
			Description: fmt.Sprintf("Approve %s (session only)", path),
			Choice:      ApprovalChoiceFile,
			Path:        path,
			SaveToRepo:  false,
		})
	}

	options = append(options,
		ApprovalOption{Label: "Allow once", Description: "Single access, no memory", Choice: ApprovalChoiceOnce},
		ApprovalOption{Label: "Deny", Description: "Block this access request", Choice: ApprovalChoiceDeny},
	)

	return options
}

// buildShellOptions builds the menu for a shell command request.
func buildShellOptions(command string, repoInfo *GitRepoInfo) []ApprovalOption {
	var options []ApprovalOption
	pattern := GenerateShellPattern(command)

	if repoInfo != nil && repoInfo.IsRepo {
		options = append(options, ApprovalOption{
			Label:       fmt.Sprintf("Allow %q pattern", pattern),
			Description: fmt.Sprintf("Approve matching commands in %s (remembered)", repoInfo.RepoName),
			Choice:      ApprovalChoicePattern,
			Pattern:     pattern,
			SaveToRepo:  true,
		})
	}

	options = append(options,
		ApprovalOption{
			Label:       "Allow this specific command",
			Description: fmt.Sprintf("Approve %q (session only)", truncateCmdDisplay(command, 40)),
			Choice:      ApprovalChoiceCommand,
			Pattern:     command,
		},
		ApprovalOption{Label: "Allow once", Description: "Single execution, no memory", Choice: ApprovalChoiceOnce},
		ApprovalOption{Label: "Deny", Description: "Block this command", Choice: ApprovalChoiceDeny},
	)

	return options
}

func truncateCmdDisplay(cmd string, maxLen int) string {
	if len(cmd) <= maxLen {
		return cmd
	}
	return cmd[:maxLen-3] + "..."
}

// PromptApprovalCLI renders a numbered menu on stderr and reads the user's
// choice from stdin, matching ApprovalManager.PromptUIFunc's signature.
// This replaces the teacher's bubbletea-rendered picker: the core has no
// TUI, so approval prompts fall back to a plain numbered menu.
func PromptApprovalCLI(path string, isWrite bool, isShell bool) (ApprovalResult, error) {
	var repoInfo *GitRepoInfo
	if isShell {
		cwd, _ := os.Getwd()
		info := DetectGitRepo(cwd)
		if info.IsRepo {
			repoInfo = &info
		}
	} else {
		info := DetectGitRepo(path)
		if info.IsRepo {
			repoInfo = &info
		}
	}

	var options []ApprovalOption
	var title string
	switch {
	case isShell:
		title = "Shell Command Request"
		options = buildShellOptions(path, repoInfo)
	case isWrite:
		title = "Write Access Request"
		options = buildFileOptions(path, repoInfo, true)
	default:
		title = "Read Access Request"
		options = buildFileOptions(path, repoInfo, false)
	}

	fmt.Fprintf(os.Stderr, "\n%s: %s\n", title, path)
	for i, opt := range options {
		fmt.Fprintf(os.Stderr, "  %d) %s — %s\n", i+1, opt.Label, opt.Description)
	}
	fmt.Fprintf(os.Stderr, "Choice [1-%d]: ", len(options))

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ApprovalResult{Choice: ApprovalChoiceCancelled, Cancelled: true}, nil
	}

	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 1 || choice > len(options) {
		return ApprovalResult{Choice: ApprovalChoiceDeny}, nil
	}

	opt := options[choice-1]
	return ApprovalResult{
		Choice:     opt.Choice,
		Path:       opt.Path,
		Pattern:    opt.Pattern,
		SaveToRepo: opt.SaveToRepo,
	}, nil
}
