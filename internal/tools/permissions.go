package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// ToolPermissions is the pre-approved allowlist a session starts with
// (--read-dir/--write-dir/--shell-allow flags, config.yaml), checked before
// ApprovalManager ever needs to prompt.
type ToolPermissions struct {
	readDirs       []string
	writeDirs      []string
	shellPatterns  []glob.Glob
	scriptCommands map[string]struct{}
}

// NewToolPermissions creates an empty permission set.
func NewToolPermissions() *ToolPermissions {
	return &ToolPermissions{
		scriptCommands: make(map[string]struct{}),
	}
}

// AddReadDir allowlists dir (and everything under it) for read_file/grep/glob.
func (p *ToolPermissions) AddReadDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve read dir %q: %w", dir, err)
	}
	p.readDirs = append(p.readDirs, abs)
	return nil
}

// AddWriteDir allowlists dir (and everything under it) for write_file.
func (p *ToolPermissions) AddWriteDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve write dir %q: %w", dir, err)
	}
	p.writeDirs = append(p.writeDirs, abs)
	return nil
}

// AddShellPattern compiles and allowlists a shell command glob pattern
// (e.g. "git *", "go test *").
func (p *ToolPermissions) AddShellPattern(pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile shell pattern %q: %w", pattern, err)
	}
	p.shellPatterns = append(p.shellPatterns, g)
	return nil
}

// AddScriptCommand allowlists an exact shell command string, bypassing
// pattern matching.
func (p *ToolPermissions) AddScriptCommand(command string) {
	p.scriptCommands[command] = struct{}{}
}

// IsPathAllowedForRead reports whether path is under an allowlisted read dir.
func (p *ToolPermissions) IsPathAllowedForRead(path string) (bool, error) {
	return p.isPathAllowed(path, p.readDirs)
}

// IsPathAllowedForWrite reports whether path is under an allowlisted write dir.
func (p *ToolPermissions) IsPathAllowedForWrite(path string) (bool, error) {
	return p.isPathAllowed(path, p.writeDirs)
}

func (p *ToolPermissions) isPathAllowed(path string, dirs []string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolve path %q: %w", path, err)
	}
	for _, dir := range dirs {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true, nil
		}
	}
	return false, nil
}

// IsShellCommandAllowed reports whether command matches an allowlisted
// script command or shell pattern.
func (p *ToolPermissions) IsShellCommandAllowed(command string) bool {
	if _, ok := p.scriptCommands[command]; ok {
		return true
	}
	for _, g := range p.shellPatterns {
		if g.Match(command) {
			return true
		}
	}
	return false
}
