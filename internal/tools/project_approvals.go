package tools

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samsaffron/term-llm/internal/config"
)

// ProjectApprovals stores per-project approval decisions, persisted to
// ~/.config/term-llm/projects/<repo-hash>.yaml so a repo-wide "always allow"
// survives across sessions.
type ProjectApprovals struct {
	RepoRoot      string    `yaml:"repo_root"`
	RepoName      string    `yaml:"repo_name"`
	UpdatedAt     time.Time `yaml:"updated_at"`
	ReadApproved  bool      `yaml:"read_approved"`
	WriteApproved bool      `yaml:"write_approved"`
	ApprovedPaths []string  `yaml:"approved_paths"`
	ShellPatterns []string  `yaml:"shell_patterns"`

	filePath string     `yaml:"-"`
	mu       sync.Mutex `yaml:"-"`
}

func getProjectsDir() (string, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "projects"), nil
}

// LoadProjectApprovals loads or creates approval data for a git repository.
// Returns nil if repoRoot is empty.
func LoadProjectApprovals(repoRoot string) (*ProjectApprovals, error) {
	if repoRoot == "" {
		return nil, nil
	}

	repoID := GetGitRepoID(repoRoot)
	projectsDir, err := getProjectsDir()
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(projectsDir, repoID+".yaml")

	pa := &ProjectApprovals{
		RepoRoot:      repoRoot,
		RepoName:      filepath.Base(repoRoot),
		filePath:      filePath,
		ApprovedPaths: []string{},
		ShellPatterns: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return pa, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, pa); err != nil {
		return &ProjectApprovals{
			RepoRoot:      repoRoot,
			RepoName:      filepath.Base(repoRoot),
			filePath:      filePath,
			ApprovedPaths: []string{},
			ShellPatterns: []string{},
		}, nil
	}

	pa.filePath = filePath
	if pa.ApprovedPaths == nil {
		pa.ApprovedPaths = []string{}
	}
	if pa.ShellPatterns == nil {
		pa.ShellPatterns = []string{}
	}

	return pa, nil
}

// Save persists the approval data to disk.
func (p *ProjectApprovals) Save() error {
	if p == nil || p.filePath == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.UpdatedAt = time.Now()

	dir := filepath.Dir(p.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}

	return os.WriteFile(p.filePath, data, 0600)
}

// IsReadApproved reports whether read access is approved for the whole repo.
func (p *ProjectApprovals) IsReadApproved() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ReadApproved
}

// IsWriteApproved reports whether write access is approved for the whole repo.
func (p *ProjectApprovals) IsWriteApproved() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WriteApproved
}

// ApproveRead approves read access for the entire repo.
func (p *ProjectApprovals) ApproveRead() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.ReadApproved = true
	p.mu.Unlock()
	return p.Save()
}

// ApproveWrite approves write access for the entire repo.
func (p *ProjectApprovals) ApproveWrite() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.WriteApproved = true
	p.mu.Unlock()
	return p.Save()
}

// IsPathApproved reports whether path (absolute) is approved, either via a
// whole-repo grant or a specific approved-paths entry.
func (p *ProjectApprovals) IsPathApproved(path string, isWrite bool) bool {
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if isWrite {
		if p.WriteApproved {
			return true
		}
	} else if p.ReadApproved {
		return true
	}

	relPath := GetRelativePath(path, p.RepoRoot)
	for _, approved := range p.ApprovedPaths {
		if relPath == approved || strings.HasPrefix(relPath, approved+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// ApprovePath adds a specific path (absolute) to the approved list, stored
// relative to the repo root.
func (p *ProjectApprovals) ApprovePath(path string) error {
	if p == nil {
		return nil
	}

	relPath := GetRelativePath(path, p.RepoRoot)

	p.mu.Lock()
	for _, existing := range p.ApprovedPaths {
		if existing == relPath {
			p.mu.Unlock()
			return nil
		}
	}
	p.ApprovedPaths = append(p.ApprovedPaths, relPath)
	p.mu.Unlock()

	return p.Save()
}

// IsShellPatternApproved reports whether command matches any approved
// shell pattern.
func (p *ProjectApprovals) IsShellPatternApproved(command string) bool {
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pattern := range p.ShellPatterns {
		if matchPattern(pattern, command) {
			return true
		}
	}

	return false
}

// ApproveShellPattern adds a shell command pattern to the approved list.
func (p *ProjectApprovals) ApproveShellPattern(pattern string) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	for _, existing := range p.ShellPatterns {
		if existing == pattern {
			p.mu.Unlock()
			return nil
		}
	}
	p.ShellPatterns = append(p.ShellPatterns, pattern)
	p.mu.Unlock()

	return p.Save()
}

// GenerateShellPattern derives a glob pattern from a command, e.g.
// "go test ./..." -> "go test *".
func GenerateShellPattern(command string) string {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return command
	}

	if len(parts) == 1 {
		return parts[0]
	}

	switch parts[0] {
	case "go", "npm", "yarn", "pnpm", "cargo", "make", "git":
		if len(parts) >= 2 {
			return parts[0] + " " + parts[1] + " *"
		}
	case "python", "python3", "node", "ruby", "perl":
		return parts[0] + " *"
	}

	return parts[0] + " *"
}
