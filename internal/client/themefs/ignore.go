package themefs

import (
	"bufio"
	"log/slog"
	"os"

	"github.com/openmined/themesync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

var defaultIgnoreLines = []string{
	// themesync
	".themesync/",
	".themeignore",
	// vcs & tooling
	".git",
	"node_modules/",
	// editors
	".vscode",
	".idea",
	"*.swp",
	"*~",
	// general excludes
	"*.tmp",
	".*.tmp-*",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList matches keys against the default ignore rules plus the optional
// gitignore-style `.themeignore` file of the theme directory.
type IgnoreList struct {
	path   string
	ignore *gitignore.GitIgnore
}

func NewIgnoreList(path string) *IgnoreList {
	return &IgnoreList{path: path}
}

func (s *IgnoreList) Load() {
	lines := append([]string(nil), defaultIgnoreLines...)

	if utils.FileExists(s.path) {
		lines = append(lines, readIgnoreFile(s.path)...)
	}

	s.ignore = gitignore.CompileIgnoreLines(lines...)
}

func readIgnoreFile(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("failed to open ignore file", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Warn("failed to read ignore file", "path", path, "error", err)
	} else {
		slog.Info("loaded ignore file", "path", path, "rules", len(lines))
	}
	return lines
}

func (s *IgnoreList) ShouldIgnore(key string) bool {
	if s == nil || s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(key)
}
