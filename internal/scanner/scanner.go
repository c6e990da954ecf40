// Package scanner discovers compiled class files under a set of paths.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/classmeter/pkg/config"
)

// ClassExt is the extension of compiled class files.
const ClassExt = ".class"

// IsClassFile reports whether path names a class file.
func IsClassFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ClassExt)
}

// Scanner finds class files in a directory tree.
type Scanner struct {
	config *config.Config
	// patterns holds exclude.patterns, matched relative to the scanned root.
	patterns gitignore.Matcher
	// gitignore holds .gitignore rules, matched relative to gitRoot.
	gitignore gitignore.Matcher
	gitRoot   string
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns builds matchers from config patterns and, if enabled,
// every .gitignore in the enclosing repository.
func (s *Scanner) loadExcludePatterns(absRoot string) {
	s.patterns, s.gitignore, s.gitRoot = nil, nil, ""

	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	if len(patterns) > 0 {
		s.patterns = gitignore.NewMatcher(patterns)
	}

	if !s.config.Exclude.Gitignore {
		return
	}
	gitRoot := findGitRoot(absRoot)
	if gitRoot == "" {
		return
	}
	// ReadPatterns walks every .gitignore below gitRoot.
	gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(gitPatterns) == 0 {
		return
	}
	s.gitignore = gitignore.NewMatcher(gitPatterns)
	s.gitRoot = gitRoot
}

func (s *Scanner) isExcluded(absRoot, relPath string, isDir bool) bool {
	if relPath == "." {
		return false
	}
	if s.patterns != nil && s.patterns.Match(splitPath(relPath), isDir) {
		return true
	}
	if s.gitignore != nil {
		rel, err := filepath.Rel(s.gitRoot, filepath.Join(absRoot, relPath))
		if err == nil && !strings.HasPrefix(rel, "..") && s.gitignore.Match(splitPath(rel), isDir) {
			return true
		}
	}
	return false
}

func splitPath(p string) []string {
	return strings.Split(p, string(filepath.Separator))
}

// ScanDir recursively scans a directory for class files.
// Symlinks that resolve outside root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absRoot)

	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if relPath != "." && s.config.IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			if s.isExcluded(absRoot, relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsClassFile(path) || s.isExcluded(absRoot, relPath, false) {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, walkErr
}

// ScanPaths expands files and directories into a sorted, de-duplicated
// list of class files. Explicit file arguments are kept even when an
// exclude pattern would match them.
func (s *Scanner) ScanPaths(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		var found []string
		if info.IsDir() {
			if found, err = s.ScanDir(p); err != nil {
				return nil, err
			}
		} else if IsClassFile(p) {
			found = []string{p}
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
