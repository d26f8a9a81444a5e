package config

import (
	"os"
	"path/filepath"

	"github.com/LuckyWindsck/mise/internal/core/domain"
)

// projectFileNames are the config file names recognized per directory, in
// precedence order: the local override is innermost.
var projectFileNames = []string{"mise.local.toml", ".mise.toml", "mise.toml"}

// discoveredFile is one config file found on disk, before parsing.
type discoveredFile struct {
	path string
	kind domain.LayerKind
	// tool is non-empty for idiomatic version files.
	tool string
}

// discover walks from cwd to the filesystem root collecting project config
// files, then appends the user- and system-scope files. The result is
// ordered innermost first. Idiomatic version files are collected for the
// given tool→filename table (built from enabled backends) and sit after
// the TOML files of the same directory.
func discover(cwd string, layout domain.Layout, idiomatic map[string]string) []discoveredFile {
	var files []discoveredFile

	dir := cwd
	first := true
	for {
		kind := domain.LayerParentProject
		if first {
			kind = domain.LayerProject
		}
		for _, name := range projectFileNames {
			path := filepath.Join(dir, name)
			if fileExists(path) {
				files = append(files, discoveredFile{path: path, kind: kind})
			}
		}
		idiomaticStart := len(files)
		for filename, tool := range idiomatic {
			path := filepath.Join(dir, filename)
			if fileExists(path) {
				files = append(files, discoveredFile{path: path, kind: kind, tool: tool})
			}
		}
		// Idiomatic entries iterate in map order; keep the list stable.
		sortIdiomaticTail(files[idiomaticStart:])

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		first = false
	}

	if path := layout.UserConfigPath(); fileExists(path) {
		files = append(files, discoveredFile{path: path, kind: domain.LayerUser})
	}
	if path := layout.SystemConfigPath(); fileExists(path) {
		files = append(files, discoveredFile{path: path, kind: domain.LayerSystem})
	}
	return files
}

// sortIdiomaticTail orders the idiomatic files appended for the current
// directory by path so discovery is a pure function of the filesystem.
func sortIdiomaticTail(files []discoveredFile) {
	start := len(files)
	for start > 0 && files[start-1].tool != "" {
		start--
	}
	tail := files[start:]
	for i := 1; i < len(tail); i++ {
		for j := i; j > 0 && tail[j].path < tail[j-1].path; j-- {
			tail[j], tail[j-1] = tail[j-1], tail[j]
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
