package recorder

import (
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ProjectName resolves the Go module path enclosing path by walking up for
// a go.mod, mirroring the teacher's (`inspector/repository.Detector`)
// project-root search, simplified to the one marker this recorder actually
// needs: a recording is named after its host project so two recordings of
// scripts with the same base filename don't collide in a shared output
// directory.
//
// If no go.mod is found, the absolute directory containing path is used
// verbatim, matching the detector's own RootPath fallback.
func ProjectName(path string) string {
	dir := path
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		dir = filepath.Dir(path)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	for cur := abs; ; {
		goModPath := filepath.Join(cur, "go.mod")
		if content, err := os.ReadFile(goModPath); err == nil {
			if mod, err := modfile.Parse(goModPath, content, nil); err == nil && mod.Module != nil {
				return mod.Module.Mod.Path
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return abs
}
