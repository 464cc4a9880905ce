package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/meadm/GenomeCheck/logger"
)

// workspace is the scratch directory tree of one batch. Tool outputs land
// here and the whole tree goes away with the batch unless kept.
type workspace struct {
	root string
	keep bool
}

func newWorkspace(workRoot, batchID string, keep bool) (*workspace, error) {

	if workRoot == "" {
		workRoot = os.TempDir()
	}

	root := filepath.Join(workRoot, "genomecheck-"+batchID)
	for _, dir := range []string{root, filepath.Join(root, "busco"), filepath.Join(root, "fastani")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}

	return &workspace{root: root, keep: keep}, nil
}

func (w *workspace) buscoDir() string {
	return filepath.Join(w.root, "busco")
}

func (w *workspace) fastaniDir() string {
	return filepath.Join(w.root, "fastani")
}

// cleanup removes the workspace tree. Everything the batch result needs
// is in memory before this runs.
func (w *workspace) cleanup() {
	if w.keep {
		logger.Info("Keeping workspace", zap.String("dir", w.root))
		return
	}
	if err := os.RemoveAll(w.root); err != nil {
		logger.Warn("Workspace cleanup failed", zap.String("dir", w.root), zap.String("error", err.Error()))
	}
}
