package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meadm/GenomeCheck/internal/util"
	"github.com/meadm/GenomeCheck/pkg/genome"
)

// fastaExts are the extensions picked up from an input directory.
var fastaExts = map[string]bool{
	".fasta": true,
	".fa":    true,
	".fna":   true,
}

// ScanInputs collects the FASTA files directly inside dir, in file name
// order. Assembly names come from the file names, extension stripped.
func ScanInputs(dir string) ([]Input, error) {

	if !util.DirExists(dir) {
		return nil, fmt.Errorf("pipeline: input directory %s does not exist", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read input directory: %w", err)
	}

	var inputs []Input
	for _, e := range entries {
		if e.IsDir() || !fastaExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		inputs = append(inputs, Input{
			Name: genome.NameFromFile(e.Name()),
			Path: filepath.Join(dir, e.Name()),
		})
	}

	return inputs, nil
}
