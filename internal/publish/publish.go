package publish

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"taskboard/internal/grouping"
)

type WriteOptions struct {
	Render    RenderOptions
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteBoard renders v to <toDir>/<dimension>.md.
func WriteBoard(v grouping.View, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	toDir = filepath.Clean(toDir)
	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return WriteResult{}, err
	}
	name := string(v.Dimension)
	if name == "" {
		name = "board"
	}
	outPath := filepath.Join(toDir, name+".md")
	if err := writeFile(outPath, []byte(RenderBoardMarkdown(v, opt.Render)), opt.Overwrite); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Written: []string{outPath}}, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
