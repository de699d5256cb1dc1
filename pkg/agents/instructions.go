package agents

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed instructions/*.txt
var embeddedInstructions embed.FS

// InstructionLoader reads agent instructions from a directory, falling back
// to the built-in copies for files the directory does not have.
type InstructionLoader struct {
	dir string
}

// NewInstructionLoader creates a loader. An empty dir uses only the
// built-in instructions.
func NewInstructionLoader(dir string) *InstructionLoader {
	return &InstructionLoader{dir: dir}
}

// Load returns the instructions in the named file.
func (l *InstructionLoader) Load(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid instructions file name %q", name)
	}

	if l.dir != "" {
		b, err := os.ReadFile(filepath.Join(l.dir, name))
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read instructions %s: %w", name, err)
		}
	}

	b, err := embeddedInstructions.ReadFile("instructions/" + name)
	if err != nil {
		return "", fmt.Errorf("instructions %s not found", name)
	}
	return strings.TrimSpace(string(b)), nil
}
