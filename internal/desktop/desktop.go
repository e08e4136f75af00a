package desktop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// entryFileMode is the permission set for written menu-entry files.
	entryFileMode os.FileMode = 0o644

	// entryDirMode is used when the applications directory has to be created.
	entryDirMode os.FileMode = 0o755
)

// Entry describes a freedesktop application-launcher descriptor.
type Entry struct {
	// Name is the display name shown in the launcher.
	Name string
	// GenericName is the launcher's secondary descriptive name.
	GenericName string
	// Comment is the one-line application description.
	Comment string
	// Exec is the path of the executable to launch.
	Exec string
	// Icon is the path of the launcher icon.
	Icon string
	// Terminal reports whether the application needs a terminal attached.
	Terminal bool
	// Categories are the menu category tags.
	Categories []string
	// Keywords are the launcher search keywords.
	Keywords []string
}

// Render produces the .desktop file content for the entry.
func (e *Entry) Render() string {
	var builder strings.Builder

	builder.WriteString("[Desktop Entry]\n")
	builder.WriteString("Type=Application\n")
	builder.WriteString("Name=" + e.Name + "\n")

	if e.GenericName != "" {
		builder.WriteString("GenericName=" + e.GenericName + "\n")
	}

	if e.Comment != "" {
		builder.WriteString("Comment=" + e.Comment + "\n")
	}

	builder.WriteString("Exec=" + e.Exec + "\n")

	if e.Icon != "" {
		builder.WriteString("Icon=" + e.Icon + "\n")
	}

	builder.WriteString(fmt.Sprintf("Terminal=%t\n", e.Terminal))

	if len(e.Categories) > 0 {
		builder.WriteString("Categories=" + strings.Join(e.Categories, ";") + ";\n")
	}

	if len(e.Keywords) > 0 {
		builder.WriteString("Keywords=" + strings.Join(e.Keywords, ";") + ";\n")
	}

	return builder.String()
}

// WriteEntry renders the entry and writes it to path, creating the
// applications directory when necessary.
func WriteEntry(path string, entry *Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), entryDirMode); err != nil {
		return fmt.Errorf("create applications directory: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), []byte(entry.Render()), entryFileMode); err != nil {
		return fmt.Errorf("write menu entry: %w", err)
	}

	return nil
}

// Symlink points link at target, replacing an existing link or file at the
// link path. The link's directory is created when necessary.
func Symlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), entryDirMode); err != nil {
		return fmt.Errorf("create symlink directory: %w", err)
	}

	if _, err := os.Lstat(link); err == nil {
		if err = os.Remove(link); err != nil {
			return fmt.Errorf("remove existing symlink: %w", err)
		}
	}

	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}

	return nil
}

// DirOnPath reports whether dir appears in the PATH environment variable.
func DirOnPath(dir string) bool {
	cleaned := filepath.Clean(dir)
	for _, element := range filepath.SplitList(os.Getenv("PATH")) {
		if element != "" && filepath.Clean(element) == cleaned {
			return true
		}
	}

	return false
}

// Remove deletes the artifact at path, treating an already absent target
// as success so removal stays idempotent.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}
