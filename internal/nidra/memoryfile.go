package nidra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dayFilePath returns <home>/days/YYYY/MM/DD.md for the given date (§6.1).
func dayFilePath(home string, date time.Time) string {
	return filepath.Join(home, "days", fmt.Sprintf("%04d", date.Year()), fmt.Sprintf("%02d", date.Month()), fmt.Sprintf("%02d.md", date.Day()))
}

func archiveDayFilePath(home string, date time.Time) string {
	return filepath.Join(home, "archive", "days", fmt.Sprintf("%04d", date.Year()), fmt.Sprintf("%02d", date.Month()), fmt.Sprintf("%02d.md", date.Day()))
}

// writeDayFile creates the day file for date, or rewrites an existing one
// with the new per-project fact summaries from the Svapna pipeline first and
// the earlier content after a "---" separator.
func writeDayFile(home string, date time.Time, projectFacts map[string][]string) error {
	path := dayFilePath(home, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("nidra: mkdir day dir: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", date.Format("2006-01-02"))
	for project, facts := range projectFacts {
		fmt.Fprintf(&b, "## %s\n\n", project)
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	existing, err := os.ReadFile(path)
	if err == nil {
		b.WriteString("---\n\n")
		b.Write(existing)
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// archiveDayFile moves a day file past retention out of days/ into
// archive/days/, renaming first and falling back to copy+delete (§4.3.2).
func archiveDayFile(home string, date time.Time) error {
	src := dayFilePath(home, date)
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	dst := archiveDayFilePath(home, date)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("nidra: mkdir archive dir: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("nidra: read day file for archival: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("nidra: copy day file to archive: %w", err)
	}
	return os.Remove(src)
}

// appendMemoryScope appends content to memory/<scope>.md under home,
// creating the file and its directory if needed (§6.1).
func appendMemoryScope(home, scope, content string) error {
	dir := filepath.Join(home, "memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("nidra: mkdir memory dir: %w", err)
	}
	path := filepath.Join(dir, scope+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("nidra: open memory scope %s: %w", scope, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content + "\n\n"); err != nil {
		return fmt.Errorf("nidra: append memory scope %s: %w", scope, err)
	}
	return nil
}
