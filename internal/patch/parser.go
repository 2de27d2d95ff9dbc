package patch

import (
	"regexp"
	"strings"
)

// RawFile is one file's diff before normalization, as delivered by a
// platform API or split out of a whole-PR unified diff.
type RawFile struct {
	Path         string
	PreviousPath string
	ChangeType   ChangeType
	Diff         string
	Binary       bool
}

var (
	diffGitLineRe = regexp.MustCompile(`^diff --git (?:a/|")?(.+?)"? (?:b/|")?(.+?)"?$`)
	hunkHeaderRe  = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// SplitUnifiedDiff splits a whole-PR unified diff into per-file raw diffs.
// Each returned RawFile keeps its complete diff text including the
// "diff --git" line.
func SplitUnifiedDiff(diffText string) []RawFile {
	if strings.TrimSpace(diffText) == "" {
		return nil
	}

	var files []RawFile
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, "\n")
		if rf, ok := parseFileDiff(text); ok {
			files = append(files, rf)
		}
		current = nil
	}

	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
		}
		if len(current) > 0 || strings.HasPrefix(line, "diff --git ") {
			current = append(current, line)
		}
	}
	flush()

	return files
}

// parseFileDiff extracts path and change type from one file's diff text.
func parseFileDiff(text string) (RawFile, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return RawFile{}, false
	}

	m := diffGitLineRe.FindStringSubmatch(lines[0])
	if m == nil {
		return RawFile{}, false
	}
	oldPath, newPath := m[1], m[2]

	rf := RawFile{
		Path:       newPath,
		ChangeType: ChangeEdit,
		Diff:       text,
	}

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "new file mode"):
			rf.ChangeType = ChangeAdd
		case strings.HasPrefix(line, "deleted file mode"):
			rf.ChangeType = ChangeDelete
			rf.Path = oldPath
		case strings.HasPrefix(line, "rename from "):
			rf.ChangeType = ChangeRename
			rf.PreviousPath = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "Binary files "), strings.HasPrefix(line, "GIT binary patch"):
			rf.Binary = true
		case strings.HasPrefix(line, "@@ "):
			// Past the headers; nothing else to learn.
			return rf, true
		}
	}

	return rf, true
}

// CountDiffLines counts added and removed lines in a unified diff. The
// "+++" and "---" file header lines are not changes and are excluded.
func CountDiffLines(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
