package patch

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// MaxFileDiffBytes is the per-file diff size ceiling. Larger diffs are
// excluded from the normalized patch rather than truncated.
const MaxFileDiffBytes = 1 << 20

// binaryExtensions lists file extensions excluded from review content.
// Diffs of these are either unreadable or noise.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".svgz": true, ".tiff": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".zip": true, ".gz": true, ".tar": true, ".tgz": true, ".bz2": true,
	".xz": true, ".7z": true, ".rar": true, ".jar": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".obj": true, ".bin": true, ".wasm": true, ".class": true,
	".mp3": true, ".mp4": true, ".wav": true, ".avi": true, ".mov": true,
	".pyc": true,
}

// Normalizer assembles per-file raw diffs into a NormalizedPatch. A file
// that cannot be processed is logged and skipped; one broken file never
// sinks the review.
type Normalizer struct {
	maxFileBytes int
	logger       *slog.Logger
}

// NewNormalizer creates a Normalizer with the default size ceiling.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{maxFileBytes: MaxFileDiffBytes, logger: logger}
}

// Normalize builds the final patch: excluded files dropped, line counts
// computed, files ordered as given, and the provenance header rendered.
func (n *Normalizer) Normalize(prov Provenance, files []RawFile) *NormalizedPatch {
	result := &NormalizedPatch{
		Files:      make([]FileChange, 0, len(files)),
		Provenance: prov,
	}

	for _, rf := range files {
		fc, err := n.processFile(rf)
		if err != nil {
			n.logger.Warn("skipping file in patch",
				"path", rf.Path,
				"change_type", rf.ChangeType,
				"reason", err)
			continue
		}
		result.Files = append(result.Files, fc)
		result.TotalLines += fc.LinesAdded + fc.LinesRemoved
	}

	result.Header = renderHeader(prov, len(result.Files), result.TotalLines)
	return result
}

func (n *Normalizer) processFile(rf RawFile) (FileChange, error) {
	if rf.Path == "" {
		return FileChange{}, fmt.Errorf("file has no path")
	}
	if rf.Binary || isBinaryPath(rf.Path) {
		return FileChange{}, fmt.Errorf("binary content excluded")
	}
	if len(rf.Diff) > n.maxFileBytes {
		return FileChange{}, fmt.Errorf("diff size %d exceeds limit %d", len(rf.Diff), n.maxFileBytes)
	}

	added, removed := CountDiffLines(rf.Diff)

	changeType := rf.ChangeType
	if changeType == "" {
		changeType = ChangeEdit
	}

	return FileChange{
		Path:         rf.Path,
		PreviousPath: rf.PreviousPath,
		ChangeType:   changeType,
		LinesAdded:   added,
		LinesRemoved: removed,
		Diff:         rf.Diff,
	}, nil
}

func isBinaryPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return binaryExtensions[ext]
}

// renderHeader produces the provenance block placed ahead of the diff
// content so a reviewer always knows exactly what they are looking at.
func renderHeader(prov Provenance, fileCount, totalLines int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Pull Request #%d", prov.PullRequestID)
	if prov.Title != "" {
		fmt.Fprintf(&b, ": %s", prov.Title)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "# Platform: %s\n", prov.Platform)
	if prov.Project != "" {
		fmt.Fprintf(&b, "# Repository: %s/%s/%s\n", prov.Organization, prov.Project, prov.Repository)
	} else {
		fmt.Fprintf(&b, "# Repository: %s/%s\n", prov.Organization, prov.Repository)
	}
	if prov.SourceBranch != "" || prov.TargetBranch != "" {
		fmt.Fprintf(&b, "# Branches: %s -> %s\n", prov.SourceBranch, prov.TargetBranch)
	}
	if prov.Author != "" {
		fmt.Fprintf(&b, "# Author: %s\n", prov.Author)
	}
	if prov.Status != "" {
		fmt.Fprintf(&b, "# Status: %s\n", prov.Status)
	}
	if !prov.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "# Created: %s\n", prov.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if prov.CommitCount > 0 {
		fmt.Fprintf(&b, "# Commits: %d\n", prov.CommitCount)
	}
	if !prov.FetchedAt.IsZero() {
		fmt.Fprintf(&b, "# Fetched: %s\n", prov.FetchedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	fmt.Fprintf(&b, "# Files: %d, changed lines: %d\n", fileCount, totalLines)
	return b.String()
}
