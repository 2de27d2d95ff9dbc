package patch

import (
	"fmt"
	"strings"
)

// maxDiffCells caps the LCS table size. File pairs beyond it are rendered
// as a full replacement, which over-counts churn but never blocks a fetch.
const maxDiffCells = 4_000_000

// SynthesizeUnifiedDiff builds a unified diff for one file from its base
// and target contents. It is used when a platform serves file versions but
// no per-file diff payload. The result is a single whole-file hunk.
func SynthesizeUnifiedDiff(path string, base, target string, changeType ChangeType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n", path, path)

	switch changeType {
	case ChangeAdd:
		lines := splitContentLines(target)
		fmt.Fprintf(&b, "--- /dev/null\n+++ b/%s\n", path)
		fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", len(lines))
		for _, l := range lines {
			b.WriteString("+" + l + "\n")
		}
	case ChangeDelete:
		lines := splitContentLines(base)
		fmt.Fprintf(&b, "--- a/%s\n+++ /dev/null\n", path)
		fmt.Fprintf(&b, "@@ -1,%d +0,0 @@\n", len(lines))
		for _, l := range lines {
			b.WriteString("-" + l + "\n")
		}
	default:
		baseLines := splitContentLines(base)
		targetLines := splitContentLines(target)
		fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n", path, path)
		fmt.Fprintf(&b, "@@ -1,%d +1,%d @@\n", len(baseLines), len(targetLines))
		for _, l := range diffLines(baseLines, targetLines) {
			b.WriteString(l + "\n")
		}
	}

	return b.String()
}

func splitContentLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}

// diffLines produces the body of a whole-file hunk: unchanged lines with a
// space prefix, removals with "-", additions with "+". It walks an LCS
// table; oversized inputs degrade to remove-all/add-all.
func diffLines(base, target []string) []string {
	n, m := len(base), len(target)
	if n*m > maxDiffCells {
		out := make([]string, 0, n+m)
		for _, l := range base {
			out = append(out, "-"+l)
		}
		for _, l := range target {
			out = append(out, "+"+l)
		}
		return out
	}

	// lcs[i][j] is the LCS length of base[i:] and target[j:].
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if base[i] == target[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	out := make([]string, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case base[i] == target[j]:
			out = append(out, " "+base[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, "-"+base[i])
			i++
		default:
			out = append(out, "+"+target[j])
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, "-"+base[i])
	}
	for ; j < m; j++ {
		out = append(out, "+"+target[j])
	}
	return out
}
