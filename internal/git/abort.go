package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AbortFileName is the well-known abort artifact path, relative to the
// working tree root. The file is operator guidance written when an
// operation cannot complete automatically; the engine never deletes it.
const AbortFileName = ".merge-abort"

// AbortFilePath returns the absolute abort artifact path for this
// repository.
func (s *Service) AbortFilePath() string {
	return filepath.Join(s.backend.RepoPath(), AbortFileName)
}

// writeAbortArtifact leaves a plain-text note describing what failed and
// what decision is needed. Failure to write the note is logged into the
// returned error by callers; the original condition always wins.
func writeAbortArtifact(root, reason string, files []string) error {
	var b strings.Builder
	b.WriteString("Merge aborted.\n\n")
	b.WriteString(reason)
	b.WriteString("\n")
	if len(files) > 0 {
		b.WriteString("\nConflicted files:\n")
		for _, f := range files {
			fmt.Fprintf(&b, "  %s\n", f)
		}
		b.WriteString("\nResolve the conflict markers in each file listed above, commit the\nresult, then delete this file.\n")
	} else {
		b.WriteString("\nOnce the situation is resolved, delete this file and retry.\n")
	}
	path := filepath.Join(root, AbortFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return repoErr("write abort artifact", err)
	}
	return nil
}
