// Package pathsafe normalizes wire relpaths against a root directory,
// rejecting traversal and alternate-data-stream vectors (spec §4.2).
package pathsafe

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrorKind enumerates the PathError variants from spec §7.
type ErrorKind int

const (
	ContainsParent ErrorKind = iota
	ContainsNul
	WindowsColon
	Escapes
)

func (k ErrorKind) String() string {
	switch k {
	case ContainsParent:
		return "ContainsParent"
	case ContainsNul:
		return "ContainsNul"
	case WindowsColon:
		return "WindowsColon"
	case Escapes:
		return "Escapes"
	default:
		return "Unknown"
	}
}

// Error is PathError from spec §7.
type Error struct {
	Kind    ErrorKind
	Relpath string
}

func (e *Error) Error() string {
	return fmt.Sprintf("path error: %s: %q", e.Kind, e.Relpath)
}

// Resolve normalizes relpath against root, returning the absolute joined
// path. It rejects NUL bytes, any ParentDir/RootDir/volume-prefix component,
// and (on Windows) any component containing ':'. If the joined path exists,
// the canonical (symlink-resolved) path is required to still be rooted
// under the canonicalized root; if it does not exist, the same check is
// applied to its parent directory.
func Resolve(root, relpath string) (string, error) {
	if strings.IndexByte(relpath, 0) >= 0 {
		return "", &Error{Kind: ContainsNul, Relpath: relpath}
	}

	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("pathsafe: abs root: %w", err)
	}
	cleanRoot = filepath.Clean(cleanRoot)

	parts := strings.Split(filepath.ToSlash(relpath), "/")
	var kept []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			return "", &Error{Kind: ContainsParent, Relpath: relpath}
		default:
			if filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
				return "", &Error{Kind: ContainsParent, Relpath: relpath}
			}
			if runtime.GOOS == "windows" && strings.ContainsRune(p, ':') {
				return "", &Error{Kind: WindowsColon, Relpath: relpath}
			}
			kept = append(kept, p)
		}
	}
	if filepath.IsAbs(relpath) {
		return "", &Error{Kind: ContainsParent, Relpath: relpath}
	}

	joined := filepath.Join(append([]string{cleanRoot}, kept...)...)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", &Error{Kind: Escapes, Relpath: relpath}
	}

	if err := verifyCanonical(cleanRoot, joined); err != nil {
		return "", err
	}
	return joined, nil
}

// verifyCanonical resolves symlinks on the existing prefix of joined and
// checks the canonical result is still rooted under canonical root. If
// joined does not exist yet, the check walks up to the first existing
// ancestor (normally the parent directory).
func verifyCanonical(root, joined string) error {
	canonRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		// Root itself may not exist yet (first connection, base_dir not
		// created); nothing to canonicalize against.
		return nil
	}
	canonRoot = filepath.Clean(canonRoot)

	check := joined
	for {
		canon, err := filepath.EvalSymlinks(check)
		if err == nil {
			if canon != canonRoot && !strings.HasPrefix(canon, canonRoot+string(filepath.Separator)) {
				return &Error{Kind: Escapes, Relpath: joined}
			}
			return nil
		}
		parent := filepath.Dir(check)
		if parent == check {
			// Reached filesystem root without finding an existing ancestor;
			// nothing more we can canonicalize.
			return nil
		}
		check = parent
	}
}
