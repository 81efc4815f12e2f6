package allowlist

import (
	"log/slog"
	"os"
	"strings"
)

// List is a set of player names exempt from Discord verification, read
// from another subsystem's allow-list file. Matching is case-insensitive
// against the display name. The file is read once at startup; re-scanning
// on change is the owning subsystem's concern, not ours.
type List struct {
	names map[string]struct{}
}

// Load reads an allow-list file: one name per line, blank lines and lines
// starting with '#' ignored. An empty path disables the feature. A
// missing or unreadable file logs a warning and disables the feature
// rather than failing startup, since the file belongs to another
// subsystem.
func Load(path string, logger *slog.Logger) *List {
	l := &List{names: make(map[string]struct{})}

	if path == "" {
		logger.Info("allow-list integration disabled, no path configured")
		return l
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("could not read allow-list file",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return l
	}

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		l.names[strings.ToLower(trimmed)] = struct{}{}
	}

	logger.Info("loaded allow-list",
		slog.String("path", path),
		slog.Int("count", len(l.names)))
	return l
}

// Contains reports whether the name is on the allow list
func (l *List) Contains(name string) bool {
	_, ok := l.names[strings.ToLower(name)]
	return ok
}

// Size returns the number of names on the list
func (l *List) Size() int {
	return len(l.names)
}
