package archive

import (
	"os"
	"path/filepath"
	"time"
)

// LatestDir finds the most recently modified archive bundle for a ticker by
// scanning <root>/reports/<TICKER>_*. This is the recovery path used when
// the in-memory registry has no record for a job, e.g. after a restart.
func LatestDir(root, ticker string) (string, bool) {
	pattern := filepath.Join(root, "reports", ticker+"_*")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}

	var (
		latest   string
		latestAt time.Time
	)
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestAt) {
			latest = match
			latestAt = info.ModTime()
		}
	}
	return latest, latest != ""
}
