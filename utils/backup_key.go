package utils

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

// BackupKey builds backups/<app-slug>/<UTC timestamp>.json.
func BackupKey(appName string, at time.Time) string {
	prefix := slug.Make(appName)
	if prefix == "" {
		prefix = "app"
	}
	return fmt.Sprintf("backups/%s/%s.json", prefix, at.UTC().Format("20060102T150405Z"))
}
