package controller

import (
	"time"

	"github.com/bassista/go_scrapbook/internal/config"
)

func syncConfigFor(url string) config.SyncConfig {
	return config.SyncConfig{Enabled: true, PrimaryURL: url, Interval: time.Hour, Timeout: 2 * time.Second}
}
