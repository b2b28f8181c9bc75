package view

import (
	"fmt"
	"time"

	"github.com/restitch/internal/config"
	"github.com/restitch/internal/recon"
	"github.com/restitch/internal/sources"
	"github.com/restitch/internal/sources/meili"
	"github.com/restitch/internal/sources/pullpush"
	"github.com/restitch/internal/sources/reddit"
)

// NewLiveSource creates the live adapter named by general.live_provider.
func NewLiveSource(cfg *config.Config) (sources.LiveSource, error) {
	switch cfg.General.LiveProvider {
	case "", "reddit":
		return reddit.New(reddit.Config{
			BaseURL:           cfg.Live.Reddit.BaseURL,
			UserAgent:         cfg.Live.Reddit.UserAgent,
			RequestsPerSecond: cfg.Live.Reddit.RequestsPerSecond,
			Burst:             cfg.Live.Reddit.Burst,
			Timeout:           time.Duration(cfg.Live.Reddit.TimeoutSeconds) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported live provider: %s", cfg.General.LiveProvider)
	}
}

// NewArchiveSource creates the archival adapter named by
// general.archive_provider.
func NewArchiveSource(cfg *config.Config) (sources.ArchiveSource, error) {
	switch cfg.General.ArchiveProvider {
	case "", "pullpush":
		return pullpush.New(pullpush.Config{
			BaseURL: cfg.Archive.Pullpush.BaseURL,
			Timeout: time.Duration(cfg.Archive.Pullpush.TimeoutSeconds) * time.Second,
		}), nil
	case "meilisearch":
		return meili.New(meili.Config{
			URL:       cfg.Archive.Meilisearch.URL,
			APIKey:    cfg.Archive.Meilisearch.APIKey,
			Index:     cfg.Archive.Meilisearch.Index,
			PostIndex: cfg.Archive.Meilisearch.PostIndex,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported archive provider: %s", cfg.General.ArchiveProvider)
	}
}

// reconConfig maps the [recon] section onto engine tuning.
func reconConfig(cfg *config.Config) recon.Config {
	return recon.Config{
		ChunkSize:         cfg.Recon.ChunkSize,
		PageSize:          cfg.Recon.PageSize,
		DispatchThreshold: cfg.Recon.DispatchThreshold,
		ShortfallChunks:   cfg.Recon.ShortfallChunks,
	}
}
