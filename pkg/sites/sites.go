package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Package sites contains the job-board registry (YAML/JSON) and the
// site-specific pagination/extraction adapters.

const (
	// Pagination styles.
	TypeSequentialPage  = "sequential_page"
	TypeAjaxEnvelope    = "ajax_envelope"
	TypeDiscoveredToken = "discovered_token"

	defaultDetailDelayMs       = 2000
	defaultPageDelayMs         = 2000
	defaultTimeoutSeconds      = 30
	defaultPerPage             = 10
	defaultDuplicateStreak     = 15
	defaultUserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/93.0.4577.82 Safari/537.36"
)

// Site describes one job board: where its listings live, how fast it may be
// polled, and when the incremental crawl should give up on seen content.
type Site struct {
	ID                   string            `json:"id" yaml:"id"`
	Name                 string            `json:"name" yaml:"name"`
	Type                 string            `json:"type" yaml:"type"`
	BaseURL              string            `json:"base_url" yaml:"base_url"`
	ListURL              string            `json:"list_url" yaml:"list_url"`
	AjaxURL              string            `json:"ajax_url" yaml:"ajax_url"`
	Schedule             string            `json:"schedule" yaml:"schedule"`
	PerPage              int               `json:"per_page" yaml:"per_page"`
	DetailDelayMs        int               `json:"detail_delay_ms" yaml:"detail_delay_ms"`
	PageDelayMs          int               `json:"page_delay_ms" yaml:"page_delay_ms"`
	DuplicateStreakLimit int               `json:"duplicate_streak_limit" yaml:"duplicate_streak_limit"`
	TimeoutSeconds       int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	UserAgents           []string          `json:"user_agents" yaml:"user_agents"`
	Headers              map[string]string `json:"headers" yaml:"headers"`
}

// DetailDelay returns the mandatory inter-request interval before each
// detail-page fetch.
func (s Site) DetailDelay() time.Duration {
	return time.Duration(s.DetailDelayMs) * time.Millisecond
}

// PageDelay returns the pause between consecutive list-page requests.
func (s Site) PageDelay() time.Duration {
	return time.Duration(s.PageDelayMs) * time.Millisecond
}

// Timeout returns the per-request network timeout.
func (s Site) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type registryFile struct {
	Sites []Site `json:"sites" yaml:"sites"`
}

// Registry materializes site definitions loaded from config files.
type Registry struct {
	mu    sync.RWMutex
	sites []Site
	idx   map[string]Site
}

// LoadRegistry loads the site registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sites file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Sites) == 0 {
		return nil, errors.New("sites file contains no site entries")
	}

	reg := &Registry{
		sites: make([]Site, len(fileReg.Sites)),
		idx:   make(map[string]Site, len(fileReg.Sites)),
	}

	for i := range fileReg.Sites {
		s := sanitizeSite(fileReg.Sites[i])
		if err := validateSite(s); err != nil {
			return nil, fmt.Errorf("site[%d]: %w", i, err)
		}
		if _, exists := reg.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		reg.sites[i] = s
		reg.idx[s.ID] = s
	}

	return reg, nil
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("sites file format not recognized (expected YAML or JSON)")
}

func unmarshalRegistry(name string, data []byte, fn func([]byte, any) error) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s sites: %w", name, err)
	}
	return reg, nil
}

func sanitizeSite(s Site) Site {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	s.ListURL = strings.TrimSpace(s.ListURL)
	s.AjaxURL = strings.TrimSpace(s.AjaxURL)
	s.Schedule = strings.TrimSpace(s.Schedule)

	if s.PerPage <= 0 {
		s.PerPage = defaultPerPage
	}
	if s.DetailDelayMs < 0 {
		s.DetailDelayMs = defaultDetailDelayMs
	}
	if s.PageDelayMs < 0 {
		s.PageDelayMs = defaultPageDelayMs
	}
	if s.DuplicateStreakLimit <= 0 {
		s.DuplicateStreakLimit = defaultDuplicateStreak
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultTimeoutSeconds
	}

	return s
}

func validateSite(s Site) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required for site %q", s.ID)
	}
	switch s.Type {
	case TypeSequentialPage, TypeDiscoveredToken:
		if s.ListURL == "" {
			return fmt.Errorf("list_url is required for site %q", s.ID)
		}
	case TypeAjaxEnvelope:
		if s.AjaxURL == "" {
			return fmt.Errorf("ajax_url is required for site %q", s.ID)
		}
	case "":
		return fmt.Errorf("type is required for site %q", s.ID)
	default:
		return fmt.Errorf("unknown pagination type %q for site %q", s.Type, s.ID)
	}
	return nil
}

// ByID returns the site entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Site, bool) {
	if r == nil {
		return Site{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return Site{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[id]
	return s, ok
}

// All returns a copy of the loaded site list.
func (r *Registry) All() []Site {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Scheduled returns sites carrying a cron schedule.
func (r *Registry) Scheduled() []Site {
	all := r.All()
	out := make([]Site, 0, len(all))
	for _, s := range all {
		if s.Schedule != "" {
			out = append(out, s)
		}
	}
	return out
}
