package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/repository"

	"gopkg.in/yaml.v3"
)

// MonitorFile is the YAML document listing monitors to provision at start.
type MonitorFile struct {
	Monitors []models.CreateMonitorRequest `yaml:"monitors"`
}

// ParseMonitorFile decodes a seed document, rejecting unknown keys.
func ParseMonitorFile(r io.Reader) (*MonitorFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f MonitorFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse monitors file: %w", err)
	}
	return &f, nil
}

func LoadMonitorFile(path string) (*MonitorFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitors file: %w", err)
	}
	return ParseMonitorFile(bytes.NewReader(data))
}

// Check validates every entry the way CreateMonitor would and reports the
// problems keyed by entry. Entries must carry an id so reloads are stable.
func (f *MonitorFile) Check() error {
	var errs []error
	seen := make(map[string]bool)

	for i := range f.Monitors {
		req := &f.Monitors[i]
		label := fmt.Sprintf("monitors[%d]", i)
		if req.ID != "" {
			label += " (" + req.ID + ")"
		}

		id := strings.TrimSpace(req.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("%s: id is required", label))
		} else if seen[id] {
			errs = append(errs, fmt.Errorf("%s: duplicate id", label))
		}
		seen[id] = true

		if err := ValidateMonitor(requestToMonitor(req)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// SeedService upserts the monitors listed in the seed file.
type SeedService struct {
	monitors *MonitorService
	log      *logger.Logger
}

func NewSeedService(monitors *MonitorService, log *logger.Logger) *SeedService {
	return &SeedService{monitors: monitors, log: log.With("seed")}
}

// Apply creates missing monitors and overwrites existing ones by id. State
// of existing monitors is kept.
func (s *SeedService) Apply(ctx context.Context, f *MonitorFile) (created, updated int, err error) {
	if err := f.Check(); err != nil {
		return 0, 0, err
	}

	for i := range f.Monitors {
		req := &f.Monitors[i]
		m := requestToMonitor(req)

		_, getErr := s.monitors.GetMonitor(ctx, m.ID)
		switch {
		case getErr == nil:
			if _, err := s.monitors.UpdateMonitor(ctx, m.ID, &models.UpdateMonitorRequest{
				Name:        &m.Name,
				Description: &m.Description,
				SourceKind:  &m.SourceKind,
				SourceTopic: &m.SourceTopic,
				Config:      &m.Config,
				Enabled:     &m.Enabled,
			}); err != nil {
				return created, updated, fmt.Errorf("update %s: %w", m.ID, err)
			}
			updated++
		case errors.Is(getErr, repository.ErrNotFound):
			if _, err := s.monitors.CreateMonitor(ctx, req); err != nil {
				return created, updated, fmt.Errorf("create %s: %w", m.ID, err)
			}
			created++
		default:
			return created, updated, getErr
		}
	}

	s.log.Info("Seeded monitors: %d created, %d updated", created, updated)
	return created, updated, nil
}

// ApplyFile loads path and applies it. An empty path is a no-op.
func (s *SeedService) ApplyFile(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	f, err := LoadMonitorFile(path)
	if err != nil {
		return err
	}
	_, _, err = s.Apply(ctx, f)
	return err
}
