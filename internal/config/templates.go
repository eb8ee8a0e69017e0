package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"ticus/internal/models"
)

// TemplateStore holds the timetable templates loaded from the YAML
// seed file. Reload is safe to call concurrently (the file watcher in
// main triggers it on change).
type TemplateStore struct {
	path      string
	mu        sync.RWMutex
	templates []models.TimetableTemplate
}

// NewTemplateStore loads templates from path. A missing file is not an
// error; the store just starts empty.
func NewTemplateStore(path string) (*TemplateStore, error) {
	s := &TemplateStore{path: path}
	if err := s.Reload(); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	return s, nil
}

// Reload re-reads the templates file.
func (s *TemplateStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file struct {
		Templates []models.TimetableTemplate `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse templates file %s: %w", s.path, err)
	}

	for _, tpl := range file.Templates {
		if tpl.Name == "" {
			return fmt.Errorf("template without a name in %s", s.path)
		}
		for _, slot := range tpl.Slots {
			if err := slot.Validate(); err != nil {
				return fmt.Errorf("template %q: %w", tpl.Name, err)
			}
		}
	}

	s.mu.Lock()
	s.templates = file.Templates
	s.mu.Unlock()
	return nil
}

// All returns the loaded templates.
func (s *TemplateStore) All() []models.TimetableTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TimetableTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// Get returns the named template.
func (s *TemplateStore) Get(name string) (*models.TimetableTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.templates {
		if s.templates[i].Name == name {
			tpl := s.templates[i]
			return &tpl, true
		}
	}
	return nil, false
}
