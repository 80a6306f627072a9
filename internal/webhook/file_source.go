package webhook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type webhookSection struct {
	URL    string   `koanf:"url"`
	Secret string   `koanf:"secret"`
	Events []string `koanf:"events"`
}

// FileSource reads one YAML document per tenant, <dir>/<tenant>.yaml:
//
//	webhook:
//	  url: https://acme.example/hook
//	  secret: s3cr3t
//	  events: [lead.qualified, call.completed]
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Dir() string {
	return s.dir
}

// Path returns the document path for tenantID.
func (s *FileSource) Path(tenantID string) string {
	return filepath.Join(s.dir, tenantID+".yaml")
}

func (s *FileSource) Load(_ context.Context, tenantID string) (*TenantWebhookConfig, error) {
	// Tenant IDs become file names, so anything path-like is simply unknown.
	if !tenantIDPattern.MatchString(tenantID) {
		return nil, nil
	}

	path := s.Path(tenantID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat tenant config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load tenant config file: %w", err)
	}

	if !k.Exists("webhook") {
		return nil, nil
	}

	var section webhookSection
	if err := k.Unmarshal("webhook", &section); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook section: %w", err)
	}
	if section.URL == "" {
		return nil, nil
	}

	return &TenantWebhookConfig{
		TenantID:         tenantID,
		URL:              section.URL,
		Secret:           section.Secret,
		SubscribedEvents: section.Events,
	}, nil
}
