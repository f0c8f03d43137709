// Package grantfile implements a YAML-backed authorization.Delegator:
// it loads groups, group/user grants, and audited-artifact paths from
// a file on an afero.Fs, parsed with gopkg.in/yaml.v3, and can Reload
// to pick up edits without a process restart.
package grantfile

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mmcdole/artisec/pkg/authorization"
)

// Document is the on-disk shape of a grant file.
type Document struct {
	// Groups maps a group id to the groups it directly belongs to.
	Groups map[string][]string `yaml:"groups"`
	// UserGroups maps a user id to the groups it directly belongs to.
	UserGroups map[string][]string `yaml:"userGroups"`
	// UserGrants maps a user id to its direct grants.
	UserGrants map[string][]authorization.Grant `yaml:"userGrants"`
	// GroupGrants maps a group id to its direct grants.
	GroupGrants map[string][]authorization.Grant `yaml:"groupGrants"`
	// AuditedArtifacts lists the artifact paths subject to security
	// audit logging.
	AuditedArtifacts []authorization.AuditedArtifact `yaml:"auditedArtifacts"`
}

// AuditSink receives security audit log entries a Source is asked to
// write. A logging.AuditLogger satisfies this.
type AuditSink interface {
	LogDecision(entry authorization.SecurityAuditLog)
}

// Source is an authorization.Delegator backed by a parsed Document. It
// is read-mostly: Reload swaps in a freshly parsed Document atomically,
// so a long-lived Source can pick up grant file edits without a process
// restart.
type Source struct {
	fs   afero.Fs
	path string
	sink AuditSink

	mu  sync.RWMutex
	doc Document
}

// Load reads and parses path on fs into a new Source.
func Load(fs afero.Fs, path string, sink AuditSink) (*Source, error) {
	s := &Source{fs: fs, path: path, sink: sink}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads and re-parses the grant file, replacing the Source's
// in-memory Document.
func (s *Source) Reload() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return fmt.Errorf("grantfile: reading %s: %w", s.path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("grantfile: parsing %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *Source) GroupsForUser(_ context.Context, userLoginID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.doc.UserGroups[userLoginID]...), nil
}

func (s *Source) ParentGroups(_ context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.doc.Groups[groupID]...), nil
}

func (s *Source) UserGrants(_ context.Context, userLoginID string) ([]authorization.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]authorization.Grant(nil), s.doc.UserGrants[userLoginID]...), nil
}

func (s *Source) GroupGrants(_ context.Context, groupID string) ([]authorization.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]authorization.Grant(nil), s.doc.GroupGrants[groupID]...), nil
}

func (s *Source) AuditedArtifacts(_ context.Context) ([]authorization.AuditedArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]authorization.AuditedArtifact(nil), s.doc.AuditedArtifacts...), nil
}

func (s *Source) WriteAuditLog(_ context.Context, entry authorization.SecurityAuditLog) error {
	if s.sink != nil {
		s.sink.LogDecision(entry)
	}
	return nil
}
