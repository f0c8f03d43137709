// Package config loads the engine's properties-style configuration: the
// grant source location, per-cache tuning overrides, and audit logging
// settings, read from a YAML file through an afero.Fs so tests can
// substitute an in-memory filesystem.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// CacheTuning overrides a named cache's constructor defaults, read from
// the "caches" mapping of the YAML file under the cache's name
// (caches.<name>.maxInMemory etc.).
type CacheTuning struct {
	MaxInMemory         int    `yaml:"maxInMemory"`
	ExpireTimeSeconds   int    `yaml:"expireTime"`
	UseSoftReference    bool   `yaml:"useSoftReference"`
	UseFileSystemStore  bool   `yaml:"useFileSystemStore"`
}

// Config is the engine's top-level properties.
type Config struct {
	// GrantsFilePath points at the grant source file (see pkg/grantfile)
	// authorization.Manager's Delegator implementation reads from.
	GrantsFilePath string `yaml:"grantsFilePath"`
	// AuditLogPath is where SecurityAuditLog entries are written. Empty
	// discards them.
	AuditLogPath string `yaml:"auditLogPath"`
	// AuditLogMaxSizeBytes is a size limit for the audit log. Load sets
	// a zero value to 10 MiB. Nothing in this module reads it: the audit
	// log pkg/logging writes is a plain append-only file and is never
	// rotated.
	AuditLogMaxSizeBytes int64 `yaml:"auditLogMaxSizeBytes"`
	// CacheDiskPath, if set, backs every cache configured with
	// UseFileSystemStore with a shared bbolt database at this path.
	CacheDiskPath string `yaml:"cacheDiskPath"`
	// Caches maps a cache name to its tuning overrides.
	Caches map[string]CacheTuning `yaml:"caches"`
	// Debug enables debug-level application logging.
	Debug bool `yaml:"debug"`
	// Disabled is the global authorization-disabled kill switch: when
	// true, every permission check an authorization.Manager-built
	// AccessController performs succeeds without consulting grants,
	// the same escape hatch an operator reaches for while diagnosing a
	// misconfigured grant file in production.
	Disabled bool `yaml:"authorizationManager.disabled"`
}

const (
	defaultAuditLogMaxSizeBytes = 10 * 1024 * 1024
)

// Load reads and defaults a Config from path on fs. Relative
// GrantsFilePath/AuditLogPath/CacheDiskPath values are resolved against
// the directory path lives in.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	cfg.GrantsFilePath = resolve(cfg.GrantsFilePath)
	cfg.AuditLogPath = resolve(cfg.AuditLogPath)
	cfg.CacheDiskPath = resolve(cfg.CacheDiskPath)

	if cfg.AuditLogMaxSizeBytes == 0 {
		cfg.AuditLogMaxSizeBytes = defaultAuditLogMaxSizeBytes
	}
	if cfg.Caches == nil {
		cfg.Caches = make(map[string]CacheTuning)
	}

	return &cfg, nil
}

// TuningFor returns the overrides configured for a named cache, or the
// zero CacheTuning if none are configured — the unbounded, no-expiry,
// no-soft-reference, memory-only default.
func (c *Config) TuningFor(name string) CacheTuning {
	return c.Caches[name]
}
