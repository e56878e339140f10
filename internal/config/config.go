// Package config loads the sparqlmodel configuration file: which triple
// store to talk to, which graph to use, and the well-known lifecycle
// predicates every mapped entity shares.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendSPARQL = "sparql"
	BackendSQLite = "sqlite"
)

// Default predicate URIs and status values.
const (
	DefaultStatusPredicate  = "http://www.w3.org/ns/adms#status"
	DefaultCreatedPredicate = "http://purl.org/dc/terms/created"
	DefaultUpdatedPredicate = "http://purl.org/dc/terms/modified"
	DefaultStatusActive     = 1
	DefaultStatusDeleted    = 2
	DefaultDatabase         = "sparqlmodel.db"
	DefaultTimeout          = 30 * time.Second
)

// Config is the complete runtime configuration.
type Config struct {
	Backend        string        `yaml:"backend"`
	Endpoint       string        `yaml:"endpoint"`
	UpdateEndpoint string        `yaml:"update_endpoint"`
	Database       string        `yaml:"database"`
	Graph          string        `yaml:"graph"`
	Timeout        time.Duration `yaml:"timeout"`
	Mappings       string        `yaml:"mappings"`
	Predicates     Predicates    `yaml:"predicates"`
	Status         StatusValues  `yaml:"status"`
}

// Predicates are the lifecycle predicate URIs.
type Predicates struct {
	Status  string `yaml:"status"`
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
}

// StatusValues are the literal values stored under the status predicate.
type StatusValues struct {
	Active  int64 `yaml:"active"`
	Deleted int64 `yaml:"deleted"`
}

// Default returns a configuration for a local SQLite store.
func Default() *Config {
	return &Config{
		Backend:  BackendSQLite,
		Database: DefaultDatabase,
		Timeout:  DefaultTimeout,
		Predicates: Predicates{
			Status:  DefaultStatusPredicate,
			Created: DefaultCreatedPredicate,
			Updated: DefaultUpdatedPredicate,
		},
		Status: StatusValues{
			Active:  DefaultStatusActive,
			Deleted: DefaultStatusDeleted,
		},
	}
}

// Load reads and validates a configuration file. Keys absent from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration. Unknown keys are
// rejected to catch typos like "endpont:".
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if len(bytes.TrimSpace(data)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration, collecting every problem rather than
// stopping at the first. Returns nil or ValidationErrors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Backend {
	case BackendSPARQL:
		if c.Endpoint == "" {
			add("endpoint", "required for the sparql backend")
		} else if !isHTTPURL(c.Endpoint) {
			add("endpoint", "must be an absolute http(s) URL, got %q", c.Endpoint)
		}
		if c.UpdateEndpoint != "" && !isHTTPURL(c.UpdateEndpoint) {
			add("update_endpoint", "must be an absolute http(s) URL, got %q", c.UpdateEndpoint)
		}
	case BackendSQLite:
		if c.Database == "" {
			add("database", "required for the sqlite backend")
		}
	default:
		add("backend", "must be %q or %q, got %q", BackendSPARQL, BackendSQLite, c.Backend)
	}

	if c.Graph != "" && !isAbsoluteIRI(c.Graph) {
		add("graph", "must be an absolute IRI, got %q", c.Graph)
	}
	if c.Timeout <= 0 {
		add("timeout", "must be positive")
	}

	for field, iri := range map[string]string{
		"predicates.status":  c.Predicates.Status,
		"predicates.created": c.Predicates.Created,
		"predicates.updated": c.Predicates.Updated,
	} {
		if !isAbsoluteIRI(iri) {
			add(field, "must be an absolute IRI, got %q", iri)
		}
	}
	if c.Status.Active == c.Status.Deleted {
		add("status", "active and deleted values must differ")
	}

	if len(errs) == 0 {
		return nil
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isAbsoluteIRI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && !strings.ContainsAny(s, " <>\"{}|^`\\")
}
