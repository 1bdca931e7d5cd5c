//                      _
//  ___ _   _ _ __   __| | _____  __
// / __| | | | '_ \ / _` |/ _ \ \/ /
// \__ \ |_| | | | | (_| |  __/>  <
// |___/\__, |_| |_|\__,_|\___/_/\_\
//      |___/
//
//  Copyright © 2019 - 2026 Syndex B.V. All rights reserved.
//
//  CONTACT: hello@syndex.io
//

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/syndex/syndex/usecases/monitoring"
)

// DefaultConfigFile is the default file when no config file is provided
const DefaultConfigFile string = "./syndex.conf.yaml"

const (
	DefaultStorePath = "./data"
	DefaultIndexPath = "./indexes"
)

// Store drivers.
const (
	DriverBolt   = "bolt"
	DriverPebble = "pebble"
)

// Backend drivers.
const (
	DriverBleve         = "bleve"
	DriverElasticsearch = "elasticsearch"
)

// Flags are input options
type Flags struct {
	ConfigFile string `long:"config-file" description:"path to config file (default: ./syndex.conf.yaml)"`

	StorePath           string `long:"store-path" description:"override the object store path"`
	BackendURL          string `long:"backend-url" description:"override the remote backend url"`
	Tenant              string `long:"tenant" description:"restrict the run to one tenant"`
	LoadThreads         int    `long:"load-threads" description:"entity loading workers per type group"`
	BatchSize           int    `long:"batch-size" description:"identifiers per loading batch"`
	TypesInParallel     int    `long:"types-in-parallel" description:"type groups indexed concurrently"`
	DropAndCreateSchema bool   `long:"drop-and-create-schema" description:"drop and recreate every index before indexing"`
	NoPurge             bool   `long:"no-purge" description:"keep existing documents instead of purging before indexing"`
}

// Config outline of the config file
type Config struct {
	Store      Store             `json:"store" yaml:"store"`
	Backend    Backend           `json:"backend" yaml:"backend"`
	Indexing   Indexing          `json:"indexing" yaml:"indexing"`
	Tenant     string            `json:"tenant" yaml:"tenant"`
	Monitoring monitoring.Config `json:"monitoring" yaml:"monitoring"`
	Types      []IndexedType     `json:"types" yaml:"types"`
}

type Store struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
}

func (s Store) Validate() error {
	switch s.Driver {
	case DriverBolt, DriverPebble:
	default:
		return fmt.Errorf("store.driver must be %q or %q", DriverBolt, DriverPebble)
	}
	if s.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	return nil
}

type Backend struct {
	Driver string `json:"driver" yaml:"driver"`

	// Path is the index root of the embedded backend.
	Path string `json:"path" yaml:"path"`

	// URL and the fields below configure the remote backend.
	URL           string        `json:"url" yaml:"url"`
	Username      string        `json:"username" yaml:"username"`
	Password      string        `json:"password" yaml:"password"`
	BulkWorkers   int           `json:"bulk_workers" yaml:"bulk_workers"`
	BulkActions   int           `json:"bulk_actions" yaml:"bulk_actions"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
	TuneForBulk   bool          `json:"tune_for_bulk" yaml:"tune_for_bulk"`
}

func (b Backend) Validate() error {
	switch b.Driver {
	case DriverBleve:
		if b.Path == "" {
			return fmt.Errorf("backend.path must be set for the %q backend", DriverBleve)
		}
	case DriverElasticsearch:
		if b.URL == "" {
			return fmt.Errorf("backend.url must be set for the %q backend", DriverElasticsearch)
		}
	default:
		return fmt.Errorf("backend.driver must be %q or %q", DriverBleve, DriverElasticsearch)
	}
	return nil
}

// Indexing tunes the mass indexing pipeline. Zero values mean the
// built-in defaults.
type Indexing struct {
	QueueCapacity        int   `json:"queue_capacity" yaml:"queue_capacity"`
	ObjectLoadingThreads int   `json:"object_loading_threads" yaml:"object_loading_threads"`
	BatchSize            int   `json:"batch_size" yaml:"batch_size"`
	TypesInParallel      int   `json:"types_in_parallel" yaml:"types_in_parallel"`
	PurgeOnStart         *bool `json:"purge_on_start" yaml:"purge_on_start"`
	MergeAfterPurge      bool  `json:"merge_after_purge" yaml:"merge_after_purge"`
	MergeOnFinish        bool  `json:"merge_on_finish" yaml:"merge_on_finish"`
	DropAndCreateSchema  bool  `json:"drop_and_create_schema" yaml:"drop_and_create_schema"`
	FailureThreshold     int64 `json:"failure_threshold" yaml:"failure_threshold"`
}

func (i Indexing) Validate() error {
	if i.QueueCapacity < 0 {
		return fmt.Errorf("indexing.queue_capacity must not be negative")
	}
	if i.ObjectLoadingThreads < 0 {
		return fmt.Errorf("indexing.object_loading_threads must not be negative")
	}
	if i.BatchSize < 0 {
		return fmt.Errorf("indexing.batch_size must not be negative")
	}
	if i.TypesInParallel < 0 {
		return fmt.Errorf("indexing.types_in_parallel must not be negative")
	}
	if i.FailureThreshold < 0 {
		return fmt.Errorf("indexing.failure_threshold must not be negative")
	}
	return nil
}

// IndexedType declares one type to index and the index it writes to.
// Index defaults to the lowercased type name, remote engines reject
// uppercase index names.
type IndexedType struct {
	Name  string `json:"name" yaml:"name"`
	Index string `json:"index" yaml:"index"`
}

// Validate the configuration
func (c *Config) Validate() error {
	var errs *multierror.Error

	if err := c.Store.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.Backend.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.Indexing.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if len(c.Types) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("types must list at least one indexed type"))
	}
	seen := map[string]bool{}
	for i, t := range c.Types {
		if t.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("types[%d].name must be set", i))
			continue
		}
		if seen[t.Name] {
			errs = multierror.Append(errs, fmt.Errorf("types contains %q multiple times", t.Name))
		}
		seen[t.Name] = true
	}

	if err := errs.ErrorOrNil(); err != nil {
		return configErr(err)
	}
	return nil
}

// Load reads the configuration. The load order for configuration values
// is the following
// 1. Config file
// 2. Environment variables
// 3. Command line flags
// If a config option is specified multiple times in different locations,
// the latest one will be used in this order.
func Load(flags *Flags, logger logrus.FieldLogger) (Config, error) {
	var cfg Config

	configFileName := flags.ConfigFile
	if configFileName == "" {
		configFileName = os.Getenv("SYNDEX_CONFIG_FILE")
	}
	explicit := configFileName != ""
	if configFileName == "" {
		configFileName = DefaultConfigFile
	}

	file, err := os.ReadFile(configFileName)
	if err != nil && explicit {
		return cfg, configErr(errors.Wrapf(err, "read config file %q", configFileName))
	}

	if len(file) > 0 {
		logger.WithField("action", "config_load").
			WithField("config_file_path", configFileName).
			Debug("loaded config file")
		cfg, err = parseConfigFile(file, configFileName)
		if err != nil {
			return cfg, configErr(err)
		}
	}

	if err := FromEnv(&cfg); err != nil {
		return cfg, configErr(err)
	}

	cfg.fromFlags(flags)
	cfg.applyDefaults()

	return cfg, cfg.Validate()
}

func parseConfigFile(file []byte, name string) (Config, error) {
	var config Config

	m := regexp.MustCompile(`.*\.(\w+)$`).FindStringSubmatch(name)
	if len(m) < 2 {
		return config, fmt.Errorf("config file does not have a file ending, got '%s'", name)
	}

	switch m[1] {
	case "json":
		if err := json.Unmarshal(file, &config); err != nil {
			return config, fmt.Errorf("error unmarshalling the json config file: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(file, &config); err != nil {
			return config, fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	default:
		return config, fmt.Errorf("unsupported config file extension '%s', use .yaml or .json", m[1])
	}

	return config, nil
}

// fromFlags parses values from flags given as parameter and overrides values in the config
func (c *Config) fromFlags(flags *Flags) {
	if flags.StorePath != "" {
		c.Store.Path = flags.StorePath
	}
	if flags.BackendURL != "" {
		c.Backend.URL = flags.BackendURL
	}
	if flags.Tenant != "" {
		c.Tenant = flags.Tenant
	}
	if flags.LoadThreads > 0 {
		c.Indexing.ObjectLoadingThreads = flags.LoadThreads
	}
	if flags.BatchSize > 0 {
		c.Indexing.BatchSize = flags.BatchSize
	}
	if flags.TypesInParallel > 0 {
		c.Indexing.TypesInParallel = flags.TypesInParallel
	}
	if flags.DropAndCreateSchema {
		c.Indexing.DropAndCreateSchema = true
	}
	if flags.NoPurge {
		off := false
		c.Indexing.PurgeOnStart = &off
	}
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = DriverBolt
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Backend.Driver == "" {
		c.Backend.Driver = DriverBleve
	}
	if c.Backend.Driver == DriverBleve && c.Backend.Path == "" {
		c.Backend.Path = DefaultIndexPath
	}
	if c.Monitoring.Enabled && c.Monitoring.Port == 0 {
		c.Monitoring.Port = monitoring.DefaultPort
	}
	for i := range c.Types {
		if c.Types[i].Index == "" {
			c.Types[i].Index = strings.ToLower(c.Types[i].Name)
		}
	}
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
