// Package dcconfig loads the engine's process configuration from a TOML
// file and assembles a ready-to-use engine from it.
package dcconfig

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/greenbaum-institute/sdc-docker/blobstore"
	"github.com/greenbaum-institute/sdc-docker/fleet"
	"github.com/greenbaum-institute/sdc-docker/images"
	"github.com/greenbaum-institute/sdc-docker/record"
	"github.com/greenbaum-institute/sdc-docker/recordstore"
	"github.com/greenbaum-institute/sdc-docker/recordstore/boltdb"
	"github.com/greenbaum-institute/sdc-docker/recordstore/memory"
	"github.com/greenbaum-institute/sdc-docker/recordstore/sqlite"
	"github.com/greenbaum-institute/sdc-docker/workflow"
)

// Config is the top-level configuration file layout.
type Config struct {
	// AdminOwner is the datacenter operator's account UUID; it owns
	// synthesized records like the scratch image.
	AdminOwner string `toml:"admin_owner"`
	LogLevel   string `toml:"log_level"`

	RecordStore RecordStore `toml:"record_store"`
	BlobStore   Service     `toml:"blob_store"`
	Fleet       Service     `toml:"fleet"`
	Workflow    Service     `toml:"workflow"`
}

// RecordStore selects and locates the metadata backend.
type RecordStore struct {
	// Backend is "sqlite", "boltdb" or "memory".
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Service locates one of the collaborating datacenter services.
type Service struct {
	URL string `toml:"url"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("loading config %q: %w", path, err)
	}
	if c.RecordStore.Backend == "" {
		c.RecordStore.Backend = "sqlite"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.RecordStore.Backend {
	case "memory":
	case "sqlite", "boltdb":
		if c.RecordStore.Path == "" {
			return fmt.Errorf("record_store.path is required for the %s backend", c.RecordStore.Backend)
		}
	default:
		return fmt.Errorf("unknown record_store.backend %q", c.RecordStore.Backend)
	}
	if c.BlobStore.URL == "" {
		return fmt.Errorf("blob_store.url is required")
	}
	if c.Fleet.URL == "" {
		return fmt.Errorf("fleet.url is required")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// OpenRecordStore opens the configured metadata backend with the standard
// buckets, running any pending migrations.
func (c *Config) OpenRecordStore() (recordstore.Store, error) {
	switch c.RecordStore.Backend {
	case "memory":
		return memory.New(record.Buckets()), nil
	case "boltdb":
		return boltdb.Open(c.RecordStore.Path, record.Buckets())
	default:
		return sqlite.Open(c.RecordStore.Path, record.Buckets())
	}
}

// NewEngine assembles an image engine from the configuration.
func (c *Config) NewEngine() (*images.Engine, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)

	store, err := c.OpenRecordStore()
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.NewClient(c.BlobStore.URL)
	if err != nil {
		return nil, err
	}
	inventory, err := fleet.NewClient(c.Fleet.URL)
	if err != nil {
		return nil, err
	}
	opts := images.Options{
		Store:      store,
		Blobs:      blobs,
		Fleet:      inventory,
		AdminOwner: c.AdminOwner,
	}
	if c.Workflow.URL != "" {
		wf, err := workflow.NewClient(c.Workflow.URL)
		if err != nil {
			return nil, err
		}
		opts.Workflow = wf
		opts.Progress = workflow.NewProgressRegistry()
	}
	return images.New(opts)
}
