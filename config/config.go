// Configuration for the hookweb server.
//
// A config file is optional. Every value has a
// default and string values starting with $ are read
// from the environment:
//
//	{
//		"listen": "localhost:8547",
//		"store": {"driver": "pg", "pg_url": "$DATABASE_URL"},
//		"dashboard": {"secure_cookies": true},
//		"cache_size": 200
//	}
package config

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/indexsupply/hookgen/wos"
)

const (
	DefaultListen    = "localhost:8547"
	DefaultDriver    = "sqlite"
	DefaultPath      = "hookgen.db"
	DefaultCacheSize = 100
)

var drivers = []string{"sqlite", "pg", "memory"}

type Root struct {
	Listen    string    `json:"listen"`
	Store     Store     `json:"store"`
	Dashboard Dashboard `json:"dashboard"`
	CacheSize int       `json:"cache_size"`
}

type Store struct {
	Driver string        `json:"driver"`
	Path   wos.EnvString `json:"path"`
	PGURL  wos.EnvString `json:"pg_url"`
}

// Returns the connection string for the driver
func (s Store) DSN() string {
	switch s.Driver {
	case "pg":
		return string(s.PGURL)
	case "sqlite":
		return string(s.Path)
	default:
		return ""
	}
}

type Dashboard struct {
	// Send the selection cookie only over https
	SecureCookies bool `json:"secure_cookies"`
}

func Decode(r io.Reader, conf *Root) error {
	if err := json.NewDecoder(r).Decode(conf); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// Reads, decodes and validates the file at path.
// An empty path returns the default config.
func Load(path string) (Root, error) {
	var conf Root
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return conf, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		if err := Decode(f, &conf); err != nil {
			return conf, err
		}
	}
	return conf, ValidateFix(&conf)
}

func ValidateFix(conf *Root) error {
	if conf.Listen == "" {
		conf.Listen = DefaultListen
	}
	if conf.CacheSize == 0 {
		conf.CacheSize = DefaultCacheSize
	}
	if conf.CacheSize < 0 {
		return fmt.Errorf("cache_size must be positive. got: %d", conf.CacheSize)
	}
	if conf.Store.Driver == "" {
		conf.Store.Driver = DefaultDriver
	}
	if !slices.Contains(drivers, conf.Store.Driver) {
		return fmt.Errorf("store driver must be one of: %v. got: %s", drivers, conf.Store.Driver)
	}
	switch conf.Store.Driver {
	case "sqlite":
		if conf.Store.Path == "" {
			conf.Store.Path = DefaultPath
		}
	case "pg":
		if conf.Store.PGURL == "" {
			return fmt.Errorf("pg store requires pg_url")
		}
	}
	return nil
}
