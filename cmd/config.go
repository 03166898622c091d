package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-siard/internal/dialect"
	"db-siard/internal/engine"
	"db-siard/internal/failure"
	"db-siard/internal/filter/merkle"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Active bool   `mapstructure:"active"`
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, failure.Configuration("failed to parse databases config: %v", err)
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, failure.Configuration("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, failure.Configuration("multiple active databases found (only one can be active)")
	}
	if activeConfig.DSN == "" {
		return nil, failure.Configuration("database %q has no dsn", activeConfig.Name)
	}

	return activeConfig, nil
}

// connection is an open, pinged handle on the active database.
type connection struct {
	Config  *DBConfig
	DB      *sql.DB
	Dialect dialect.Dialect
}

func openActive(ctx context.Context) (*connection, error) {
	config, err := GetActiveDBConfig()
	if err != nil {
		return nil, err
	}
	d, err := dialect.Lookup(config.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), config.DSN)
	if err != nil {
		return nil, failure.Configuration("failed to open db: %v", err)
	}
	if strings.Contains(config.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, failure.Operation("connect", failure.Normalize(d, err))
	}

	fmt.Printf("🦅 Connected to %s (%s)\n", config.Name, d.Name())
	return &connection{Config: config, DB: db, Dialect: d}, nil
}

func setDefaults() {
	viper.SetDefault("archive.compression", "deflate")
	viper.SetDefault("archive.max_files_per_folder", 0)
	viper.SetDefault("archive.clob_threshold", 0)
	viper.SetDefault("archive.blob_threshold", 0)
	viper.SetDefault("archive.external_lobs", false)
	viper.SetDefault("archive.progress_every", 0)

	viper.SetDefault("merkle.enabled", false)
	viper.SetDefault("merkle.algorithm", string(merkle.BLAKE3))
	viper.SetDefault("merkle.output", "")

	viper.SetDefault("validation.parallel", false)
	viper.SetDefault("validation.allowed_udts", "")
	viper.SetDefault("validation.report_format", "text")
}

// archiveSettings reads the archive.* keys. Zero values select the
// archive package defaults.
type archiveSettings struct {
	Compression       string
	MaxFilesPerFolder int
	CLOBThreshold     int
	BLOBThreshold     int
	ExternalLOBs      bool
	ProgressEvery     int64
}

func loadArchiveSettings() archiveSettings {
	return archiveSettings{
		Compression:       viper.GetString("archive.compression"),
		MaxFilesPerFolder: viper.GetInt("archive.max_files_per_folder"),
		CLOBThreshold:     viper.GetInt("archive.clob_threshold"),
		BLOBThreshold:     viper.GetInt("archive.blob_threshold"),
		ExternalLOBs:      viper.GetBool("archive.external_lobs"),
		ProgressEvery:     viper.GetInt64("archive.progress_every"),
	}
}

func (s archiveSettings) job(output string) engine.ExportJob {
	return engine.ExportJob{
		Output:            output,
		Compression:       s.Compression,
		MaxFilesPerFolder: s.MaxFilesPerFolder,
		CLOBThreshold:     s.CLOBThreshold,
		BLOBThreshold:     s.BLOBThreshold,
		ExternalLOBs:      s.ExternalLOBs,
		ProgressEvery:     s.ProgressEvery,
		Logger:            logger,
	}
}

func loadDescriptor() (engine.Descriptor, error) {
	var d engine.Descriptor
	if err := viper.UnmarshalKey("descriptor", &d); err != nil {
		return d, failure.Configuration("failed to parse descriptor config: %v", err)
	}
	return d, nil
}

// merkleTree returns a tree when merkle.enabled is set, nil otherwise.
func merkleTree() (*merkle.Tree, error) {
	if !viper.GetBool("merkle.enabled") {
		return nil, nil
	}
	alg, err := merkle.ParseAlgorithm(viper.GetString("merkle.algorithm"))
	if err != nil {
		return nil, err
	}
	return merkle.New(merkle.Options{Algorithm: alg}), nil
}
