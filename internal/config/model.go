// internal/config/model.go
//
// Typed configuration model.
//
// The loader fills these structs from three layers, highest precedence last:
//
//   - optional `conf/.env`,
//   - `conf/config.yaml`,
//   - `QUIRE_`-prefixed environment variables (`__` maps to ".").
//
// Struct tags use `koanf:"…"`; validation runs right after unmarshal so the
// binary never starts with a half-filled tree.

package config

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

// Database selects the gorm dialector and its DSN.
type Database struct {
	Driver       string `koanf:"driver" validate:"required,oneof=sqlite postgres mysql"`
	DSN          string `koanf:"dsn" validate:"required"`
	SlowQueryMS  int    `koanf:"slow_query_ms" validate:"gte=0"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"gte=0"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// Log controls the zap logger.
type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	Tee   bool   `koanf:"tee"`
}

// Import tunes bulk imports.
type Import struct {
	BatchSize        int  `koanf:"batch_size" validate:"min=1,max=1000"`
	Workers          int  `koanf:"workers"    validate:"min=1,max=64"`
	StrictReferences bool `koanf:"strict_references"`
	MaxErrors        int  `koanf:"max_errors" validate:"min=1"`
}

// Render tunes the markdown pipeline.
type Render struct {
	Minify bool `koanf:"minify"`
}

// Schema tunes the collection registry.
type Schema struct {
	RequireDistinctPatterns bool `koanf:"require_distinct_patterns"`
}

// Scheduler controls timed publishing.
type Scheduler struct {
	Enabled bool   `koanf:"enabled"`
	Spec    string `koanf:"spec" validate:"required_if=Enabled true"`
}

// Paths is resolved at runtime and never read from files.
type Paths struct {
	Root string
}

// Config is the immutable aggregate returned by Load.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	Log       Log       `koanf:"log"`
	Import    Import    `koanf:"import"`
	Render    Render    `koanf:"render"`
	Schema    Schema    `koanf:"schema"`
	Scheduler Scheduler `koanf:"scheduler"`
	Paths     Paths     `koanf:"-"`
}

// Default returns the values used when neither YAML nor env set a key.
func Default() Config {
	return Config{
		HTTP:      HTTP{ListenAddr: ":37371"},
		Database:  Database{Driver: "sqlite", DSN: "quire.db", SlowQueryMS: 300, AutoMigrate: true},
		Log:       Log{Dir: "logs", Level: "info", Tee: true},
		Import:    Import{BatchSize: 50, Workers: 4, MaxErrors: 100},
		Schema:    Schema{RequireDistinctPatterns: true},
		Scheduler: Scheduler{Enabled: true, Spec: "@every 1m"},
	}
}
