package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      App       `yaml:"app"`
	Build    Build     `yaml:"build"`
	Variants []Variant `yaml:"variants"`
	Warmups  int       `yaml:"warmups"`
	Runs     int       `yaml:"runs"`
	Timeouts Timeouts  `yaml:"timeouts"`
	Results  Results   `yaml:"results"`
}

// App describes the measured web application as the engine sees it: a base
// URL it will eventually listen on and the request sequence used to generate
// load against it.
type App struct {
	BaseURL        string   `yaml:"base_url"`
	Paths          []string `yaml:"paths"`
	RequestDelayMS int      `yaml:"request_delay_ms"`
}

type Build struct {
	System string `yaml:"system"` // gradle or maven
	Dir    string `yaml:"dir"`
	Jar    string `yaml:"jar"`    // relative to dir; per-buildsystem default
	Native string `yaml:"native"` // native binary, relative to dir
}

// JarPath is the application JAR relative to Dir, defaulting to the build
// system's conventional output location.
func (b Build) JarPath() string {
	if b.Jar != "" {
		return b.Jar
	}
	if b.System == "maven" {
		return "target/app.jar"
	}
	return "build/libs/app.jar"
}

// NativePath is the native-image binary relative to Dir.
func (b Build) NativePath() string {
	if b.Native != "" {
		return b.Native
	}
	if b.System == "maven" {
		return "target/app"
	}
	return "build/native/nativeCompile/app"
}

type Variant struct {
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"` // jvm, cds, aotcache, crac, native
	JavaVersion   string   `yaml:"java_version"`
	ExtraFlags    []string `yaml:"extra_flags"`
	Archive       string   `yaml:"archive"`        // cds: .jsa path
	Cache         string   `yaml:"cache"`          // aotcache: .aot path
	CheckpointDir string   `yaml:"checkpoint_dir"` // crac: checkpoint directory
	Sudo          bool     `yaml:"sudo"`           // crac: CRIU needs privileges
	GraceMS       int      `yaml:"grace_ms"`       // SIGTERM grace before SIGKILL
}

type Timeouts struct {
	ReadySeconds      int `yaml:"ready_s"`
	HTTPReadySeconds  int `yaml:"http_ready_s"`
	TrainSeconds      int `yaml:"train_s"`
	CheckpointSeconds int `yaml:"checkpoint_s"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

var knownKinds = map[string]bool{
	"jvm":      true,
	"cds":      true,
	"aotcache": true,
	"crac":     true,
	"native":   true,
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:8080"
	}
	if len(cfg.App.Paths) == 0 {
		cfg.App.Paths = []string{"/"}
	}
	if cfg.App.RequestDelayMS <= 0 {
		cfg.App.RequestDelayMS = 250
	}
	switch cfg.Build.System {
	case "":
		cfg.Build.System = "gradle"
	case "gradle", "maven":
	default:
		return fmt.Errorf("build.system must be gradle or maven, got %q", cfg.Build.System)
	}
	if len(cfg.Variants) == 0 {
		return fmt.Errorf("no variants defined")
	}
	seen := map[string]bool{}
	for i := range cfg.Variants {
		v := &cfg.Variants[i]
		if v.Name == "" {
			return fmt.Errorf("variant %d: name is required", i)
		}
		if seen[v.Name] {
			return fmt.Errorf("variant %q: duplicate name", v.Name)
		}
		seen[v.Name] = true
		if v.Kind == "" {
			v.Kind = "jvm"
		}
		if !knownKinds[v.Kind] {
			return fmt.Errorf("variant %q: unknown kind %q", v.Name, v.Kind)
		}
		if v.Kind == "cds" && v.Archive == "" {
			v.Archive = fmt.Sprintf("work/%s/app.jsa", v.Name)
		}
		if v.Kind == "aotcache" && v.Cache == "" {
			v.Cache = fmt.Sprintf("work/%s/app.aot", v.Name)
		}
		if v.Kind == "crac" && v.CheckpointDir == "" {
			v.CheckpointDir = fmt.Sprintf("work/%s/checkpoint", v.Name)
		}
		if v.GraceMS <= 0 {
			v.GraceMS = 1500
		}
	}
	if cfg.Warmups < 0 {
		return fmt.Errorf("warmups must not be negative")
	}
	if cfg.Runs < 1 {
		cfg.Runs = 5
	}
	if cfg.Timeouts.ReadySeconds <= 0 {
		cfg.Timeouts.ReadySeconds = 45
	}
	if cfg.Timeouts.HTTPReadySeconds <= 0 {
		cfg.Timeouts.HTTPReadySeconds = 10
	}
	if cfg.Timeouts.TrainSeconds <= 0 {
		cfg.Timeouts.TrainSeconds = 60
	}
	if cfg.Timeouts.CheckpointSeconds <= 0 {
		cfg.Timeouts.CheckpointSeconds = 60
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return nil
}
