package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/javabinding/errors"
	"github.com/wippyai/javabinding/executor"
)

// Config is the full node configuration.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	JVM      JVMConfig      `toml:"jvm"`
	Runtime  RuntimeConfig  `toml:"runtime"`
	Executor ExecutorConfig `toml:"executor"`
	Database DatabaseConfig `toml:"database"`
}

// ServiceConfig describes the managed service to load.
type ServiceConfig struct {
	// ClassPath is the service classpath; it can differ between nodes.
	ClassPath string `toml:"service_class_path"`
	// ModuleName is the fully qualified service module, shared by all
	// nodes of a network.
	ModuleName string `toml:"module_name"`
}

// JVMConfig holds user arguments for the managed runtime. Arguments are
// written without the leading dash.
type JVMConfig struct {
	ArgsPrepend []string `toml:"args_prepend"`
	ArgsAppend  []string `toml:"args_append"`
	// DebugSocket enables the JDWP agent listening on this address.
	DebugSocket string `toml:"jvm_debug_socket,omitempty"`
}

type RuntimeConfig struct {
	LogConfigPath string `toml:"log_config_path"`
	ArtifactsPath string `toml:"artifacts_path"`
	// Port of the HTTP server of managed services.
	Port int32 `toml:"port"`
	// OverrideSystemLibPath replaces the library path of InternalConfig.
	OverrideSystemLibPath string `toml:"override_system_lib_path,omitempty"`
}

// ExecutorConfig selects the strategy for attaching native threads.
type ExecutorConfig struct {
	Kind executor.Kind `toml:"kind"`
	// AttachLimit is the attach limit of the leaking executor and the
	// worker count of the pool executor. Zero selects the default.
	AttachLimit int `toml:"attach_limit"`
}

// DatabaseConfig locates the node database. An empty path selects an
// in-memory database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// InternalConfig is set by the binary itself and is not user-visible.
type InternalConfig struct {
	SystemClassPath string
	SystemLibPath   string
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Runtime: RuntimeConfig{
			LogConfigPath: "log4j2.xml",
			ArtifactsPath: "artifacts",
			Port:          7000,
		},
		Executor: ExecutorConfig{Kind: executor.KindMain},
	}
}

// Load reads a TOML configuration file. Fields missing from the file keep
// their Default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err,
			fmt.Sprintf("failed to parse %s", path))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(keys).
			Detail("unknown keys in %s: %s", path, strings.Join(keys, ", ")).
			Build()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "failed to create config directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "failed to create config file")
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		_ = f.Close()
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "failed to encode config")
	}
	return f.Close()
}

// Validate checks the configuration without building JVM arguments.
func (c Config) Validate() error {
	if c.Runtime.Port < 0 || c.Runtime.Port > 65535 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Runtime.Port).
			Detail("port %d is out of range", c.Runtime.Port).
			Build()
	}
	switch c.Executor.Kind {
	case "", executor.KindMain, executor.KindLeaking, executor.KindDumb, executor.KindPool:
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Executor.Kind).
			Detail("unknown executor kind %q", c.Executor.Kind).
			Build()
	}
	if c.Executor.AttachLimit < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "attach limit must not be negative")
	}
	for _, args := range [][]string{c.JVM.ArgsPrepend, c.JVM.ArgsAppend} {
		for _, a := range args {
			if _, err := ValidateAndConvert(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// forbiddenPrefixes are JVM parameters set from dedicated options.
var forbiddenPrefixes = []string{
	"Djava.class.path",
	"Djava.library.path",
	"Dlog4j.configurationFile",
}

// ValidateAndConvert rejects parameters that are set internally and adds
// the leading dash to the rest.
func ValidateAndConvert(param string) (string, error) {
	for _, p := range forbiddenPrefixes {
		if strings.HasPrefix(param, p) {
			return "", errors.ForbiddenParameter(param)
		}
	}
	return "-" + param, nil
}

// JVMArgs builds the arguments the managed runtime is started with: user
// prepended arguments, the internal paths, the debug agent and user
// appended arguments, in that order.
func JVMArgs(c Config, internal InternalConfig) ([]string, error) {
	var args []string
	add := func(params []string) error {
		for _, p := range params {
			opt, err := ValidateAndConvert(p)
			if err != nil {
				return err
			}
			args = append(args, opt)
		}
		return nil
	}

	if err := add(c.JVM.ArgsPrepend); err != nil {
		return nil, err
	}

	libPath := internal.SystemLibPath
	if c.Runtime.OverrideSystemLibPath != "" {
		libPath = c.Runtime.OverrideSystemLibPath
	}
	args = append(args,
		"-Djava.library.path="+libPath,
		"-Djava.class.path="+internal.SystemClassPath,
		"-Dlog4j.configurationFile="+c.Runtime.LogConfigPath,
	)

	if c.JVM.DebugSocket != "" {
		args = append(args, "-agentlib:jdwp=transport=dt_socket,server=y,suspend=n,address="+c.JVM.DebugSocket)
	}

	if err := add(c.JVM.ArgsAppend); err != nil {
		return nil, err
	}
	return args, nil
}
