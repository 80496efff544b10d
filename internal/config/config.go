// Package config reads generator settings from apigen.yaml, APIGEN_* environment variables and
// command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/wham/apigen/internal/codegen"
	"github.com/wham/apigen/internal/loader"
	"github.com/wham/apigen/internal/logging"
)

const (
	KeyNamespace    = "namespace"
	KeyOutputBase   = "output_base"
	KeyServiceClass = "service_class"
	KeyDumpGuard    = "dump_guard"
	KeyLogMacro     = "log_macro"
	KeyLogTag       = "log_tag"
	KeyParser       = "parser"
	KeyImportPaths  = "import_paths"
	KeyProtoc       = "protoc"
)

// Keys lists every setting in the order they are documented.
var Keys = []string{
	KeyNamespace, KeyOutputBase, KeyServiceClass, KeyDumpGuard, KeyLogMacro, KeyLogTag,
	KeyParser, KeyImportPaths, KeyProtoc,
}

type Config struct {
	Namespace    string   `mapstructure:"namespace"`
	OutputBase   string   `mapstructure:"output_base"`
	ServiceClass string   `mapstructure:"service_class"`
	DumpGuard    string   `mapstructure:"dump_guard"`
	LogMacro     string   `mapstructure:"log_macro"`
	LogTag       string   `mapstructure:"log_tag"`
	Parser       string   `mapstructure:"parser"`
	ImportPaths  []string `mapstructure:"import_paths"`
	Protoc       string   `mapstructure:"protoc"`
}

// New returns a viper instance with defaults and environment lookup set up. configFile overrides
// the search for apigen.yaml in the working directory.
func New(configFile string) *viper.Viper {
	v := viper.New()

	d := codegen.DefaultOptions()
	v.SetDefault(KeyNamespace, d.Namespace)
	v.SetDefault(KeyOutputBase, d.OutputBase)
	v.SetDefault(KeyServiceClass, d.ServiceClass)
	v.SetDefault(KeyDumpGuard, d.DumpGuard)
	v.SetDefault(KeyLogMacro, d.LogMacro)
	v.SetDefault(KeyLogTag, d.LogTag)
	v.SetDefault(KeyParser, string(loader.ParserProtoc))
	v.SetDefault(KeyImportPaths, []string{})
	v.SetDefault(KeyProtoc, "")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("apigen")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("APIGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file if there is one and returns the normalized, validated settings.
func Load(v *viper.Viper, logger *logging.Logger) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.Debug("No apigen.yaml found, using defaults")
	} else {
		logger.Debug("Loaded configuration", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&c, logger)
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func normalize(c *Config, logger *logging.Logger) {
	set := func(key string, field *string, value string) {
		if *field != value {
			logger.Debug(fmt.Sprintf("%s normalized from %q to %q", key, *field, value))
			*field = value
		}
	}
	set(KeyNamespace, &c.Namespace, strings.Trim(strings.TrimSpace(c.Namespace), ":"))
	set(KeyOutputBase, &c.OutputBase, strings.TrimSuffix(strings.TrimSpace(c.OutputBase), ".h"))
	set(KeyParser, &c.Parser, strings.ToLower(strings.TrimSpace(c.Parser)))

	var paths []string
	for _, p := range c.ImportPaths {
		for _, part := range strings.Split(p, ",") {
			if part = strings.TrimSpace(part); part != "" {
				paths = append(paths, part)
			}
		}
	}
	c.ImportPaths = paths
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var fileBase = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func validate(c *Config) error {
	var errs []error
	for _, segment := range strings.Split(c.Namespace, "::") {
		if !identifier.MatchString(segment) {
			errs = append(errs, fmt.Errorf("%s %q: segment %q is not a C++ identifier", KeyNamespace, c.Namespace, segment))
			break
		}
	}
	for _, kv := range [][2]string{
		{KeyServiceClass, c.ServiceClass},
		{KeyDumpGuard, c.DumpGuard},
		{KeyLogMacro, c.LogMacro},
	} {
		if !identifier.MatchString(kv[1]) {
			errs = append(errs, fmt.Errorf("%s %q is not a C++ identifier", kv[0], kv[1]))
		}
	}
	if !fileBase.MatchString(c.OutputBase) {
		errs = append(errs, fmt.Errorf("%s %q must be a plain file name", KeyOutputBase, c.OutputBase))
	}
	switch loader.Parser(c.Parser) {
	case loader.ParserProtoc, loader.ParserBuiltin:
	default:
		errs = append(errs, fmt.Errorf("%s %q is not supported, use %s or %s", KeyParser, c.Parser, loader.ParserProtoc, loader.ParserBuiltin))
	}
	return errors.Join(errs...)
}

func (c *Config) Codegen() codegen.Options {
	return codegen.Options{
		Namespace:    c.Namespace,
		OutputBase:   c.OutputBase,
		ServiceClass: c.ServiceClass,
		DumpGuard:    c.DumpGuard,
		LogMacro:     c.LogMacro,
		LogTag:       c.LogTag,
	}
}

func (c *Config) Loader() loader.Options {
	return loader.Options{
		Parser:      loader.Parser(c.Parser),
		ImportPaths: c.ImportPaths,
		Protoc:      c.Protoc,
	}
}

// ApplyParameter sets the keys of a protoc plugin parameter string, "key=value,key=value".
// Import paths in a parameter are separated by ':'.
func ApplyParameter(v *viper.Viper, parameter string) error {
	known := make(map[string]bool, len(Keys))
	for _, k := range Keys {
		known[k] = true
	}
	for _, pair := range strings.Split(parameter, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("parameter %q is not key=value", pair)
		}
		key = strings.TrimSpace(key)
		if !known[key] {
			return fmt.Errorf("unknown parameter %q", key)
		}
		if key == KeyImportPaths {
			v.Set(key, strings.Split(value, ":"))
			continue
		}
		v.Set(key, strings.TrimSpace(value))
	}
	return nil
}
