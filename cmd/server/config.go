package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gogogo1024/filegate"
	"github.com/gogogo1024/filegate/internal/observability"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type configSource string

const (
	sourceDefault configSource = "default"
	sourceFile    configSource = "file"
	sourceEnv     configSource = "env"
	sourceFlag    configSource = "flag"
)

// yamlConfig is a kitex-style YAML config: load into a map, then read values via typed getters.
// It supports hierarchical keys like "server.addr".
type yamlConfig struct {
	data map[interface{}]interface{}
}

func readYAMLConfigFile(path string) (*yamlConfig, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	b, err := io.ReadAll(fd)
	if err != nil {
		return nil, err
	}

	data := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &yamlConfig{data: data}, nil
}

func (yc *yamlConfig) get(path string) (interface{}, bool) {
	if yc == nil || path == "" {
		return nil, false
	}

	var cur interface{} = yc.data
	for _, p := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[interface{}]interface{}:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]interface{}:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// getText returns a scalar value in its textual form; typing happens in decode.
func (yc *yamlConfig) getText(path string) (string, bool, error) {
	v, ok := yc.get(path)
	if !ok {
		return "", false, nil
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return "", true, fmt.Errorf("yaml %s is empty", path)
		}
		return x, true, nil
	case int:
		return strconv.Itoa(x), true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	}
	return "", true, fmt.Errorf("yaml %s must be a scalar, got %T", path, v)
}

type settingKind int

const (
	kindString settingKind = iota
	kindDuration
	kindInt
)

// setting is one configuration value and the places it can come from,
// lowest precedence first: default, YAML key, environment variable, flag.
type setting struct {
	flag    string
	yamlKey string
	envKey  string
	kind    settingKind
	def     string
	usage   string
}

var settings = []setting{
	{"addr", "server.addr", "FILEGATE_ADDR", kindString, ":9002", "listen address"},
	{"root", "server.root", "FILEGATE_ROOT", kindString, ".", "directory served by the dir store"},
	{"max-conns", "server.max_conns", "FILEGATE_MAX_CONNS", kindInt, "0", "concurrent connection cap (0 for unlimited)"},
	{"idle-timeout", "timeouts.idle", "FILEGATE_IDLE_TIMEOUT", kindDuration, "5m", "connection idle timeout (0 to disable)"},
	{"write-timeout", "timeouts.write", "FILEGATE_WRITE_TIMEOUT", kindDuration, "10s", "response write timeout (0 to disable)"},
	{"storage", "storage.kind", "FILEGATE_STORAGE", kindString, "dir", "file store backend: dir or redis"},
	{"redis-addr", "redis.addr", "FILEGATE_REDIS_ADDR", kindString, "localhost:6379", "redis address for the redis store"},
	{"redis-prefix", "redis.key_prefix", "FILEGATE_REDIS_PREFIX", kindString, "filegate:file:", "redis key prefix for stored files"},
	{"log-level", "log.level", "FILEGATE_LOG_LEVEL", kindString, "info", "log level: debug, info, warn, error"},
	{"log-format", "log.format", "FILEGATE_LOG_FORMAT", kindString, "console", "log format: console or json"},
	{"log-file", "log.file", "FILEGATE_LOG_FILE", kindString, "", "also write logs to this rotated file"},
}

type resolvedValue struct {
	raw    string
	source configSource
}

type serverConfig struct {
	addr         string
	root         string
	maxConns     int
	idleTimeout  time.Duration
	writeTimeout time.Duration

	storage     string
	redisAddr   string
	redisPrefix string

	log observability.LogConfig

	sources map[string]configSource

	dotenvPath   string
	dotenvLoaded bool

	configPath   string
	configLoaded bool
}

func loadConfig(args []string) (serverConfig, error) {
	resolved, err := resolveYAML(args)
	if err != nil {
		return serverConfig{}, err
	}

	dotenvPath, dotenvLoaded := loadDotenv(".env")

	values := make(map[string]resolvedValue, len(settings))
	for _, s := range settings {
		v := resolvedValue{raw: s.def, source: sourceDefault}
		if raw, ok, err := resolved.yc.getText(s.yamlKey); err != nil {
			return serverConfig{}, err
		} else if ok {
			v = resolvedValue{raw: raw, source: sourceFile}
		}
		if raw, ok, err := getenvStringStrict(s.envKey); err != nil {
			return serverConfig{}, err
		} else if ok {
			v = resolvedValue{raw: raw, source: sourceEnv}
		}
		values[s.flag] = v
	}

	fs := flag.NewFlagSet("filegate-server", flag.ContinueOnError)
	config := fs.String("config", resolved.path, "path to YAML config file")
	flagVals := make(map[string]*string, len(settings))
	for _, s := range settings {
		flagVals[s.flag] = fs.String(s.flag, values[s.flag].raw, s.usage)
	}
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if p, ok := flagVals[f.Name]; ok {
			values[f.Name] = resolvedValue{raw: *p, source: sourceFlag}
		}
	})

	cfg, err := decode(values)
	if err != nil {
		return serverConfig{}, err
	}

	cfg.configPath = *config
	if abs, err := filepath.Abs(cfg.configPath); err == nil {
		cfg.configPath = abs
	}
	cfg.configLoaded = resolved.loaded
	cfg.dotenvPath = dotenvPath
	cfg.dotenvLoaded = dotenvLoaded
	return cfg, nil
}

func decode(values map[string]resolvedValue) (serverConfig, error) {
	var errs []error
	str := func(name string) string { return values[name].raw }
	dur := func(name string) time.Duration {
		d, err := time.ParseDuration(values[name].raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s (%s): invalid duration: %w", name, values[name].source, err))
		}
		return d
	}
	num := func(name string) int {
		n, err := strconv.Atoi(values[name].raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("%s (%s): want a non-negative integer, got %q", name, values[name].source, values[name].raw))
		}
		return n
	}

	cfg := serverConfig{
		addr:         str("addr"),
		root:         str("root"),
		maxConns:     num("max-conns"),
		idleTimeout:  dur("idle-timeout"),
		writeTimeout: dur("write-timeout"),
		storage:      strings.ToLower(str("storage")),
		redisAddr:    str("redis-addr"),
		redisPrefix:  str("redis-prefix"),
		log: observability.LogConfig{
			Level:  str("log-level"),
			Format: str("log-format"),
			File:   str("log-file"),
		},
		sources: make(map[string]configSource, len(values)),
	}
	for name, v := range values {
		cfg.sources[name] = v.source
	}

	switch cfg.storage {
	case "dir", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage (%s): unknown backend %q (want dir or redis)", values["storage"].source, cfg.storage))
	}
	if _, err := observability.ParseLevel(cfg.log.Level); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

func (c serverConfig) serveOptions() []filegate.ServeOption {
	return []filegate.ServeOption{
		filegate.WithIdleTimeout(c.idleTimeout),
		filegate.WithWriteTimeout(c.writeTimeout),
		filegate.WithMaxConns(c.maxConns),
	}
}

func (c serverConfig) source(name string) configSource {
	if s, ok := c.sources[name]; ok {
		return s
	}
	return sourceDefault
}

type resolvedYAML struct {
	yc     *yamlConfig
	path   string
	loaded bool
}

func resolveYAML(args []string) (resolvedYAML, error) {
	defaultConfigPath := "filegate.yaml"
	configPath, configExplicit := parseConfigPath(args, defaultConfigPath)
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}

	yc, err := readYAMLConfigFile(configPath)
	if err == nil {
		return resolvedYAML{yc: yc, path: configPath, loaded: true}, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		if configExplicit {
			return resolvedYAML{}, err
		}
		// Missing default config is OK.
		return resolvedYAML{yc: nil, path: configPath, loaded: false}, nil
	}
	return resolvedYAML{}, err
}

func loadDotenv(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("load %s error: %v", path, err)
		}
		return path, false
	}
	return path, true
}

func parseConfigPath(args []string, defaultValue string) (string, bool) {
	fs := flag.NewFlagSet("preconfig", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	config := fs.String("config", defaultValue, "path to YAML config file")
	for _, s := range settings {
		fs.String(s.flag, "", "")
	}
	_ = fs.Parse(args)
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	return *config, explicit
}

func getenvStringStrict(key string) (string, bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false, nil
	}
	if v == "" {
		return "", true, fmt.Errorf("env %s is empty", key)
	}
	return v, true, nil
}
