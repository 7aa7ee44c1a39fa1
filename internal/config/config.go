package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	LogLevel   string           `mapstructure:"log_level"`
}

type PathsConfig struct {
	VocabPath    string `mapstructure:"vocab_path"`
	ManifestPath string `mapstructure:"manifest_path"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
}

type ServerConfig struct {
	ListenAddr      string   `mapstructure:"listen_addr"`
	Workers         int      `mapstructure:"workers"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
	MaxTextBytes    int      `mapstructure:"max_text_bytes"`
	RequestTimeout  int      `mapstructure:"request_timeout"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	GinMode         string   `mapstructure:"gin_mode"`
}

type ClassifierConfig struct {
	Backend      string `mapstructure:"backend"`
	MaxSeqLen    int    `mapstructure:"max_seq_len"`
	Graph        string `mapstructure:"graph"`
	ServingURL   string `mapstructure:"serving_url"`
	ServingModel string `mapstructure:"serving_model"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			VocabPath:    "models/word2idx.json",
			ManifestPath: "models/onnx/manifest.json",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
			ORTAPIVersion:  23,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxTextBytes:    1 << 20,
			RequestTimeout:  30,
			CORSOrigins:     []string{"*"},
			GinMode:         "release",
		},
		Classifier: ClassifierConfig{
			Backend:      BackendONNX,
			MaxSeqLen:    450,
			Graph:        "classifier",
			ServingURL:   "",
			ServingModel: "lstm_ai_human_classifier",
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-vocab-path", defaults.Paths.VocabPath, "Path to vocabulary artifact (.json|.yaml|.txt)")
	fs.String("paths-manifest-path", defaults.Paths.ManifestPath, "Path to ONNX graph manifest.json")
	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")
	fs.Uint32("runtime-ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version expected by the purego binding")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent classifier calls")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum accepted text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request classification deadline in seconds")
	fs.StringSlice("server-cors-origins", defaults.Server.CORSOrigins, "Allowed CORS origins")
	fs.String("server-gin-mode", defaults.Server.GinMode, "Gin mode (debug|release|test)")
	fs.String("backend", defaults.Classifier.Backend, "Classifier backend (onnx|tfserving)")
	fs.Int("max-seq-len", defaults.Classifier.MaxSeqLen, "Fixed classifier input length")
	fs.String("classifier-graph", defaults.Classifier.Graph, "Graph name in the ONNX manifest")
	fs.String("serving-url", defaults.Classifier.ServingURL, "TensorFlow Serving base URL (tfserving backend)")
	fs.String("serving-model", defaults.Classifier.ServingModel, "TensorFlow Serving model name (tfserving backend)")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("AIDETECT")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "AIDETECT_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("aidetect")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)
	v.SetDefault("paths.manifest_path", c.Paths.ManifestPath)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.cors_origins", c.Server.CORSOrigins)
	v.SetDefault("server.gin_mode", c.Server.GinMode)
	v.SetDefault("classifier.backend", c.Classifier.Backend)
	v.SetDefault("classifier.max_seq_len", c.Classifier.MaxSeqLen)
	v.SetDefault("classifier.graph", c.Classifier.Graph)
	v.SetDefault("classifier.serving_url", c.Classifier.ServingURL)
	v.SetDefault("classifier.serving_model", c.Classifier.ServingModel)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.vocab_path", "paths-vocab-path")
	v.RegisterAlias("paths.manifest_path", "paths-manifest-path")
	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")
	v.RegisterAlias("runtime.ort_api_version", "runtime-ort-api-version")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout", "server-shutdown-timeout")
	v.RegisterAlias("server.max_text_bytes", "server-max-text-bytes")
	v.RegisterAlias("server.request_timeout", "server-request-timeout")
	v.RegisterAlias("server.cors_origins", "server-cors-origins")
	v.RegisterAlias("server.gin_mode", "server-gin-mode")
	v.RegisterAlias("classifier.backend", "backend")
	v.RegisterAlias("classifier.max_seq_len", "max-seq-len")
	v.RegisterAlias("classifier.graph", "classifier-graph")
	v.RegisterAlias("classifier.serving_url", "serving-url")
	v.RegisterAlias("classifier.serving_model", "serving-model")
	v.RegisterAlias("log_level", "log-level")
}
