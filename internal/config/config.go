// Package config loads gqlserve settings from flags, environment variables
// and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// GQLSERVE_SERVER_ADDR for server.addr.
const EnvPrefix = "GQLSERVE"

const (
	KeyServerAddr         = "server.addr"
	KeyServerPretty       = "server.pretty"
	KeyServerTimeout      = "server.timeout"
	KeyServerMaxBodyBytes = "server.max-body-bytes"
	KeyServerCORSOrigin   = "server.cors-origin"
	KeyServerGraphiQL     = "server.graphiql"
	KeyIntrospection      = "graphql.introspection"
	KeyCacheSize          = "graphql.cache-size"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"
	KeyOTelEndpoint       = "otel.endpoint"
	KeyOTelService        = "otel.service"
)

type Config struct {
	Server  ServerConfig
	GraphQL GraphQLConfig
	Log     LogConfig
	OTel    OTelConfig
}

type ServerConfig struct {
	Addr         string
	Pretty       bool
	Timeout      time.Duration // 0 means no deadline
	MaxBodyBytes int64
	CORSOrigins  []string
	GraphiQL     bool
}

type GraphQLConfig struct {
	Introspection bool
	CacheSize     int64 // 0 disables the document cache
}

type LogConfig struct {
	Level  string
	Format string
}

type OTelConfig struct {
	Endpoint string // empty disables tracing
	Service  string
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
			GraphiQL:     true,
		},
		GraphQL: GraphQLConfig{Introspection: true, CacheSize: 1000},
		Log:     LogConfig{Level: "info", Format: "json"},
		OTel:    OTelConfig{Service: "gqlserve"},
	}
}

type flagBinding struct {
	key  string
	flag string
}

var bindings = []flagBinding{
	{KeyServerAddr, "addr"},
	{KeyServerPretty, "pretty"},
	{KeyServerTimeout, "timeout"},
	{KeyServerMaxBodyBytes, "max-body-bytes"},
	{KeyServerCORSOrigin, "cors-origin"},
	{KeyServerGraphiQL, "graphiql"},
	{KeyIntrospection, "introspection"},
	{KeyCacheSize, "cache-size"},
	{KeyLogLevel, "log-level"},
	{KeyLogFormat, "log-format"},
	{KeyOTelEndpoint, "otel-endpoint"},
	{KeyOTelService, "otel-service"},
}

// RegisterFlags adds a flag for every setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("addr", d.Server.Addr, "Address to listen on.")
	fs.Bool("pretty", d.Server.Pretty, "Indent JSON responses.")
	fs.Duration("timeout", d.Server.Timeout, "Deadline for a single GraphQL request. 0 disables it.")
	fs.Int64("max-body-bytes", d.Server.MaxBodyBytes, "Largest accepted request body.")
	fs.StringSlice("cors-origin", d.Server.CORSOrigins, "Allowed CORS origins. \"*\" allows any origin.")
	fs.Bool("graphiql", d.Server.GraphiQL, "Serve GraphiQL on /.")
	fs.Bool("introspection", d.GraphQL.Introspection, "Allow __schema and __type queries.")
	fs.Int64("cache-size", d.GraphQL.CacheSize, "Number of validated documents to cache. 0 disables the cache.")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn or error.")
	fs.String("log-format", d.Log.Format, "Log format: json or console.")
	fs.String("otel-endpoint", d.OTel.Endpoint, "OTLP/gRPC endpoint for traces. Empty disables tracing.")
	fs.String("otel-service", d.OTel.Service, "Service name reported with traces.")
}

// Load resolves the settings. Flags that were set on fs win over environment
// variables, which win over configFile, which wins over the defaults.
func Load(fs *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for _, b := range bindings {
			if f := fs.Lookup(b.flag); f != nil {
				if err := v.BindPFlag(b.key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", b.flag, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         v.GetString(KeyServerAddr),
			Pretty:       v.GetBool(KeyServerPretty),
			Timeout:      v.GetDuration(KeyServerTimeout),
			MaxBodyBytes: v.GetInt64(KeyServerMaxBodyBytes),
			CORSOrigins:  v.GetStringSlice(KeyServerCORSOrigin),
			GraphiQL:     v.GetBool(KeyServerGraphiQL),
		},
		GraphQL: GraphQLConfig{
			Introspection: v.GetBool(KeyIntrospection),
			CacheSize:     v.GetInt64(KeyCacheSize),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		OTel: OTelConfig{
			Endpoint: v.GetString(KeyOTelEndpoint),
			Service:  v.GetString(KeyOTelService),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyServerAddr, d.Server.Addr)
	v.SetDefault(KeyServerPretty, d.Server.Pretty)
	v.SetDefault(KeyServerTimeout, d.Server.Timeout)
	v.SetDefault(KeyServerMaxBodyBytes, d.Server.MaxBodyBytes)
	v.SetDefault(KeyServerCORSOrigin, d.Server.CORSOrigins)
	v.SetDefault(KeyServerGraphiQL, d.Server.GraphiQL)
	v.SetDefault(KeyIntrospection, d.GraphQL.Introspection)
	v.SetDefault(KeyCacheSize, d.GraphQL.CacheSize)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyLogFormat, d.Log.Format)
	v.SetDefault(KeyOTelEndpoint, d.OTel.Endpoint)
	v.SetDefault(KeyOTelService, d.OTel.Service)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyServerAddr))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyServerTimeout))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyServerMaxBodyBytes))
	}
	if c.GraphQL.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyCacheSize))
	}
	return errors.Join(errs...)
}
