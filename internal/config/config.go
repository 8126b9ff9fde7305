// Package config loads bgpmon-filter's configuration, merging the on-disk
// key=value file with CLI flags the way core/config.go merges bgpipe's
// stage flags into koanf, via posflag.Provider.
package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the resolved set of settings spec.md §6 and its supplement
// define. Zero values match the documented defaults after Load returns.
type Config struct {
	ConfigFile string

	Server string
	Port   int

	ListeningPort int

	PrefixFile string

	OutputFile     string
	OutputCompress string

	LogFile  string
	LogLevel int
	Debug    bool

	Daemonize bool
	Stdout    bool

	SubscriberQueueLen int

	KafkaBrokers []string
	KafkaTopic   string

	DebugListen string
}

func defaults() *koanf.Koanf {
	k := koanf.New(".")
	k.Load(confmap{
		"config_file":          "/usr/local/etc/bgpmon-filter.conf",
		"server":               "127.0.0.1",
		"port":                 50001,
		"listening_port":       60000,
		"prefix_file":          "/usr/local/etc/bgpmon-filter-prefixes.conf",
		"output_file":          "",
		"output_compress":      "none",
		"log_file":             "",
		"log_level":            7,
		"debug":                false,
		"daemonize":            false,
		"stdout":               false,
		"subscriber_queue_len": 1024,
		"kafka_brokers":        []string{},
		"kafka_topic":          "",
		"debug_listen":         "",
	}, nil)
	return k
}

// confmap is a minimal koanf.Provider that hands back a static map, used
// only to seed defaults before the file and CLI providers layer on top.
type confmap map[string]interface{}

func (c confmap) ReadBytes() ([]byte, error) { return nil, nil }
func (c confmap) Read() (map[string]interface{}, error) {
	return map[string]interface{}(c), nil
}

// Flags declares the CLI flag set, mirroring core/config.go:addFlags --
// one flag per config key, same names with underscores kept as-is since
// pflag tolerates them.
func Flags(args []string) (*pflag.FlagSet, error) {
	f := pflag.NewFlagSet("bgpmon-filter", pflag.ContinueOnError)
	f.SortFlags = false
	f.String("config_file", "", "path to configuration file")
	f.String("server", "", "upstream BGP monitor host")
	f.Int("port", 0, "upstream BGP monitor port")
	f.Int("listening_port", 0, "local subscriber listening port")
	f.String("prefix_file", "", "rule file path")
	f.String("output_file", "", "append-only output file (empty disables)")
	f.String("output_compress", "", "output file compression: gz/zstd/bz2/none")
	f.String("log_file", "", "log file path (empty logs to stderr)")
	f.Int("log_level", 0, "syslog-style log level, 0-7")
	f.Bool("debug", false, "enable debug logging")
	f.Bool("daemonize", false, "double-fork and detach (not supported in this build; startup fails when set)")
	f.Bool("stdout", false, "echo matching messages to stdout")
	f.Int("subscriber_queue_len", 0, "bounded queue capacity per subscriber")
	f.StringSlice("kafka_brokers", nil, "Kafka seed brokers (enables the Kafka sink if non-empty)")
	f.String("kafka_topic", "", "Kafka topic for the optional fanout sink")
	f.String("debug_listen", "", "address for the debug/metrics HTTP server (empty disables it)")

	if err := f.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Load merges defaults, an optional on-disk config file, then CLI flags,
// in that precedence order -- "all keys are overridable by equivalently
// named CLI flags."
func Load(f *pflag.FlagSet) (*Config, error) {
	k := defaults()

	path, _ := f.GetString("config_file")
	if path == "" {
		path = k.String("config_file")
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), dotenv.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if f.Changed("config_file") {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("load CLI flags: %w", err)
	}

	return &Config{
		ConfigFile:         path,
		Server:              k.String("server"),
		Port:                k.Int("port"),
		ListeningPort:       k.Int("listening_port"),
		PrefixFile:          k.String("prefix_file"),
		OutputFile:          k.String("output_file"),
		OutputCompress:      k.String("output_compress"),
		LogFile:             k.String("log_file"),
		LogLevel:            k.Int("log_level"),
		Debug:               k.Bool("debug"),
		Daemonize:           k.Bool("daemonize"),
		Stdout:              k.Bool("stdout"),
		SubscriberQueueLen:  k.Int("subscriber_queue_len"),
		KafkaBrokers:        k.Strings("kafka_brokers"),
		KafkaTopic:          k.String("kafka_topic"),
		DebugListen:         k.String("debug_listen"),
	}, nil
}
