// Package config loads the usbboot configuration from an optional YAML file,
// USBBOOT_ environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zxhio/usbboot/internal/netboot"
	"github.com/zxhio/usbboot/pkg/netaddr"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix  = "USBBOOT"
	ConfigName = "usbboot"
)

var DefaultSearchPaths = []string{"/etc/usbboot", "."}

const (
	KeyBootDir          = "boot.dir"
	KeyBootSPLFile      = "boot.spl-file"
	KeyBootImageFile    = "boot.image-file"
	KeyBootTerminalStep = "boot.terminal-step"
	KeyNetServerIP      = "netboot.server-ip"
	KeyNetClientIP      = "netboot.client-ip"
	KeyNetNetmask       = "netboot.netmask"
	KeyNetServerName    = "netboot.server-name"
	KeyScanPollInterval = "scan.poll-interval"
	KeyScanAttachDelay  = "scan.attach-delay"
	KeyScanUnplug       = "scan.unplug-timeout"
	KeyScanHotplug      = "scan.hotplug"
	KeyAPIAddr          = "api.addr"
	KeyAPIPprof         = "api.pprof"
	KeyLogFile          = "log.file"
	KeyLogVerbose       = "log.verbose"
)

type Config struct {
	Boot    BootConfig    `mapstructure:"boot" yaml:"boot"`
	Netboot NetbootConfig `mapstructure:"netboot" yaml:"netboot"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`

	// File is the configuration file read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type BootConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir"`
	SPLFile      string `mapstructure:"spl-file" yaml:"spl-file"`
	ImageFile    string `mapstructure:"image-file" yaml:"image-file"`
	TerminalStep int    `mapstructure:"terminal-step" yaml:"terminal-step"`
}

// NetbootConfig holds the addresses handed out on the virtual link.
type NetbootConfig struct {
	ServerIP   netaddr.IPv4Addr `mapstructure:"server-ip" yaml:"server-ip"`
	ClientIP   netaddr.IPv4Addr `mapstructure:"client-ip" yaml:"client-ip"`
	Netmask    netaddr.IPv4Addr `mapstructure:"netmask" yaml:"netmask"`
	ServerName string           `mapstructure:"server-name" yaml:"server-name"`
}

type ScanConfig struct {
	PollInterval  time.Duration `mapstructure:"poll-interval" yaml:"poll-interval"`
	AttachDelay   time.Duration `mapstructure:"attach-delay" yaml:"attach-delay"`
	UnplugTimeout time.Duration `mapstructure:"unplug-timeout" yaml:"unplug-timeout"`
	Hotplug       bool          `mapstructure:"hotplug" yaml:"hotplug"`
}

type APIConfig struct {
	// Addr is the status API listen address, empty disables the API.
	Addr  string `mapstructure:"addr" yaml:"addr"`
	Pprof bool   `mapstructure:"pprof" yaml:"pprof"`
}

type LogConfig struct {
	File    string `mapstructure:"file" yaml:"file"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyBootDir, ".")
	v.SetDefault(KeyBootSPLFile, "u-boot-spl.bin")
	v.SetDefault(KeyBootImageFile, "u-boot.img")
	v.SetDefault(KeyBootTerminalStep, 1124)

	v.SetDefault(KeyNetServerIP, netboot.DefaultServerIP.String())
	v.SetDefault(KeyNetClientIP, netboot.DefaultClientIP.String())
	v.SetDefault(KeyNetNetmask, netboot.DefaultNetmask.String())
	v.SetDefault(KeyNetServerName, netboot.DefaultServerName)

	v.SetDefault(KeyScanPollInterval, "2s")
	v.SetDefault(KeyScanAttachDelay, "500ms")
	v.SetDefault(KeyScanUnplug, "5s")
	v.SetDefault(KeyScanHotplug, true)

	v.SetDefault(KeyAPIAddr, ":9931")
	v.SetDefault(KeyAPIPprof, false)

	v.SetDefault(KeyLogFile, "/var/log/usbboot/usbbootd.log")
	v.SetDefault(KeyLogVerbose, false)
}

type loadOpts struct {
	fs          afero.Fs
	searchPaths []string
	flags       map[string]*pflag.Flag
}

type LoadOpt func(*loadOpts)

func WithFs(fs afero.Fs) LoadOpt {
	return func(o *loadOpts) { o.fs = fs }
}

func WithSearchPaths(paths ...string) LoadOpt {
	return func(o *loadOpts) { o.searchPaths = paths }
}

// WithFlag binds key to flag. The flag wins over file and environment only
// when it was set on the command line.
func WithFlag(key string, flag *pflag.Flag) LoadOpt {
	return func(o *loadOpts) {
		if flag != nil {
			o.flags[key] = flag
		}
	}
}

// Load reads path, or searches DefaultSearchPaths for usbboot.yaml when path
// is empty. A missing file is only an error when path names it.
func Load(path string, opts ...LoadOpt) (*Config, error) {
	o := loadOpts{searchPaths: DefaultSearchPaths, flags: make(map[string]*pflag.Flag)}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	if o.fs != nil {
		v.SetFs(o.fs)
	}
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, flag := range o.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, errors.Wrapf(err, "bind flag %s", flag.Name)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Boot.SPLFile == "" || c.Boot.ImageFile == "" {
		return errors.New("boot file names must not be empty")
	}
	if c.Boot.TerminalStep <= 0 {
		return errors.Errorf("invalid %s: %d", KeyBootTerminalStep, c.Boot.TerminalStep)
	}
	n := c.Netboot
	if n.ServerIP == 0 || n.ClientIP == 0 || n.ServerIP == n.ClientIP {
		return errors.Errorf("invalid netboot addresses: server %s client %s", n.ServerIP, n.ClientIP)
	}
	if !n.ServerIP.SameSubnet(n.ClientIP, n.Netmask) {
		return errors.Errorf("client %s not in server network %s/%s", n.ClientIP, n.ServerIP, n.Netmask)
	}
	if len(n.ServerName) >= netboot.MaxServerName {
		return errors.Errorf("server name longer than %d bytes", netboot.MaxServerName-1)
	}
	if c.Scan.PollInterval <= 0 {
		return errors.Errorf("invalid %s: %s", KeyScanPollInterval, c.Scan.PollInterval)
	}
	if c.Scan.AttachDelay < 0 || c.Scan.UnplugTimeout < 0 {
		return errors.New("scan delays must not be negative")
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	return data, errors.Wrap(err, "yaml.Marshal")
}
