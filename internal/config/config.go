package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// Config описывает настройки демона.
type Config struct {
	Agent struct {
		LogLevel string `yaml:"log_level"`
	} `yaml:"agent"`
	Socket struct {
		Path        string `yaml:"path"`
		Permissions string `yaml:"permissions"`
		ReadBuffer  int    `yaml:"read_buffer"`
	} `yaml:"socket"`
	Ryzenadj struct {
		Path     string `yaml:"path"`
		HelpFlag string `yaml:"help_flag"`
	} `yaml:"ryzenadj"`
	Host struct {
		SupportedDevices []string `yaml:"supported_devices"`
		SkipCheck        bool     `yaml:"skip_check"`
	} `yaml:"host"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Watchdog struct {
		Enabled         bool     `yaml:"enabled"`
		TargetTctl      int      `yaml:"target_tctl"`
		IntervalMS      int      `yaml:"interval_ms"`
		ExcludedDevices []string `yaml:"excluded_devices"`
	} `yaml:"watchdog"`
	Shutdown struct {
		TimeoutS int `yaml:"timeout_s"`
	} `yaml:"shutdown"`
}

// Default возвращает встроенную конфигурацию.
func Default() Config {
	var cfg Config
	cfg.Agent.LogLevel = "info"
	cfg.Socket.Path = "/tmp/ryzenadj_socket"
	cfg.Socket.Permissions = "0666"
	cfg.Socket.ReadBuffer = 4096
	cfg.Ryzenadj.Path = "/usr/bin/ryzenadj"
	cfg.Ryzenadj.HelpFlag = "-h"
	cfg.SQLite.Path = "/var/lib/ryzenadjd/state.db"
	cfg.Watchdog.Enabled = false
	cfg.Watchdog.TargetTctl = 95
	cfg.Watchdog.IntervalMS = 500
	cfg.Watchdog.ExcludedDevices = []string{"AMD Ryzen 5 5560U with Radeon Graphics"}
	cfg.Shutdown.TimeoutS = 5
	return cfg
}

// Load читает YAML-файл поверх значений по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- config path comes from the operator.
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("config file is empty")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
