// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"gopkg.in/ini.v1"
)

const (
	DbTypeMemory     string = "memory"
	DbTypePostgresql string = "postgresql"

	ProviderMock       string = "mock"
	ProviderElevenLabs string = "elevenlabs"
)

type Config struct {
	BaseDir    string
	ConfigFile string
	Listen     string

	DbType     string
	DbHost     string
	DbPort     uint
	DbName     string
	DbUsername string
	DbPassword string

	Provider          string
	ApiKey            string
	ApiBaseUrl        string
	Model             string
	Language          string
	CallTimeoutSec    float64
	MaxRetries        int
	RetryBaseDelaySec float64
	MaxConcurrent     int

	TargetDuration      float64
	MinChunkDuration    float64
	MinSilenceDuration  float64
	SilenceThresholdDb  float64
	SilenceDetectorMode string

	WatchDir         string
	WatchDelaySec    float64
	WatchDeleteAfter bool

	EnableDebugLog bool

	daemon *Daemon
}

func NewConfig() *Config {
	var (
		config        = &Config{}
		configSave    = flag.Bool("config_save", false, fmt.Sprintf("save configuration to %s", defaultConfigFile))
		serviceAction = flag.String("service", "", "service command, one of start, stop, restart, install, uninstall")
		version       = flag.Bool("version", false, "show application version")
	)

	if exe, err := os.Executable(); err == nil {
		if !regexp.MustCompile(`go-build[0-9]+`).Match([]byte(exe)) {
			config.BaseDir = filepath.Dir(exe)
			if !config.isBaseDirWritable() {
				if h, err := os.UserHomeDir(); err == nil {
					config.BaseDir = filepath.Join(h, "Scribeline")
					if _, err := os.Stat(config.BaseDir); os.IsNotExist(err) {
						os.MkdirAll(config.BaseDir, 0770)
					}
				}
			}
		}
	}

	flag.StringVar(&config.BaseDir, "base_dir", config.BaseDir, "base directory where all data will be written")
	flag.StringVar(&config.ConfigFile, "config", defaultConfigFile, "server config file")
	flag.StringVar(&config.Listen, "listen", defaultListen, "listening address")
	flag.StringVar(&config.DbType, "db_type", defaultDbType, "record storage, one of memory, postgresql")
	flag.StringVar(&config.DbHost, "db_host", defaultDbHost, "database host ip or hostname")
	flag.StringVar(&config.DbName, "db_name", "", "database name")
	flag.StringVar(&config.DbPassword, "db_pass", "", "database password")
	flag.UintVar(&config.DbPort, "db_port", defaultDbPort, "database host port")
	flag.StringVar(&config.DbUsername, "db_user", "", "database user name")
	flag.StringVar(&config.Provider, "provider", defaultProvider, "transcription provider, one of mock, elevenlabs")
	flag.StringVar(&config.ApiKey, "api_key", "", "transcription provider api key")
	flag.StringVar(&config.WatchDir, "watch_dir", "", "directory to watch for dropped audio files")
	flag.Parse()

	config.ApiBaseUrl = ""
	config.Model = ""
	config.Language = defaultLanguage
	config.CallTimeoutSec = defaultCallTimeoutSec
	config.MaxRetries = defaultMaxRetries
	config.RetryBaseDelaySec = defaultRetryBaseDelaySec
	config.MaxConcurrent = defaultMaxConcurrent
	config.TargetDuration = defaultTargetDuration
	config.MinChunkDuration = defaultMinChunkDuration
	config.MinSilenceDuration = defaultMinSilenceDuration
	config.SilenceThresholdDb = defaultSilenceThresholdDb
	config.SilenceDetectorMode = defaultSilenceDetectorMode
	config.WatchDelaySec = defaultWatchDelaySec

	if !config.isBaseDirWritable() {
		log.Fatalf("no write permissions in %s", config.BaseDir)
	}

	switch {
	case *configSave:
		if err := config.saveConfig(); err == nil {
			fmt.Printf("%s file created\n", config.ConfigFile)
			os.Exit(0)
		} else {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(-1)
		}

	case *version:
		fmt.Println(Version)
		os.Exit(0)

	default:
		if cfg, err := ini.Load(config.GetConfigFilePath()); err == nil {
			section := cfg.Section("")

			if v := section.Key("listen").String(); len(v) > 0 {
				config.Listen = v
			}

			if v := section.Key("db_type").String(); len(v) > 0 {
				config.DbType = v
			}

			if v := section.Key("db_host").String(); len(v) > 0 {
				config.DbHost = v
			}

			if v := section.Key("db_name").String(); len(v) > 0 {
				config.DbName = v
			}

			if v := section.Key("db_pass").String(); len(v) > 0 {
				config.DbPassword = v
			}

			if v, err := section.Key("db_port").Uint(); err == nil {
				config.DbPort = v
			}

			if v := section.Key("db_user").String(); len(v) > 0 {
				config.DbUsername = v
			}

			if v := section.Key("provider").String(); len(v) > 0 {
				config.Provider = v
			}

			if v := section.Key("api_key").String(); len(v) > 0 {
				config.ApiKey = v
			}

			if v := section.Key("api_base_url").String(); len(v) > 0 {
				config.ApiBaseUrl = v
			}

			if v := section.Key("model").String(); len(v) > 0 {
				config.Model = v
			}

			if v := section.Key("language").String(); len(v) > 0 {
				config.Language = v
			}

			if v, err := section.Key("call_timeout").Float64(); err == nil && v > 0 {
				config.CallTimeoutSec = v
			}

			if v, err := section.Key("max_retries").Int(); err == nil && v >= 0 {
				config.MaxRetries = v
			}

			if v, err := section.Key("retry_base_delay").Float64(); err == nil && v > 0 {
				config.RetryBaseDelaySec = v
			}

			if v, err := section.Key("max_concurrent").Int(); err == nil && v > 0 {
				config.MaxConcurrent = v
			}

			if v, err := section.Key("target_duration").Float64(); err == nil && v > 0 {
				config.TargetDuration = v
			}

			if v, err := section.Key("min_chunk_duration").Float64(); err == nil && v > 0 {
				config.MinChunkDuration = v
			}

			if v, err := section.Key("min_silence_duration").Float64(); err == nil && v > 0 {
				config.MinSilenceDuration = v
			}

			if v, err := section.Key("silence_threshold_db").Float64(); err == nil && v < 0 {
				config.SilenceThresholdDb = v
			}

			if v := section.Key("silence_detector").String(); len(v) > 0 {
				config.SilenceDetectorMode = v
			}

			if v := section.Key("watch_dir").String(); len(v) > 0 {
				config.WatchDir = v
			}

			if v, err := section.Key("watch_delay").Float64(); err == nil && v > 0 {
				config.WatchDelaySec = v
			}

			if v, err := section.Key("watch_delete_after").Bool(); err == nil {
				config.WatchDeleteAfter = v
			}

			if v, err := section.Key("enable_debug_log").Bool(); err == nil {
				config.EnableDebugLog = v
			}
		}

		if config.DbType != DbTypeMemory && config.DbType != DbTypePostgresql {
			fmt.Printf("unknown database type %s (one of memory, postgresql)\n", config.DbType)
			return nil
		}

		if config.Provider != ProviderMock && config.Provider != ProviderElevenLabs {
			fmt.Printf("unknown transcription provider %s (one of mock, elevenlabs)\n", config.Provider)
			return nil
		}
	}

	if *serviceAction != "" {
		daemon, err := NewDaemon()
		if err != nil {
			log.Printf("ERROR: Failed to initialize daemon service: %v", err)
			log.Printf("Daemon operations are not available. Exiting.")
			os.Exit(1)
		}
		config.daemon = daemon.Control(*serviceAction)
	}

	return config
}

func (config *Config) GetConfigFilePath() string {
	return config.GetPath(config.ConfigFile)
}

func (config *Config) GetPath(p string) string {
	if path.IsAbs(p) {
		return p
	}
	return filepath.Join(config.BaseDir, p)
}

func (config *Config) isBaseDirWritable() bool {
	f, err := os.CreateTemp(config.BaseDir, ".writable-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

func (config *Config) saveConfig() error {
	cfg := ini.Empty()
	section := cfg.Section("")

	section.Key("listen").SetValue(config.Listen)
	section.Key("db_type").SetValue(config.DbType)
	section.Key("db_host").SetValue(config.DbHost)
	section.Key("db_port").SetValue(fmt.Sprintf("%d", config.DbPort))
	section.Key("db_name").SetValue(config.DbName)
	section.Key("db_user").SetValue(config.DbUsername)
	section.Key("db_pass").SetValue(config.DbPassword)
	section.Key("provider").SetValue(config.Provider)
	section.Key("api_key").SetValue(config.ApiKey)
	section.Key("language").SetValue(config.Language)
	section.Key("call_timeout").SetValue(fmt.Sprintf("%g", config.CallTimeoutSec))
	section.Key("max_retries").SetValue(fmt.Sprintf("%d", config.MaxRetries))
	section.Key("retry_base_delay").SetValue(fmt.Sprintf("%g", config.RetryBaseDelaySec))
	section.Key("max_concurrent").SetValue(fmt.Sprintf("%d", config.MaxConcurrent))
	section.Key("target_duration").SetValue(fmt.Sprintf("%g", config.TargetDuration))
	section.Key("min_chunk_duration").SetValue(fmt.Sprintf("%g", config.MinChunkDuration))
	section.Key("min_silence_duration").SetValue(fmt.Sprintf("%g", config.MinSilenceDuration))
	section.Key("silence_threshold_db").SetValue(fmt.Sprintf("%g", config.SilenceThresholdDb))
	section.Key("silence_detector").SetValue(config.SilenceDetectorMode)
	section.Key("watch_dir").SetValue(config.WatchDir)
	section.Key("watch_delay").SetValue(fmt.Sprintf("%g", config.WatchDelaySec))
	section.Key("watch_delete_after").SetValue(fmt.Sprintf("%t", config.WatchDeleteAfter))
	section.Key("enable_debug_log").SetValue(fmt.Sprintf("%t", config.EnableDebugLog))

	return cfg.SaveTo(config.GetConfigFilePath())
}
