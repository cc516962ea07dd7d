package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zhinian/blogstore/internal/flagx"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct. The shutdown timeout is expressed
// as an integer number of seconds.
type JsonConfig struct {
	EndpointAddrHTTP       string `json:"endpoint_addr_http"`
	Backend                string `json:"backend"`
	RedisAddr              string `json:"redis_addr"`
	RedisPassword          string `json:"redis_password"`
	RedisDB                int    `json:"redis_db"`
	DatabaseDSN            string `json:"database_dsn"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path is taken from the -c or -config command-line flags.
// If neither is set, no JSON file is loaded and the Config is left as is.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.Backend = c.Backend
	config.RedisAddr = c.RedisAddr
	config.RedisPassword = c.RedisPassword
	config.RedisDB = c.RedisDB
	config.DatabaseDSN = c.DatabaseDSN
	config.ShutdownTimeout = time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
