package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/syndex/syndex/usecases/configbase"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those that
// are set
func FromEnv(config *Config) error {
	if v := os.Getenv("SYNDEX_STORE_DRIVER"); v != "" {
		config.Store.Driver = v
	}

	if v := os.Getenv("SYNDEX_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("SYNDEX_BACKEND_DRIVER"); v != "" {
		config.Backend.Driver = v
	}

	if v := os.Getenv("SYNDEX_BACKEND_PATH"); v != "" {
		config.Backend.Path = v
	}

	if v := os.Getenv("SYNDEX_BACKEND_URL"); v != "" {
		config.Backend.URL = v
	}

	if v := os.Getenv("SYNDEX_BACKEND_USERNAME"); v != "" {
		config.Backend.Username = v
	}

	if v := os.Getenv("SYNDEX_BACKEND_PASSWORD"); v != "" {
		config.Backend.Password = v
	}

	if v := os.Getenv("SYNDEX_TENANT"); v != "" {
		config.Tenant = v
	}

	if configbase.Enabled(os.Getenv("PROMETHEUS_MONITORING_ENABLED")) {
		config.Monitoring.Enabled = true

		if v := os.Getenv("PROMETHEUS_MONITORING_PORT"); v != "" {
			asInt, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "parse PROMETHEUS_MONITORING_PORT as int")
			}

			config.Monitoring.Port = asInt
		}
	}

	return nil
}
