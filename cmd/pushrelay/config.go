package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/goliatone/go-pushrelay/pkg/config"
)

const envPrefix = "PUSHRELAY"

// loadConfig layers an optional YAML file and PUSHRELAY_* variables over
// the defaults. Nested keys map to env names with "_" (store.redis_addr is
// PUSHRELAY_STORE_REDIS_ADDR).
func loadConfig(path string) (config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range configKeys(reflect.TypeOf(config.Config{}), "") {
		if err := v.BindEnv(key); err != nil {
			return config.Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := config.Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return config.Load(cfg)
}

// configKeys lists the dotted mapstructure keys of t's leaf fields.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if field.Type.Kind() == reflect.Struct {
			keys = append(keys, configKeys(field.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}
