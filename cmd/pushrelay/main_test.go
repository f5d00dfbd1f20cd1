package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-pushrelay/pkg/config"
	"github.com/goliatone/go-pushrelay/pkg/domain"
	"github.com/goliatone/go-pushrelay/pkg/interfaces/logger"
)

func TestLoadConfigLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pushrelay.yaml")
	yaml := `
store:
  driver: memory
  clear_backoff: 250ms
server:
  public_url: http://127.0.0.1:9000/
scanner:
  fps: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("PUSHRELAY_SERVER_ADDR", "0.0.0.0:9000")
	t.Setenv("PUSHRELAY_STORE_CLEAR_RETRIES", "7")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, config.StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.ClearBackoff)
	assert.Equal(t, 7, cfg.Store.ClearRetries)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Server.PublicURL)
	assert.Equal(t, 5, cfg.Scanner.FPS)
	assert.Equal(t, config.Defaults().Relay.ClickRoute, cfg.Relay.ClickRoute)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("PUSHRELAY_STORE_DRIVER", "etcd")
	_, err := loadConfig("")
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigKeysCoverNestedFields(t *testing.T) {
	keys := configKeys(reflectConfigType(), "")
	assert.Contains(t, keys, "store.redis_addr")
	assert.Contains(t, keys, "push.vapid_public_key")
	assert.Contains(t, keys, "logging.file")
	assert.NotContains(t, keys, "store")
}

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:8787":  "ws://127.0.0.1:8787/contexts/ws",
		"https://relay.example/": "wss://relay.example/contexts/ws",
		"http://host/base":       "ws://host/base/contexts/ws",
	}
	for in, want := range cases {
		assert.Equal(t, want, wsURL(in), in)
	}
}

func TestNewLoggerBackends(t *testing.T) {
	var buf bytes.Buffer

	jsonLog := newLogger(config.LoggingConfig{Format: config.LogJSON, Level: "info"}, &buf)
	require.IsType(t, &logger.LogrusLogger{}, jsonLog)
	jsonLog.Info("hello", logger.Field{Key: "k", Value: "v"})
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])

	assert.IsType(t, &logger.BasicLogger{}, newLogger(config.LoggingConfig{Format: config.LogText}, &buf))
	assert.IsType(t, &logger.SlogLogger{}, newLogger(config.LoggingConfig{Format: config.LogPretty}, &buf))
}

func TestParseCommands(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"permission", "grant"})
	require.NoError(t, err)
	assert.Equal(t, "permission grant", kctx.Command())

	kctx, err = parser.Parse([]string{"register", "https://example.com/r"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/r", cli.Register.URL)
	assert.True(t, strings.HasPrefix(kctx.Command(), "register"))
}

func TestAdminCommandsShareFileStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store.Path = filepath.Join(t.TempDir(), "kv.json")
	var out bytes.Buffer
	rt := &runtime{ctx: context.Background(), cfg: cfg, logger: &logger.Nop{}, out: &out}

	require.NoError(t, (&PermissionGrantCmd{}).Run(rt))
	out.Reset()
	require.NoError(t, (&PermissionShowCmd{}).Run(rt))
	assert.Equal(t, string(domain.PermissionGranted)+"\n", out.String())

	require.NoError(t, (&AppendCmd{Text: "first"}).Run(rt))
	require.NoError(t, (&AppendCmd{Text: "second"}).Run(rt))
	out.Reset()
	require.NoError(t, (&EventsCmd{JSON: true}).Run(rt))
	var items []domain.EventItem
	require.NoError(t, json.Unmarshal(out.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Text)

	require.NoError(t, (&ForgetCmd{}).Run(rt))
	out.Reset()
	require.NoError(t, (&EventsCmd{}).Run(rt))
	assert.Equal(t, "no events\n", out.String())
}

func TestRegisterRejectsInvalidURL(t *testing.T) {
	rt := &runtime{ctx: context.Background(), cfg: config.Defaults(), logger: &logger.Nop{}, out: &bytes.Buffer{}}
	require.Error(t, (&RegisterCmd{URL: "not-a-url"}).Run(rt))
}

func reflectConfigType() reflect.Type { return reflect.TypeOf(config.Config{}) }
