package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/spf13/viper"

	"github.com/rowjay/content-restore/internal/cryptoutil"
)

const (
	envPrefix = "CRESTORE"

	// legacySection is the INI section read by the older Python restore scripts.
	legacySection = "Default"
)

// legacyEnv maps config keys to the SUMO_* variables of the older Python tooling.
// The CRESTORE_ form always wins over the legacy name.
var legacyEnv = map[string]string{
	"service.access_id":  "SUMO_UID",
	"service.access_key": "SUMO_KEY",
	"service.deployment": "SUMO_LOC",
	"service.org_id":     "SUMO_ORG",
	"service.endpoint":   "SUMO_END",
	"restore.tag":        "SUMO_TAG",
}

// Load reads configuration from a file (optionally encrypted), env vars, and defaults.
// CRESTORE_* variables beat SUMO_* ones, and both beat the file.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	for key, legacy := range legacyEnv {
		native := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := vp.BindEnv(key, native, legacy); err != nil {
			return nil, err
		}
	}

	setDefaults(vp)

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
		if isEncryptedPath(resolved) {
			key := os.Getenv("CRESTORE_CONFIG_KEY")
			if key == "" {
				key = vp.GetString("global.config_passphrase")
			}
			if key == "" {
				return nil, errors.New("config file is encrypted but CRESTORE_CONFIG_KEY is not set")
			}
			data, err = decryptConfig(data, key)
			if err != nil {
				return nil, fmt.Errorf("decrypt config: %w", err)
			}
		}
		typ := configTypeFromPath(resolved)
		if typ == "ini" {
			legacy, legacyErr := readLegacy(data)
			if legacyErr != nil {
				return nil, fmt.Errorf("parse config: %w", legacyErr)
			}
			if err := vp.MergeConfigMap(legacy); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else {
			vp.SetConfigType(typ)
			if err := vp.ReadConfig(bytes.NewReader(data)); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

// readLegacy converts the [Default] section of a legacy INI file into
// nested config values.
func readLegacy(data []byte) (map[string]any, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}
	if !file.HasSection(legacySection) {
		return nil, fmt.Errorf("missing [%s] section", legacySection)
	}
	section := file.Section(legacySection)

	out := map[string]any{}
	for key, legacy := range legacyEnv {
		if !section.HasKey(legacy) {
			continue
		}
		group, field, _ := strings.Cut(key, ".")
		values, ok := out[group].(map[string]any)
		if !ok {
			values = map[string]any{}
			out[group] = values
		}
		values[field] = section.Key(legacy).String()
	}
	return out, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("CRESTORE_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"crestore.yaml",
		"crestore.yml",
		"crestore.toml",
		"crestore.json",
		"crestore.ini",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "crestore")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		for _, c := range []string{"crestore.yaml.enc", "crestore.yml.enc", "crestore.toml.enc"} {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(path, ".enc"), ".encrypted")
	switch strings.ToLower(filepath.Ext(base)) {
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	case ".ini", ".cfg":
		return "ini"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "6h")
	vp.SetDefault("global.user_agent", "crestore")
	vp.SetDefault("service.http_timeout", "1m")
	vp.SetDefault("service.admin_mode", false)
	vp.SetDefault("service.overwrite", false)
	vp.SetDefault("backup.compression", "none")
	vp.SetDefault("backup.encryption", false)
	vp.SetDefault("restore.tag", "sumologic-restore")
	vp.SetDefault("restore.restore_point", "")
	vp.SetDefault("restore.parent_id", "")
	vp.SetDefault("restore.dry_run", false)
	vp.SetDefault("restore.upload_audit", false)
	vp.SetDefault("restore.rate_interval", "500ms")
	vp.SetDefault("restore.rate_burst", 1)
	vp.SetDefault("restore.poll_interval", "500ms")
	vp.SetDefault("restore.poll_timeout", "30m")
	vp.SetDefault("restore.audit_dir", "/var/tmp")
	vp.SetDefault("restore.audit_prefix", "restores")
	vp.SetDefault("storage.backend", "local")
	vp.SetDefault("storage.local.path", ".")
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 6 * time.Hour
	}
	if cfg.Restore.Tag == "" {
		cfg.Restore.Tag = "sumologic-restore"
	}
	if cfg.Restore.RateBurst < 1 {
		cfg.Restore.RateBurst = 1
	}
	if cfg.Restore.PollInterval == 0 {
		cfg.Restore.PollInterval = 500 * time.Millisecond
	}
	cfg.Backup.Compression = strings.ToLower(cfg.Backup.Compression)
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
}

func expandEnv(cfg *Config) {
	cfg.Service.AccessID = os.ExpandEnv(cfg.Service.AccessID)
	cfg.Service.AccessKey = os.ExpandEnv(cfg.Service.AccessKey)
	cfg.Backup.EncryptionKey = os.ExpandEnv(cfg.Backup.EncryptionKey)
	cfg.Storage.S3.AccessKey = os.ExpandEnv(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = os.ExpandEnv(cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.SessionToken = os.ExpandEnv(cfg.Storage.S3.SessionToken)
	cfg.Notifications = expandNotificationEnv(cfg.Notifications)
}

func expandNotificationEnv(cfg NotificationsConfig) NotificationsConfig {
	for i := range cfg.Webhooks {
		cfg.Webhooks[i].URL = os.ExpandEnv(cfg.Webhooks[i].URL)
	}
	for i := range cfg.Mattermost {
		cfg.Mattermost[i].URL = os.ExpandEnv(cfg.Mattermost[i].URL)
	}
	for i := range cfg.Matrix {
		cfg.Matrix[i].ServerURL = os.ExpandEnv(cfg.Matrix[i].ServerURL)
		cfg.Matrix[i].AccessToken = os.ExpandEnv(cfg.Matrix[i].AccessToken)
		cfg.Matrix[i].RoomID = os.ExpandEnv(cfg.Matrix[i].RoomID)
	}
	return cfg
}

func decryptConfig(ciphertext []byte, key string) ([]byte, error) {
	parsed, err := cryptoutil.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return cryptoutil.DecryptConfig(ciphertext, parsed)
}
