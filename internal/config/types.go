package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Service       ServiceConfig       `mapstructure:"service"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Restore       RestoreConfig       `mapstructure:"restore"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	Verbosity        int           `mapstructure:"verbosity"`
	LockFile         string        `mapstructure:"lock_file"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase string        `mapstructure:"config_passphrase"` // optional; may come from env
	UserAgent        string        `mapstructure:"user_agent"`
}

// ServiceConfig locates and authenticates against the content service.
type ServiceConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`   // full API base, e.g. https://api.us2.sumologic.com/api
	Deployment  string        `mapstructure:"deployment"` // us1, us2, eu, au, ...
	AccessID    string        `mapstructure:"access_id"`
	AccessKey   string        `mapstructure:"access_key"`
	OrgID       string        `mapstructure:"org_id"`
	AdminMode   bool          `mapstructure:"admin_mode"`
	Overwrite   bool          `mapstructure:"overwrite"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// BackupConfig describes how the backup being restored was written.
type BackupConfig struct {
	Compression   string `mapstructure:"compression"` // none, gzip, zstd
	Encryption    bool   `mapstructure:"encryption"`
	EncryptionKey string `mapstructure:"encryption_key"`
	ManifestKey   string `mapstructure:"manifest_key"`
	ContentPrefix string `mapstructure:"content_prefix"`
}

type RestoreConfig struct {
	Tag            string        `mapstructure:"tag"`
	RestorePoint   string        `mapstructure:"restore_point"` // overrides <tag>.<date>.<time>
	ParentID       string        `mapstructure:"parent_id"`     // defaults to the personal folder
	DryRun         bool          `mapstructure:"dry_run"`
	RateInterval   time.Duration `mapstructure:"rate_interval"`
	RateBurst      int           `mapstructure:"rate_burst"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollTimeout    time.Duration `mapstructure:"poll_timeout"` // 0 waits forever
	AuditDir       string        `mapstructure:"audit_dir"`
	UploadAudit    bool          `mapstructure:"upload_audit"`
	AuditPrefix    string        `mapstructure:"audit_prefix"`
	AuditRetention Retention     `mapstructure:"audit_retention"`
}

type Retention struct {
	KeepLast int `mapstructure:"keep_last"`
	KeepDays int `mapstructure:"keep_days"`
}

type StorageConfig struct {
	Backend string     `mapstructure:"backend"` // local, s3
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
	Prefix  string     `mapstructure:"prefix"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	SessionToken    string `mapstructure:"session_token"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

type NotificationsConfig struct {
	Webhooks   []WebhookConfig  `mapstructure:"webhooks"`
	Mattermost []MattermostHook `mapstructure:"mattermost"`
	Matrix     []MatrixConfig   `mapstructure:"matrix"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MattermostHook struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MatrixConfig struct {
	Name        string `mapstructure:"name"`
	ServerURL   string `mapstructure:"server_url"`
	AccessToken string `mapstructure:"access_token"`
	RoomID      string `mapstructure:"room_id"`
}
