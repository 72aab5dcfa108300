package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	Auth      MAuthConfig      `yaml:"auth"`
	Gateway   MGatewayConfig   `yaml:"gateway"`
	Sessions  MSessionsConfig  `yaml:"sessions"`
	Storage   MStorageConfig   `yaml:"storage"`
	Streaming MStreamingConfig `yaml:"streaming"`
	Events    MEventsConfig    `yaml:"events"`
}

type MAuthConfig struct {
	JWTSecret              string `yaml:"jwt_secret"`
	AccessTokenExpireMin   int    `yaml:"access_token_expire_minutes"`
	RefreshTokenExpireDays int    `yaml:"refresh_token_expire_days"`
	CredentialKey          string `yaml:"credential_key"`
}

type MGatewayConfig struct {
	RootURI        string `yaml:"root_uri"`
	RequestTimeout int    `yaml:"timeout"`
	Source         string `yaml:"source"` // e.g. "WEBAPI"
}

type MSessionsConfig struct {
	ValidityHours int `yaml:"validity_hours"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MStreamingConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MarketHoursOnly     bool   `yaml:"market_hours_only"`
	ExchangeMIC         string `yaml:"exchange_mic"` // ISO 10383, e.g. "xbom"
}

type MEventsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}
