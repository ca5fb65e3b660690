package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Duration fields use timex.Duration, so both "15m" strings and integer
// nanoseconds are accepted. Absent fields leave Config untouched.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	StorageDriver    string         `json:"storage_driver"`
	DatabaseDSN      string         `json:"database_dsn"`
	AccessSecret     string         `json:"access_secret"`
	RefreshSecret    string         `json:"refresh_secret"`
	Issuer           string         `json:"issuer"`
	Audience         string         `json:"audience"`
	AccessTokenTTL   timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL  timex.Duration `json:"refresh_token_ttl"`
	BcryptRounds     int            `json:"bcrypt_rounds"`
	PurgeInterval    timex.Duration `json:"purge_interval"`
	LogLevel         string         `json:"log_level"`
	LogFormat        string         `json:"log_format"`
	OTLPEndpoint     string         `json:"otlp_endpoint"`
	Environment      string         `json:"environment"`
	AuditS3Bucket    string         `json:"audit_s3_bucket"`
	AuditS3Prefix    string         `json:"audit_s3_prefix"`
	AuditS3Region    string         `json:"audit_s3_region"`
	AuditS3Endpoint  string         `json:"audit_s3_endpoint"`
	AuditS3AccessKey string         `json:"audit_s3_access_key"`
	AuditS3SecretKey string         `json:"audit_s3_secret_key"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without the flag nothing is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

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

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessSecret, c.AccessSecret)
	setString(&config.RefreshSecret, c.RefreshSecret)
	setString(&config.Issuer, c.Issuer)
	setString(&config.Audience, c.Audience)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
	setString(&config.Environment, c.Environment)
	setString(&config.AuditS3Bucket, c.AuditS3Bucket)
	setString(&config.AuditS3Prefix, c.AuditS3Prefix)
	setString(&config.AuditS3Region, c.AuditS3Region)
	setString(&config.AuditS3Endpoint, c.AuditS3Endpoint)
	setString(&config.AuditS3AccessKey, c.AuditS3AccessKey)
	setString(&config.AuditS3SecretKey, c.AuditS3SecretKey)

	if c.AccessTokenTTL.Duration != 0 {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL.Duration != 0 {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.PurgeInterval.Duration != 0 {
		config.PurgeInterval = c.PurgeInterval.Duration
	}
	if c.BcryptRounds != 0 {
		config.BcryptRounds = c.BcryptRounds
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
