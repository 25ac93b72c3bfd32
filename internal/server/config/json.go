package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/editorial-eng/packsync/internal/flagx"
)

// JsonConfig is the DTO for reading JSON configuration files. Absent
// fields keep their current value in the target Config.
type JsonConfig struct {
	EndpointAddr      *string `json:"endpoint_addr"`
	DatabaseDSN       *string `json:"database_dsn"`
	GoogleOAuthToken  *string `json:"google_oauth_token"`
	S3AccessKey       *string `json:"s3_access_key"`
	S3SecretKey       *string `json:"s3_secret_key"`
	S3Bucket          *string `json:"s3_bucket"`
	S3Region          *string `json:"s3_region"`
	S3BaseEndpoint    *string `json:"s3_base_endpoint"`
	ImageQuality      *int    `json:"image_quality"`
	MediaLinkTTL      *int    `json:"media_link_ttl_seconds"`
	WordPressURL      *string `json:"wordpress_url"`
	WordPressUser     *string `json:"wordpress_user"`
	WordPressPassword *string `json:"wordpress_password"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. With no flag given,
// nothing is loaded. An unreadable or malformed file panics: a config
// file that was asked for but cannot be used is a startup error.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	overlay := []struct {
		src *string
		dst *string
	}{
		{c.EndpointAddr, &config.EndpointAddr},
		{c.DatabaseDSN, &config.DatabaseDSN},
		{c.GoogleOAuthToken, &config.GoogleOAuthToken},
		{c.S3AccessKey, &config.S3AccessKey},
		{c.S3SecretKey, &config.S3SecretKey},
		{c.S3Bucket, &config.S3Bucket},
		{c.S3Region, &config.S3Region},
		{c.S3BaseEndpoint, &config.S3BaseEndpoint},
		{c.WordPressURL, &config.WordPressURL},
		{c.WordPressUser, &config.WordPressUser},
		{c.WordPressPassword, &config.WordPressPassword},
	}
	for _, o := range overlay {
		if o.src != nil {
			*o.dst = *o.src
		}
	}

	if c.ImageQuality != nil {
		config.ImageQuality = *c.ImageQuality
	}
	if c.MediaLinkTTL != nil {
		config.MediaLinkTTL = time.Duration(*c.MediaLinkTTL) * time.Second
	}
}
