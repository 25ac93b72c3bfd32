package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env
// file in the working directory is loaded first when present; real
// environment variables win over it.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	overlay := map[string]*string{
		"ENDPOINT_ADDR":      &config.EndpointAddr,
		"DATABASE_DSN":       &config.DatabaseDSN,
		"GOOGLE_OAUTH_TOKEN": &config.GoogleOAuthToken,
		"S3_ACCESS_KEY":      &config.S3AccessKey,
		"S3_SECRET_KEY":      &config.S3SecretKey,
		"S3_BUCKET":          &config.S3Bucket,
		"S3_REGION":          &config.S3Region,
		"S3_BASE_ENDPOINT":   &config.S3BaseEndpoint,
		"WORDPRESS_URL":      &config.WordPressURL,
		"WORDPRESS_USER":     &config.WordPressUser,
		"WORDPRESS_PASSWORD": &config.WordPressPassword,
	}
	for name, target := range overlay {
		if value, ok := os.LookupEnv(name); ok {
			*target = value
		}
	}

	if value, ok := os.LookupEnv("IMAGE_QUALITY"); ok {
		quality, err := strconv.Atoi(value)
		if err != nil {
			panic(err)
		}
		config.ImageQuality = quality
	}
	if value, ok := os.LookupEnv("MEDIA_LINK_TTL_SECONDS"); ok {
		seconds, err := strconv.Atoi(value)
		if err != nil {
			panic(err)
		}
		config.MediaLinkTTL = time.Duration(seconds) * time.Second
	}
}
