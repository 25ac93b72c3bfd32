package config

import (
	"flag"
	"os"
	"time"

	"github.com/editorial-eng/packsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-g string   Google Drive OAuth token
//	-k string   S3 access key
//	-s string   S3 secret key
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-q int      JPEG quality for snapshotted images
//	-l int      presigned media link TTL, seconds
//	-w string   WordPress site URL
//	-u string   WordPress user
//	-p string   WordPress password
//
// The function first filters os.Args to only the flags it recognizes
// using flagx.FilterArgs, avoiding collisions with other components.
// The TTL flag is accepted as an integer in seconds and then converted
// to a time.Duration value.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-d", "-g", "-k", "-s", "-b", "-r", "-e", "-q", "-l", "-w", "-u", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.GoogleOAuthToken, "g", config.GoogleOAuthToken, "Google Drive OAuth token")
	fs.StringVar(&config.S3AccessKey, "k", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	imageQuality := fs.Int("q", config.ImageQuality, "JPEG quality for snapshotted images")
	mediaLinkTTL := fs.Int("l", int(config.MediaLinkTTL.Seconds()), "presigned media link TTL (in seconds)")

	fs.StringVar(&config.WordPressURL, "w", config.WordPressURL, "WordPress site URL")
	fs.StringVar(&config.WordPressUser, "u", config.WordPressUser, "WordPress user")
	fs.StringVar(&config.WordPressPassword, "p", config.WordPressPassword, "WordPress password")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ImageQuality = *imageQuality
	config.MediaLinkTTL = time.Duration(*mediaLinkTTL) * time.Second
}
