package config

import (
	"flag"
	"os"
	"time"

	"artfolio/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-r string   Redis address (e.g., "127.0.0.1:6379")
//	-t int      detail cache TTL, seconds
//	-l int      list cache TTL, seconds
//	-i int      drift repair interval, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - TTL flags are accepted as integers (seconds or minutes) and then
//     converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-r", "-t", "-l", "-i", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")

	cacheDetailTTL := fs.Int("t", int(config.CacheDetailTTL.Seconds()), "detail cache TTL (in seconds)")
	cacheListTTL := fs.Int("l", int(config.CacheListTTL.Seconds()), "list cache TTL (in seconds)")
	repairInterval := fs.Int("i", int(config.RepairInterval.Minutes()), "drift repair interval (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.CacheDetailTTL = time.Duration(*cacheDetailTTL) * time.Second
	config.CacheListTTL = time.Duration(*cacheListTTL) * time.Second
	config.RepairInterval = time.Duration(*repairInterval) * time.Minute
}
