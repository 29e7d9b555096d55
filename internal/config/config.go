package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deploykit/site-deploy/internal/types"
)

const (
	// DefaultDownloadDir is where the artifact lands when no override is given.
	DefaultDownloadDir = "/tmp"
	// DefaultExtractDir is where the artifact is unpacked when no override is given.
	DefaultExtractDir = "/tmp/website"
)

// Config holds one run's parameters. Built once at startup, never mutated.
type Config struct {
	SourceBucket string
	SourceFolder string
	DestBucket   string
	DownloadDir  string
	ExtractDir   string
	Cleanup      bool
}

// Parse builds a Config from positional CLI arguments (excluding the program
// name). At least source bucket, source folder and destination bucket are
// required; download dir, extract dir and the cleanup keyword are optional.
func Parse(args []string) (Config, error) {
	if len(args) < 3 {
		return Config{}, types.E(types.KindUsage, "expected at least 3 arguments, got %d", len(args))
	}

	cfg := Config{
		SourceBucket: args[0],
		SourceFolder: args[1],
		DestBucket:   args[2],
		DownloadDir:  DefaultDownloadDir,
		ExtractDir:   DefaultExtractDir,
	}

	if len(args) > 3 {
		cfg.DownloadDir = args[3]
	}
	if len(args) > 4 {
		cfg.ExtractDir = args[4]
	}
	if len(args) > 5 {
		cfg.Cleanup = isCleanKeyword(args[5])
	}

	return cfg, nil
}

// isCleanKeyword reports whether s enables cleanup. Only the two exact forms
// "clean" and "CLEAN" count; anything else is false.
func isCleanKeyword(s string) bool {
	return s == "clean" || s == "CLEAN"
}

// FromEnv builds a Config for Lambda mode, where there is no argv. The source
// bucket and folder come from the triggering S3 event, so only the
// destination side is configured here. DEST_BUCKET is required.
func FromEnv() (Config, error) {
	dest, err := requiredEnv("DEST_BUCKET")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DestBucket:  dest,
		DownloadDir: DefaultDownloadDir,
		ExtractDir:  DefaultExtractDir,
	}

	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("EXTRACT_DIR"); v != "" {
		cfg.ExtractDir = v
	}
	cfg.Cleanup = isCleanKeyword(os.Getenv("CLEANUP"))

	return cfg, nil
}

// Usage returns the CLI help text.
func Usage() string {
	return fmt.Sprintf(`usage: %s <source_bucket> <source_folder> <dest_bucket> [download_dir] [extract_dir] [clean]

  source_bucket   bucket holding the build artifact
  source_folder   folder (key prefix) containing exactly one artifact zip
  dest_bucket     bucket serving the static website
  download_dir    local dir for the fetched artifact (default %s)
  extract_dir     local dir the artifact is unpacked into (default %s)
  clean           pass "clean" to remove local files after a successful deploy
`, filepath.Base(os.Args[0]), DefaultDownloadDir, DefaultExtractDir)
}

// requiredEnv returns the value of an environment variable or an error if not set.
func requiredEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s required", key)
	}
	return v, nil
}
