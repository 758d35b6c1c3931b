package compilation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/crytic/schlau/compilation/types"
	"github.com/crytic/schlau/logging"
	"github.com/crytic/schlau/logging/colors"
	"github.com/crytic/schlau/utils"
	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

// ArtifactCacheFileName is the name of the database file used to store build artifacts.
const ArtifactCacheFileName = "artifacts.db"

// artifactBucket is the bbolt bucket holding encoded cache entries.
var artifactBucket = []byte("artifacts")

// skippedSourceDirectories are not hashed when computing cache keys. They hold build outputs or VCS data.
var skippedSourceDirectories = []string{"target", ".git", "node_modules"}

// artifactCacheEntry is the persisted form of a cached build.
type artifactCacheEntry struct {
	Artifact *types.BuildArtifact

	// BuiltAt is the build time in Unix seconds.
	BuiltAt int64
}

// ArtifactCache persists build artifacts keyed by a hash of the compiler configuration and its source inputs, so
// unchanged contracts are not rebuilt. It is safe for concurrent use.
type ArtifactCache struct {
	db *bbolt.DB
}

// OpenArtifactCache opens (creating if needed) the artifact cache stored in directory.
func OpenArtifactCache(directory string) (*ArtifactCache, error) {
	if err := utils.MakeDirectory(directory); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}
	db, err := bbolt.Open(filepath.Join(directory, ArtifactCacheFileName), 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "could not open artifact cache")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(artifactBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}
	return &ArtifactCache{db: db}, nil
}

// Close releases the underlying database.
func (c *ArtifactCache) Close() error {
	return c.db.Close()
}

// Get returns the artifact stored under key and the time it was built. The boolean is false on a cache miss.
func (c *ArtifactCache) Get(key string) (*types.BuildArtifact, time.Time, bool, error) {
	var entry artifactCacheEntry
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(artifactBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return cbor.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, time.Time{}, false, errors.Wrap(err, "could not read cached artifact")
	}
	if !found || entry.Artifact == nil {
		return nil, time.Time{}, false, nil
	}
	if err = entry.Artifact.Restore(); err != nil {
		return nil, time.Time{}, false, err
	}
	return entry.Artifact, time.Unix(entry.BuiltAt, 0), true, nil
}

// Put stores an artifact under key, replacing any previous entry.
func (c *ArtifactCache) Put(key string, artifact *types.BuildArtifact) error {
	data, err := cbor.Marshal(artifactCacheEntry{Artifact: artifact, BuiltAt: time.Now().Unix()}, cbor.EncOptions{})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(artifactBucket).Put([]byte(key), data)
	}))
}

// Delete removes the entry stored under key, if any.
func (c *ArtifactCache) Delete(key string) error {
	return errors.WithStack(c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(artifactBucket).Delete([]byte(key))
	}))
}

// ComputeCacheKey hashes the platform identifier, the serialized platform config and every source file reachable from
// the config's target. The target is hashed as a directory if it is one, or else the directory containing it, so
// imported files and crate manifests are covered.
func ComputeCacheKey(config *CompilationConfig) (string, error) {
	platformConfig, err := config.GetPlatformConfig()
	if err != nil {
		return "", err
	}

	sourceRoot := platformConfig.GetTarget()
	if utils.FileExists(sourceRoot) {
		sourceRoot = filepath.Dir(sourceRoot)
	}
	sourceHash, err := utils.HashPath(sourceRoot, skippedSourceDirectories...)
	if err != nil {
		return "", err
	}

	hasher := sha256.New()
	hasher.Write([]byte(config.Platform))
	hasher.Write([]byte{0})
	if config.PlatformConfig != nil {
		hasher.Write(*config.PlatformConfig)
	}
	hasher.Write([]byte{0})
	hasher.Write(sourceHash)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CompileWithCache compiles the configured target, reusing a cached artifact if neither the configuration nor the
// sources changed. A nil cache always compiles. Cache failures are logged and never fail the build.
func CompileWithCache(config *CompilationConfig, cache *ArtifactCache, logger *logging.Logger) (*types.BuildArtifact, string, error) {
	if cache == nil {
		return config.Compile()
	}

	key, err := ComputeCacheKey(config)
	if err != nil {
		logger.Warn("Could not compute artifact cache key, compiling without cache", err)
		return config.Compile()
	}

	artifact, builtAt, found, err := cache.Get(key)
	if err != nil {
		logger.Warn("Discarding unreadable cached artifact", err)
	}
	if found {
		logger.Info(
			colors.Bold, "artifacts: ", colors.Reset,
			"reusing ", colors.YellowBold, "cached", colors.Reset, " build of ", artifact.ContractName,
			" (built ", formatDuration(time.Since(builtAt)), " ago)",
		)
		return artifact, "", nil
	}

	artifact, output, err := config.Compile()
	if err != nil {
		return nil, output, err
	}
	logger.Info(
		colors.Bold, "artifacts: ", colors.Reset,
		"built a ", colors.GreenBold, "new", colors.Reset, " artifact for ", artifact.ContractName,
	)
	if err = cache.Put(key, artifact); err != nil {
		logger.Warn("Failed to save artifact to cache", err)
	}
	return artifact, output, nil
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
