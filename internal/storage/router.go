package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
	version  string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath, version string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
		version:  version,
	}
}

// Route returns the storage path for a partition at the given timestamp.
// Format: protocol://bucket/basePath/topic/version/dt=YYYY-MM-DD/pid=N/
//
// The date comes from the event time. specVersion "1.0" becomes "v10";
// an empty specVersion keeps the router default.
func (r *DefaultRouter) Route(partitionID event.PartitionID, timestamp int64, specVersion string) string {
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")

	version := r.version
	if v := strings.ReplaceAll(specVersion, ".", ""); v != "" {
		version = "v" + v
	}

	segments := make([]string, 0, 5)
	for _, s := range []string{r.basePath, partitionID.Topic, version} {
		if s != "" {
			segments = append(segments, s)
		}
	}
	segments = append(segments, "dt="+date, fmt.Sprintf("pid=%d", partitionID.Partition))

	return fmt.Sprintf("%s://%s/%s/", r.protocol, r.bucket, strings.Join(segments, "/"))
}

// RotationStrategy decides how the individual rotation limits combine.
type RotationStrategy string

const (
	// StrategyAny rotates as soon as one configured limit is reached.
	StrategyAny RotationStrategy = "any"
	// StrategyAll rotates only once every configured limit is reached.
	StrategyAll RotationStrategy = "all"
)

// PolicyConfig configures rotation behavior.
type PolicyConfig struct {
	MaxFileSizeMB      int64
	MaxRecordsPerFile  int
	MaxDurationSeconds int
	Strategy           string
}

// CompositePolicy rotates based on size, record count and age.
// Limits set to zero are ignored.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxDuration  time.Duration
	strategy     RotationStrategy
	now          func() time.Time
}

// NewPolicy creates a rotation policy from config.
func NewPolicy(config PolicyConfig) *CompositePolicy {
	strategy := RotationStrategy(config.Strategy)
	if strategy != StrategyAll {
		strategy = StrategyAny
	}
	return &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxRecords:   config.MaxRecordsPerFile,
		maxDuration:  time.Duration(config.MaxDurationSeconds) * time.Second,
		strategy:     strategy,
		now:          time.Now,
	}
}

// ShouldRotate reports whether buffered records described by stats should be flushed.
// Empty buffers never rotate.
func (p *CompositePolicy) ShouldRotate(stats event.FileStats) bool {
	if stats.RecordCount == 0 {
		return false
	}

	var checks []bool
	if p.maxSizeBytes > 0 {
		checks = append(checks, stats.SizeBytes >= p.maxSizeBytes)
	}
	if p.maxRecords > 0 {
		checks = append(checks, stats.RecordCount >= p.maxRecords)
	}
	if p.maxDuration > 0 {
		checks = append(checks, !stats.FirstWriteTime.IsZero() && p.now().Sub(stats.FirstWriteTime) >= p.maxDuration)
	}
	if len(checks) == 0 {
		return false
	}

	for _, hit := range checks {
		if hit && p.strategy == StrategyAny {
			return true
		}
		if !hit && p.strategy == StrategyAll {
			return false
		}
	}
	return p.strategy == StrategyAll
}
