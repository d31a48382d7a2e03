// Package archive implements the Archive Subsystem (spec §4.5): a capability
// interface over four backend variants, each able to upload a file under a
// date-partitioned path and sweep old files by age.
package archive

import (
	"context"
	"fmt"
	"time"
)

// Backend is the capability contract every archive variant implements
// (spec §4.5). UploadFile returns ("", false) on failure rather than an
// error: a failed upload for one artifact must not prevent other artifacts
// from being attempted (spec §7 StorageError is per-artifact, non-fatal).
type Backend interface {
	// UploadFile uploads src to dst under the given partition, returning a
	// publicly reachable URL, or ok=false on failure.
	UploadFile(ctx context.Context, src, dst, partition string) (url string, ok bool)
	// CleanFiles deletes files older than days under root, removing
	// resulting empty directories, returning the count removed or ok=false
	// on failure.
	CleanFiles(ctx context.Context, root string, days int) (count int, ok bool)
	// Name identifies the backend for logging/metrics.
	Name() string
}

// Partition constructs the relative date path used for both archive layout
// and URL construction (spec §6: "<short_name>/<YYYY>/<M>/<D>", M and D
// non-zero-padded).
func Partition(shortName string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%d/%d/%d", shortName, t.Year(), int(t.Month()), t.Day())
}
