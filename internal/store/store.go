// Package store holds the persisted state of the pipeline: the article cache,
// read state, delivery tracker, notification preferences and feed sources.
// Each store serializes its own writers and keeps its in-memory copy
// authoritative when a write fails.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/metrics"
)

// errCorrupt marks a blob that exists but does not decode.
var errCorrupt = errors.New("corrupt blob")

// load decodes the blob at key into v. A missing blob leaves v untouched and
// reports found == false.
func load(ctx context.Context, blobs Blobs, key string, v any) (bool, error) {
	data, err := blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w %s: %v", errCorrupt, key, err)
	}
	return true, nil
}

// persist encodes v into the blob at key. Failures are logged and counted;
// the caller's in-memory state stays authoritative.
func persist(ctx context.Context, blobs Blobs, key string, v any, logger *log.Entry) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = blobs.Put(ctx, key, data)
	}
	if err != nil {
		metrics.PersistErrors.WithLabelValues(key).Inc()
		logger.WithError(err).WithField("key", key).Warn("persist failed")
		return err
	}
	return nil
}

func loggerOr(logger *log.Entry, component string) *log.Entry {
	if logger != nil {
		return logger
	}
	return log.WithField("component", component)
}
