// Package store persists harvested collections.
//
// A fetch result is wrapped in a Snapshot together with the endpoint, query
// and time it was collected. Snapshots can be written as indented JSON
// documents on disk or kept in Redis under a deterministic key.
//
// # Files
//
//	key := store.KeyFor(rawURL, params, "marketing-repos")
//	snap := store.NewSnapshot(key, records, time.Now())
//	if err := store.WriteFile(key.FileName(), snap); err != nil {
//		return err
//	}
//
// Files are written to a temporary sibling first and renamed into place, so
// readers never observe a partially written document.
//
// # Redis
//
//	s := store.NewRedisStore(redisClient, 24*time.Hour)
//	if err := s.Save(ctx, key, snap); err != nil {
//		return err
//	}
//	snap, err := s.Load(ctx, key)
//	if errors.Is(err, store.ErrNotFound) {
//		// never harvested, or expired
//	}
//
// # Metrics
//
//   - harvester_store_writes_total{backend} - Snapshots written
//   - harvester_store_reads_total{backend,result} - Snapshot reads (hit, miss)
//   - harvester_store_snapshot_bytes{backend} - Encoded snapshot size
//   - harvester_store_errors_total{operation} - Store operation errors
package store
