package download

// MinChunkSize is the smallest useful byte range for one connection;
// splitting finer than this lets per-connection overhead dominate.
const MinChunkSize int64 = 1024 * 1024 // 1MB

// PlanChunks partitions [0, size) into at most connections contiguous,
// non-overlapping ranges. The last chunk absorbs the remainder. The plan is
// deterministic: identical inputs always yield identical boundaries, which
// resume validation relies on.
func PlanChunks(size int64, connections int) []Chunk {
	if connections < 1 {
		connections = 1
	}
	if maxUseful := size / MinChunkSize; int64(connections) > maxUseful {
		connections = int(max(1, maxUseful))
	}
	chunkSize := size / int64(connections)
	chunks := make([]Chunk, connections)
	for i := range chunks {
		start := int64(i) * chunkSize
		end := start + chunkSize
		if i == connections-1 {
			end = size
		}
		chunks[i] = Chunk{
			ID:     i,
			Start:  start,
			End:    end,
			Status: ChunkPending,
		}
	}
	return chunks
}
