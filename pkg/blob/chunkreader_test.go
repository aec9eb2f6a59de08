package blob

import "context"

// fakeChunkReader hands back pre-sliced byte chunks for PutChunked
// tests, standing in for an upload session's chunk storage.
type fakeChunkReader struct {
	chunks [][]byte
}

func (f *fakeChunkReader) NumChunks() uint32 { return uint32(len(f.chunks)) }

func (f *fakeChunkReader) ReadChunk(ctx context.Context, idx uint32) ([]byte, error) {
	return f.chunks[idx], nil
}

// splitIntoChunks slices data into chunkSize-sized chunks for tests
// that want to exercise multi-chunk assembly.
func splitIntoChunks(data []byte, chunkSize int) *fakeChunkReader {
	var chunks [][]byte
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return &fakeChunkReader{chunks: chunks}
}
