package blob

import (
	"context"
	"crypto/sha256"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// assembleChunks reads every chunk from chunks in order, repages the
// concatenated bytes into PageSize pages while streaming a running
// SHA-256, and verifies the result against expectedLen/expectedHash.
// It performs no I/O against any store — backends call it, then
// persist the returned pages themselves (pages before meta).
func assembleChunks(ctx context.Context, chunks ChunkReader, expectedLen uint64, expectedHash ids.Sha256) ([][]byte, uint64, error) {
	hasher := sha256.New()
	var pages [][]byte
	var current []byte
	var total uint64

	n := chunks.NumChunks()
	for idx := uint32(0); idx < n; idx++ {
		chunk, err := chunks.ReadChunk(ctx, idx)
		if err != nil {
			return nil, 0, coreerrors.Wrap(coreerrors.KindInternal, "chunk_read_failed", err, "read chunk %d", idx)
		}

		hasher.Write(chunk)
		total += uint64(len(chunk))
		current = append(current, chunk...)

		for len(current) >= PageSize {
			page := make([]byte, PageSize)
			copy(page, current[:PageSize])
			pages = append(pages, page)
			current = current[PageSize:]
		}
	}
	if len(current) > 0 {
		page := make([]byte, len(current))
		copy(page, current)
		pages = append(pages, page)
	}

	if total != expectedLen {
		return nil, 0, coreerrors.InvalidArgument("length_mismatch", "assembled %d bytes, expected %d", total, expectedLen)
	}

	var actual ids.Sha256
	copy(actual[:], hasher.Sum(nil))
	if actual != expectedHash {
		return nil, 0, coreerrors.InvalidArgument("checksum_mismatch", "assembled checksum does not match expected hash")
	}

	return pages, total, nil
}
