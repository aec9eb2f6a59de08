package memories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

func newTestDomain(t *testing.T) (*Domain, capsule.Store, ids.CapsuleId, ids.PersonRef) {
	t.Helper()
	capsules := capsule.NewMemoryStore()
	owner := ids.NewOpaqueRef("owner-1")
	capsuleId := ids.NewCapsuleId()

	_, err := capsules.Upsert(capsuleId, &capsule.Capsule{
		Id:          capsuleId,
		Subject:     owner,
		Owners:      map[string]ids.PersonRef{owner.Key(): owner},
		Controllers: map[string]ids.PersonRef{},
		Memories:    map[ids.MemoryId]*capsule.Memory{},
		Galleries:   map[ids.GalleryId]*capsule.Gallery{},
		Folders:     map[ids.FolderId]*capsule.Folder{},
	})
	require.NoError(t, err)

	d := &Domain{
		Capsules:            capsules,
		Blobs:               blob.NewMemoryStore(nil),
		InlineMax:           32 * 1024,
		CapsuleInlineBudget: 4 * 1024 * 1024,
	}
	return d, capsules, capsuleId, owner
}

func TestCreate_InlineMemorySucceeds(t *testing.T) {
	d, capsules, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	payload := Payload{Kind: PayloadInline, Inline: make([]byte, 1024)}
	meta := capsule.AssetMetadata{Name: "n", AssetType: capsule.AssetOriginal, MimeType: "application/octet-stream"}

	id, err := d.Create(ctx, capsuleId, owner, payload, meta, "k1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	c, _, err := capsules.Get(capsuleId)
	require.NoError(t, err)
	require.Equal(t, uint32(1), c.Metadata.TotalMemories)
	require.Equal(t, uint64(1024), c.Metadata.InlineBytesUsed)
}

func TestCreate_IsIdempotentForSameTuple(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	payload := Payload{Kind: PayloadInline, Inline: []byte("same bytes")}
	meta := capsule.AssetMetadata{}

	id1, err := d.Create(ctx, capsuleId, owner, payload, meta, "k1")
	require.NoError(t, err)
	id2, err := d.Create(ctx, capsuleId, owner, payload, meta, "k1")
	require.NoError(t, err)

	require.Equal(t, id1, id2)
}

func TestCreate_RejectsCallerWithoutManage(t *testing.T) {
	d, _, capsuleId, _ := newTestDomain(t)
	ctx := context.Background()
	stranger := ids.NewOpaqueRef("stranger")

	_, err := d.Create(ctx, capsuleId, stranger, Payload{Kind: PayloadInline, Inline: []byte("x")}, capsule.AssetMetadata{}, "k1")
	require.Error(t, err)
	require.True(t, coreerrors.IsUnauthorized(err))
}

func TestCreate_RejectsOverBudget(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	d.CapsuleInlineBudget = 100
	ctx := context.Background()

	_, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadInline, Inline: make([]byte, 200)}, capsule.AssetMetadata{}, "k1")
	require.Error(t, err)
	require.True(t, coreerrors.IsResourceExhausted(err))
}

func TestCreate_RejectsOversizeInline(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	_, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadInline, Inline: make([]byte, 64*1024)}, capsule.AssetMetadata{}, "k1")
	require.Error(t, err)
	require.True(t, coreerrors.IsInvalidArgument(err))
}

func TestCreate_BlobRefPayloadVerifiesAgainstBlobStore(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	ref, err := d.Blobs.PutInline(ctx, []byte("already stored"))
	require.NoError(t, err)

	id, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadBlobRef, BlobRef: ref}, capsule.AssetMetadata{}, "k1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	badRef := ref
	badRef.Len++
	_, err = d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadBlobRef, BlobRef: badRef}, capsule.AssetMetadata{}, "k2")
	require.Error(t, err)
	require.True(t, coreerrors.IsInvalidArgument(err))
}

func TestReadUpdateDelete(t *testing.T) {
	d, capsules, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	id, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadInline, Inline: []byte("hi")}, capsule.AssetMetadata{}, "k1")
	require.NoError(t, err)

	mem, err := d.Read(ctx, capsuleId, owner, id)
	require.NoError(t, err)
	require.Equal(t, id, mem.Id)

	title := "new title"
	require.NoError(t, d.Update(ctx, capsuleId, owner, id, MetadataUpdates{Title: &title}))

	mem, err = d.Read(ctx, capsuleId, owner, id)
	require.NoError(t, err)
	require.Equal(t, title, mem.Metadata.Title)

	require.NoError(t, d.Delete(ctx, capsuleId, owner, id, true))

	c, _, err := capsules.Get(capsuleId)
	require.NoError(t, err)
	_, stillThere := c.Memories[id]
	require.False(t, stillThere)
}

func TestDelete_PreservesBlobStillReferencedElsewhere(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	ref, err := d.Blobs.PutInline(ctx, []byte("shared blob"))
	require.NoError(t, err)

	id1, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadBlobRef, BlobRef: ref}, capsule.AssetMetadata{}, "k1")
	require.NoError(t, err)
	_, err = d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadBlobRef, BlobRef: ref}, capsule.AssetMetadata{}, "k2")
	require.NoError(t, err)

	require.NoError(t, d.Delete(ctx, capsuleId, owner, id1, true))

	_, found, err := d.Blobs.GetMeta(ctx, ref.Locator)
	require.NoError(t, err)
	require.True(t, found, "blob still referenced by the second memory must survive")
}

func TestListByCapsule_PaginatesAndFiltersByView(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadInline, Inline: []byte{byte(i)}}, capsule.AssetMetadata{}, string(rune('a'+i)))
		require.NoError(t, err)
	}

	page, err := d.ListByCapsule(ctx, capsuleId, owner, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotNil(t, page.NextCursor)

	page2, err := d.ListByCapsule(ctx, capsuleId, owner, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 1)
	require.Nil(t, page2.NextCursor)
}

func TestPing_ReportsAbsentForUnknownOrUnauthorizedIds(t *testing.T) {
	d, _, capsuleId, owner := newTestDomain(t)
	ctx := context.Background()

	id, err := d.Create(ctx, capsuleId, owner, Payload{Kind: PayloadInline, Inline: []byte("x")}, capsule.AssetMetadata{}, "k1")
	require.NoError(t, err)

	results, err := d.Ping(ctx, capsuleId, owner, []ids.MemoryId{id, ids.NewMemoryId()})
	require.NoError(t, err)
	require.True(t, results[0].Present)
	require.False(t, results[1].Present)
}
