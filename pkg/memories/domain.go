package memories

import (
	"context"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/access"
	"github.com/novabloom/capsulecore/pkg/assetlink"
	"github.com/novabloom/capsulecore/pkg/blob"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// Domain implements the Memory/Asset Domain operations over a
// CapsuleStore and BlobStore. Limits enforce INLINE_MAX and
// CAPSULE_INLINE_BUDGET; Clock supplies unix-nanosecond timestamps.
// AssetLinks is optional: when nil, ListByCapsule returns headers with
// no minted Assets rather than failing, since a caller content with
// the full Memory (via Read) never needs a link at all.
type Domain struct {
	Capsules            capsule.Store
	Blobs               blob.Store
	InlineMax           uint64
	CapsuleInlineBudget uint64
	Clock               func() int64
	AssetLinks          *assetlink.Minter
}

func (d *Domain) now() int64 {
	if d.Clock == nil {
		return 0
	}
	return d.Clock()
}

func capsuleResource(c *capsule.Capsule) access.Resource {
	return access.Resource{OwnerKeys: c.OwnerKeySet()}
}

func evalCtxFromPerson(principal ids.PersonRef) access.EvalContext {
	return access.EvalContext{PrincipalKey: principal.Key(), IsAuthenticated: !principal.IsEmpty()}
}

// resolvePayload validates payload and returns the asset's content
// hash/length for the idempotency tuple, verifying a BlobRef payload
// against the blob store as the spec requires.
func (d *Domain) resolvePayload(ctx context.Context, payload Payload) (ids.Sha256, uint64, error) {
	switch payload.Kind {
	case PayloadInline:
		if uint64(len(payload.Inline)) > d.InlineMax {
			return ids.Sha256{}, 0, coreerrors.InvalidArgument("inline_too_large", "inline payload of %d bytes exceeds INLINE_MAX %d", len(payload.Inline), d.InlineMax)
		}
		return ids.SumSha256(payload.Inline), uint64(len(payload.Inline)), nil
	case PayloadBlobRef:
		if err := blob.VerifyRef(ctx, d.Blobs, payload.BlobRef); err != nil {
			return ids.Sha256{}, 0, err
		}
		return payload.BlobRef.Hash, payload.BlobRef.Len, nil
	case PayloadExternal:
		var hash ids.Sha256
		if payload.Hash != nil {
			hash = *payload.Hash
		}
		return hash, payload.Len, nil
	default:
		return ids.Sha256{}, 0, coreerrors.InvalidArgument("unknown_variant", "unrecognized payload kind")
	}
}

func (d *Domain) buildAsset(payload Payload, meta capsule.AssetMetadata) capsule.Asset {
	asset := capsule.Asset{Id: ids.NewAssetId(), Metadata: meta}
	switch payload.Kind {
	case PayloadInline:
		asset.Kind = capsule.AssetKindInline
		asset.Bytes = append([]byte{}, payload.Inline...)
	case PayloadBlobRef:
		asset.Kind = capsule.AssetKindBlobInternal
		asset.BlobRef = payload.BlobRef
	case PayloadExternal:
		asset.Kind = capsule.AssetKindBlobExternal
		asset.Location = payload.Location
		asset.StorageKey = payload.StorageKey
		asset.Url = payload.Url
	}
	return asset
}

// Create implements memories_create: permission check, idempotency
// dedupe, budget pre-check, construction, and attachment, all under one
// capsule update so the whole sequence is atomic.
func (d *Domain) Create(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, payload Payload, assetMeta capsule.AssetMetadata, idem string) (ids.MemoryId, error) {
	hash, length, err := d.resolvePayload(ctx, payload)
	if err != nil {
		return "", err
	}

	var memoryId ids.MemoryId
	err = d.Capsules.Update(capsuleId, func(c *capsule.Capsule) error {
		if !access.HasPerm(capsuleResource(c), evalCtxFromPerson(principal), access.Manage) {
			return coreerrors.Unauthorized("caller lacks MANAGE on capsule %s", capsuleId)
		}

		for _, existing := range c.Memories {
			if existing.ContentSha256 == hash && existing.ContentLength == length && existing.Idem == idem {
				memoryId = existing.Id
				return nil
			}
		}

		isInline := payload.Kind == PayloadInline
		if isInline && c.Metadata.InlineBytesUsed+length > d.CapsuleInlineBudget {
			return coreerrors.ResourceExhausted("capsule inline budget of %d bytes exceeded", d.CapsuleInlineBudget)
		}

		now := d.now()
		asset := d.buildAsset(payload, assetMeta)
		mem := &capsule.Memory{
			Id:        ids.NewMemoryId(),
			CapsuleId: capsuleId,
			Metadata: capsule.MemoryMetadata{
				ContentType: assetMeta.MimeType,
				CreatedAt:   now,
				UpdatedAt:   now,
				UploadedAt:  now,
				AssetCount:  1,
				TotalSize:   length,
			},
			Assets:        []capsule.Asset{asset},
			ContentSha256: hash,
			ContentLength: length,
			Idem:          idem,
		}
		mem.RecomputeSharingStatus()
		extractPlaceholderData(mem, asset)

		c.Memories[mem.Id] = mem
		c.Metadata.TotalMemories = uint32(len(c.Memories))
		if isInline {
			c.Metadata.InlineBytesUsed += length
		}
		c.Metadata.TotalStorageUsed += length
		memoryId = mem.Id
		return nil
	})
	if err != nil {
		opCtx := logger.WithContext(ctx, logger.NewLogContext("memories_create").WithCapsule(string(capsuleId)).WithPrincipal(principal.Key()))
		logger.ErrorCtx(opCtx, "memory creation failed", logger.Err(err))
		return "", err
	}
	opCtx := logger.WithContext(ctx, logger.NewLogContext("memories_create").WithCapsule(string(capsuleId)).WithMemory(string(memoryId)).WithPrincipal(principal.Key()))
	logger.InfoCtx(opCtx, "memory created", logger.Size(length))
	return memoryId, nil
}

func findMemory(c *capsule.Capsule, id ids.MemoryId) (*capsule.Memory, error) {
	mem, ok := c.Memories[id]
	if !ok {
		return nil, coreerrors.NotFound("memory:"+string(id), "memory not found")
	}
	return mem, nil
}

// Read implements memories_read: returns the full memory, enforcing
// VIEW.
func (d *Domain) Read(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, id ids.MemoryId) (*capsule.Memory, error) {
	c, found, err := d.Capsules.Get(capsuleId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, coreerrors.NotFound("capsule:"+string(capsuleId), "capsule not found")
	}
	mem, err := findMemory(c, id)
	if err != nil {
		return nil, err
	}
	if !access.HasPerm(mem.AsResource(c.OwnerKeySet()), evalCtxFromPerson(principal), access.View) {
		return nil, coreerrors.Unauthorized("caller lacks VIEW on memory %s", id)
	}
	return mem, nil
}

// MetadataUpdates is the PATCH-semantics payload for Update: nil
// fields are left unchanged.
type MetadataUpdates struct {
	Title          *string
	Description    *string
	Tags           []string
	ParentFolderId *ids.FolderId
	MemoryNotes    *string
}

// Update implements memories_update: PATCH semantics over metadata,
// never touching assets, enforcing MANAGE.
func (d *Domain) Update(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, id ids.MemoryId, updates MetadataUpdates) error {
	err := d.Capsules.Update(capsuleId, func(c *capsule.Capsule) error {
		mem, err := findMemory(c, id)
		if err != nil {
			return err
		}
		if !access.HasPerm(mem.AsResource(c.OwnerKeySet()), evalCtxFromPerson(principal), access.Manage) {
			return coreerrors.Unauthorized("caller lacks MANAGE on memory %s", id)
		}

		if updates.Title != nil {
			mem.Metadata.Title = *updates.Title
		}
		if updates.Description != nil {
			mem.Metadata.Description = *updates.Description
		}
		if updates.Tags != nil {
			mem.Metadata.Tags = updates.Tags
		}
		if updates.ParentFolderId != nil {
			mem.Metadata.ParentFolderId = updates.ParentFolderId
		}
		if updates.MemoryNotes != nil {
			mem.Metadata.MemoryNotes = *updates.MemoryNotes
		}
		mem.Metadata.UpdatedAt = d.now()
		return nil
	})
	opCtx := logger.WithContext(ctx, logger.NewLogContext("memories_update").WithCapsule(string(capsuleId)).WithMemory(string(id)).WithPrincipal(principal.Key()))
	if err != nil {
		logger.ErrorCtx(opCtx, "memory update failed", logger.Err(err))
		return err
	}
	logger.InfoCtx(opCtx, "memory updated")
	return nil
}

// isBlobReferencedElsewhere reports whether any memory in c other than
// excluding references locator as an internal blob asset.
func isBlobReferencedElsewhere(c *capsule.Capsule, locator ids.BlobId, excluding ids.MemoryId) bool {
	for id, mem := range c.Memories {
		if id == excluding {
			continue
		}
		for _, a := range mem.Assets {
			if a.Kind == capsule.AssetKindBlobInternal && a.BlobRef.Locator == locator {
				return true
			}
		}
	}
	return false
}

// Delete implements memories_delete: removes the memory, and if
// deleteAssets is set, deletes owned blobs not referenced elsewhere in
// the same capsule.
func (d *Domain) Delete(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, id ids.MemoryId, deleteAssets bool) error {
	var toDelete []ids.BlobId

	err := d.Capsules.Update(capsuleId, func(c *capsule.Capsule) error {
		mem, err := findMemory(c, id)
		if err != nil {
			return err
		}
		if !access.HasPerm(mem.AsResource(c.OwnerKeySet()), evalCtxFromPerson(principal), access.Manage) {
			return coreerrors.Unauthorized("caller lacks MANAGE on memory %s", id)
		}

		if deleteAssets {
			for _, a := range mem.Assets {
				if a.Kind == capsule.AssetKindBlobInternal && !isBlobReferencedElsewhere(c, a.BlobRef.Locator, id) {
					toDelete = append(toDelete, a.BlobRef.Locator)
				}
			}
		}

		if mem.Assets != nil {
			for _, a := range mem.Assets {
				if a.Kind == capsule.AssetKindInline {
					c.Metadata.InlineBytesUsed -= uint64(len(a.Bytes))
				}
			}
		}

		delete(c.Memories, id)
		c.Metadata.TotalMemories = uint32(len(c.Memories))
		return nil
	})
	opCtx := logger.WithContext(ctx, logger.NewLogContext("memories_delete").WithCapsule(string(capsuleId)).WithMemory(string(id)).WithPrincipal(principal.Key()))
	if err != nil {
		logger.ErrorCtx(opCtx, "memory deletion failed", logger.Err(err))
		return err
	}

	for _, locator := range toDelete {
		if err := d.Blobs.Delete(ctx, locator); err != nil {
			logger.ErrorCtx(opCtx, "orphaned blob delete failed", logger.BlobID(string(locator)), logger.Err(err))
			return err
		}
	}
	logger.InfoCtx(opCtx, "memory deleted", logger.Size(uint64(len(toDelete))))
	return nil
}

// AddAsset implements memories_add_asset: inserts an additional asset
// while preserving memory identity, updating counters and total size.
func (d *Domain) AddAsset(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, id ids.MemoryId, payload Payload, assetMeta capsule.AssetMetadata, idem string) (ids.AssetId, error) {
	_, length, err := d.resolvePayload(ctx, payload)
	if err != nil {
		return "", err
	}

	var assetId ids.AssetId
	err = d.Capsules.Update(capsuleId, func(c *capsule.Capsule) error {
		mem, err := findMemory(c, id)
		if err != nil {
			return err
		}
		if !access.HasPerm(mem.AsResource(c.OwnerKeySet()), evalCtxFromPerson(principal), access.Manage) {
			return coreerrors.Unauthorized("caller lacks MANAGE on memory %s", id)
		}

		isInline := payload.Kind == PayloadInline
		if isInline && c.Metadata.InlineBytesUsed+length > d.CapsuleInlineBudget {
			return coreerrors.ResourceExhausted("capsule inline budget of %d bytes exceeded", d.CapsuleInlineBudget)
		}

		asset := d.buildAsset(payload, assetMeta)
		mem.Assets = append(mem.Assets, asset)
		mem.Metadata.AssetCount = uint32(len(mem.Assets))
		mem.Metadata.TotalSize += length
		mem.Metadata.UpdatedAt = d.now()
		extractPlaceholderData(mem, asset)
		if isInline {
			c.Metadata.InlineBytesUsed += length
		}
		c.Metadata.TotalStorageUsed += length
		assetId = asset.Id
		return nil
	})
	opCtx := logger.WithContext(ctx, logger.NewLogContext("memories_add_asset").WithCapsule(string(capsuleId)).WithMemory(string(id)).WithPrincipal(principal.Key()))
	if err != nil {
		logger.ErrorCtx(opCtx, "asset add failed", logger.Err(err))
		return "", err
	}
	logger.InfoCtx(opCtx, "asset added", logger.AssetID(string(assetId)), logger.Size(length))
	return assetId, nil
}

// extractPlaceholderData copies an inline AssetPreview asset's bytes
// onto the memory's PlaceholderData field: a base64-ready LQIP served
// straight out of the listing header, never behind an AssetLink.
func extractPlaceholderData(mem *capsule.Memory, asset capsule.Asset) {
	if asset.Kind == capsule.AssetKindInline && asset.Metadata.AssetType == capsule.AssetPreview {
		mem.Metadata.PlaceholderData = append([]byte{}, asset.Bytes...)
	}
}
