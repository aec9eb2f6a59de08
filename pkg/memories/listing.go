package memories

import (
	"context"
	"time"

	"github.com/novabloom/capsulecore/pkg/access"
	"github.com/novabloom/capsulecore/pkg/assetlink"
	"github.com/novabloom/capsulecore/pkg/capsule"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
)

// MemoryAssetLinks carries the up-to-three AssetLinks minted for a
// listed memory's thumbnail, display, and original renditions. Any
// slot is nil when the memory has no asset of that type, or when the
// Domain was built without an AssetLinks minter.
type MemoryAssetLinks struct {
	Thumbnail *assetlink.AssetLink
	Display   *assetlink.AssetLink
	Original  *assetlink.AssetLink
}

// MemoryHeader is the listing projection returned by ListByCapsule.
// Assets carries freshly minted, short-lived links for the read path;
// PlaceholderData is inlined directly since it's the LQIP bytes
// themselves, never fetched via a link.
type MemoryHeader struct {
	Id                   ids.MemoryId
	CapsuleId            ids.CapsuleId
	Name                 string
	MemoryType           capsule.MemoryType
	Size                 uint64
	CreatedAt            int64
	UpdatedAt            int64
	Title                string
	Description          string
	ParentFolderId       *ids.FolderId
	Tags                 []string
	SharedCount          uint32
	SharingStatus        capsule.SharingStatus
	AssetCount           uint32
	PlaceholderData      []byte
	DatabaseStorageEdges []string
	Assets               MemoryAssetLinks
}

// toHeader projects mem into its listing shape, minting AssetLinks for
// the thumbnail/display/original assets it finds when d carries a
// minter. principal becomes the link's audience tag, binding a minted
// token to the caller it was issued to.
func (d *Domain) toHeader(mem *capsule.Memory, principal ids.PersonRef) MemoryHeader {
	h := MemoryHeader{
		Id:                   mem.Id,
		CapsuleId:            mem.CapsuleId,
		Name:                 mem.Metadata.Title,
		MemoryType:           mem.Metadata.MemoryType,
		Size:                 mem.Metadata.TotalSize,
		CreatedAt:            mem.Metadata.CreatedAt,
		UpdatedAt:            mem.Metadata.UpdatedAt,
		Title:                mem.Metadata.Title,
		Description:          mem.Metadata.Description,
		ParentFolderId:       mem.Metadata.ParentFolderId,
		Tags:                 mem.Metadata.Tags,
		SharedCount:          mem.Metadata.SharedCount,
		SharingStatus:        mem.Metadata.SharingStatus,
		AssetCount:           mem.Metadata.AssetCount,
		PlaceholderData:      mem.Metadata.PlaceholderData,
		DatabaseStorageEdges: mem.Metadata.DatabaseStorageEdges,
	}

	if d.AssetLinks == nil {
		return h
	}

	now := time.Unix(0, d.now())
	audience := principal.Key()
	for i := range mem.Assets {
		asset := mem.Assets[i]
		var kind assetlink.Kind
		switch asset.Metadata.AssetType {
		case capsule.AssetThumbnail:
			kind = assetlink.KindThumbnail
		case capsule.AssetDisplay:
			kind = assetlink.KindDisplay
		case capsule.AssetOriginal:
			kind = assetlink.KindOriginal
		default:
			continue
		}

		link := d.AssetLinks.Mint(now, mem.Id, asset.Id, kind, asset.Metadata.MimeType, audience, assetlink.TokenTTLListing)
		link.Width = asset.Metadata.Width
		link.Height = asset.Metadata.Height
		if asset.Metadata.Bytes != 0 {
			bytes := asset.Metadata.Bytes
			link.Bytes = &bytes
		}

		switch kind {
		case assetlink.KindThumbnail:
			h.Assets.Thumbnail = &link
		case assetlink.KindDisplay:
			h.Assets.Display = &link
		case assetlink.KindOriginal:
			h.Assets.Original = &link
		}
	}

	return h
}

// Page is one page of a ListByCapsule result.
type Page struct {
	Items      []MemoryHeader
	NextCursor *ids.MemoryId
}

// ListByCapsule implements memories_list_by_capsule: a keyset page of
// MemoryHeader projections over the memories the caller can VIEW,
// ordered by id (UUIDv7, so by creation time).
func (d *Domain) ListByCapsule(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, cursor *ids.MemoryId, limit uint32) (Page, error) {
	c, found, err := d.Capsules.Get(capsuleId)
	if err != nil {
		return Page{}, err
	}
	if !found {
		return Page{}, coreerrors.NotFound("capsule:"+string(capsuleId), "capsule not found")
	}

	ids_ := make([]ids.MemoryId, 0, len(c.Memories))
	for id := range c.Memories {
		ids_ = append(ids_, id)
	}
	sortMemoryIds(ids_)

	startIdx := 0
	if cursor != nil {
		for i, id := range ids_ {
			if id == *cursor {
				startIdx = i + 1
				break
			}
		}
	}

	evalCtx := evalCtxFromPerson(principal)
	ownerKeys := c.OwnerKeySet()

	var page Page
	i := startIdx
	for ; i < len(ids_) && uint32(len(page.Items)) < limit; i++ {
		mem := c.Memories[ids_[i]]
		if !access.HasPerm(mem.AsResource(ownerKeys), evalCtx, access.View) {
			continue
		}
		page.Items = append(page.Items, d.toHeader(mem, principal))
	}
	if i < len(ids_) && i > 0 {
		next := ids_[i-1]
		page.NextCursor = &next
	}
	return page, nil
}

func sortMemoryIds(list []ids.MemoryId) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j-1] > list[j]; j-- {
			list[j-1], list[j] = list[j], list[j-1]
		}
	}
}

// PresenceResult reports a memory's visibility and freshness stamp for
// bulk presence checks.
type PresenceResult struct {
	Id        ids.MemoryId
	Present   bool
	UpdatedAt int64
}

// Ping implements memories_ping: presence and version stamps for a
// bulk set of ids, skipping any the caller lacks access to report
// rather than failing the whole batch.
func (d *Domain) Ping(ctx context.Context, capsuleId ids.CapsuleId, principal ids.PersonRef, memoryIds []ids.MemoryId) ([]PresenceResult, error) {
	c, found, err := d.Capsules.Get(capsuleId)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, coreerrors.NotFound("capsule:"+string(capsuleId), "capsule not found")
	}

	evalCtx := evalCtxFromPerson(principal)
	ownerKeys := c.OwnerKeySet()

	out := make([]PresenceResult, 0, len(memoryIds))
	for _, id := range memoryIds {
		mem, ok := c.Memories[id]
		if !ok || !access.HasPerm(mem.AsResource(ownerKeys), evalCtx, access.View) {
			out = append(out, PresenceResult{Id: id, Present: false})
			continue
		}
		out = append(out, PresenceResult{Id: id, Present: true, UpdatedAt: mem.Metadata.UpdatedAt})
	}
	return out, nil
}
