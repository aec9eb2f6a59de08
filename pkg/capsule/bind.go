package capsule

import (
	"time"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/access"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
)

// ResourceType discriminates what capsules_bind_neon targets. Only
// ResourceCapsule exists today: BoundToNeon is a field on Capsule
// alone, and no other aggregate (Memory, Gallery, Folder) carries an
// equivalent flag. The type stays a discriminator rather than the
// signature hard-wiring "capsule" so a future resource that grows its
// own neon-binding flag can add a case here without renaming the
// operation.
type ResourceType string

const ResourceCapsule ResourceType = "capsule"

// BindNeon implements capsules_bind_neon: flips BoundToNeon on the
// capsule identified by resourceId, requiring MANAGE. Any resourceType
// other than ResourceCapsule is rejected as not implemented.
func BindNeon(store Store, principal ids.PersonRef, resourceType ResourceType, resourceId ids.CapsuleId, bind bool, now int64) error {
	start := time.Now()
	defer func() { metrics.ObserveCapsuleOpDuration("capsules_bind_neon", time.Since(start)) }()

	if resourceType != ResourceCapsule {
		return coreerrors.NotImplemented("neon binding is only implemented for capsules, got %q", resourceType)
	}

	err := store.Update(resourceId, func(c *Capsule) error {
		if !access.HasPerm(capsuleResource(c), evalCtxFromPerson(principal), access.Manage) {
			return coreerrors.Unauthorized("caller lacks MANAGE on capsule %s", resourceId)
		}
		c.BoundToNeon = bind
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		logger.Error("neon bind update failed", logger.Operation("capsules_bind_neon"), logger.CapsuleID(string(resourceId)), logger.Principal(principal.Key()), logger.Err(err))
		return err
	}
	logger.Info("neon binding updated", logger.Operation("capsules_bind_neon"), logger.CapsuleID(string(resourceId)), logger.Principal(principal.Key()), logger.Backend(map[bool]string{true: "bound", false: "unbound"}[bind]))
	return nil
}
