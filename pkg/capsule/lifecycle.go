package capsule

import (
	"time"

	"github.com/novabloom/capsulecore/internal/logger"
	"github.com/novabloom/capsulecore/pkg/access"
	"github.com/novabloom/capsulecore/pkg/coreerrors"
	"github.com/novabloom/capsulecore/pkg/ids"
	"github.com/novabloom/capsulecore/pkg/metrics"
)

// CreationResult reports whether Create minted a new capsule or
// returned one that already existed for the subject.
type CreationResult struct {
	Id      ids.CapsuleId
	Created bool
}

// Create implements capsules_create: find-or-create a capsule for
// subject, defaulting subject to the caller when unset. The lookup and
// insert race under concurrent callers for the same subject; both
// losers of that race simply re-read the winner's capsule via
// FindBySubject rather than erroring, keeping the operation idempotent
// end to end.
func Create(store Store, caller ids.PersonRef, subject *ids.PersonRef, now int64) (CreationResult, error) {
	start := time.Now()
	defer func() { metrics.ObserveCapsuleOpDuration("capsules_create", time.Since(start)) }()

	owner := caller
	if subject != nil {
		owner = *subject
	}
	if owner.IsEmpty() {
		return CreationResult{}, coreerrors.InvalidArgument("empty_subject", "capsule subject must not be empty")
	}

	if existing, found, err := store.FindBySubject(owner); err != nil {
		return CreationResult{}, err
	} else if found {
		return CreationResult{Id: existing.Id, Created: false}, nil
	}

	c := &Capsule{
		Id:          ids.NewCapsuleId(),
		Subject:     owner,
		Owners:      map[string]ids.PersonRef{owner.Key(): owner},
		Controllers: map[string]ids.PersonRef{},
		Memories:    map[ids.MemoryId]*Memory{},
		Galleries:   map[ids.GalleryId]*Gallery{},
		Folders:     map[ids.FolderId]*Folder{},
		Metadata:    CapsuleMetadata{RoleTemplates: DefaultRoleTemplates()},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.PutIfAbsent(c.Id, c); err != nil {
		if coreerrors.IsConflict(err) {
			if existing, found, ferr := store.FindBySubject(owner); ferr == nil && found {
				return CreationResult{Id: existing.Id, Created: false}, nil
			}
		}
		logger.Error("capsule creation failed", logger.Operation("capsules_create"), logger.Principal(owner.Key()), logger.Err(err))
		return CreationResult{}, err
	}

	logger.Info("capsule created", logger.Operation("capsules_create"), logger.CapsuleID(string(c.Id)), logger.Principal(owner.Key()))
	return CreationResult{Id: c.Id, Created: true}, nil
}

// UpdateRoleTemplates implements capsules_update_role_templates: replaces
// a capsule's display-only role->perm_mask templates, requiring MANAGE.
// Evaluation never consults these templates (see DefaultRoleTemplates);
// they exist only so a UI can label a grant without hand-maintaining its
// own copy of the default mapping.
func UpdateRoleTemplates(store Store, principal ids.PersonRef, capsuleId ids.CapsuleId, templates map[access.Role]access.Perm, now int64) error {
	start := time.Now()
	defer func() { metrics.ObserveCapsuleOpDuration("capsules_update_role_templates", time.Since(start)) }()

	err := store.Update(capsuleId, func(c *Capsule) error {
		if !access.HasPerm(capsuleResource(c), evalCtxFromPerson(principal), access.Manage) {
			return coreerrors.Unauthorized("caller lacks MANAGE on capsule %s", capsuleId)
		}
		c.Metadata.RoleTemplates = templates
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		logger.Error("role template update failed", logger.Operation("capsules_update_role_templates"), logger.CapsuleID(string(capsuleId)), logger.Principal(principal.Key()), logger.Err(err))
		return err
	}
	logger.Info("role templates updated", logger.Operation("capsules_update_role_templates"), logger.CapsuleID(string(capsuleId)), logger.Principal(principal.Key()))
	return nil
}
