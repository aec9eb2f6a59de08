package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePermMask_OwnerFastPathGrantsEverything(t *testing.T) {
	resource := Resource{OwnerKeys: map[string]bool{"principal:alice": true}}
	ctx := EvalContext{PrincipalKey: "principal:alice"}

	assert.Equal(t, OwnerMask, EffectivePermMask(resource, ctx))
}

func TestEffectivePermMask_DirectGrantsAreOred(t *testing.T) {
	resource := Resource{
		Entries: []AccessEntry{
			{GrantSource: GrantUser, PersonKey: "principal:bob", PermMask: View},
			{GrantSource: GrantUser, PersonKey: "principal:bob", PermMask: Download},
			{GrantSource: GrantUser, PersonKey: "principal:carol", PermMask: Manage},
		},
	}
	ctx := EvalContext{PrincipalKey: "principal:bob"}

	mask := EffectivePermMask(resource, ctx)
	assert.True(t, Has(mask, View))
	assert.True(t, Has(mask, Download))
	assert.False(t, Has(mask, Manage))
}

func TestEffectivePermMask_GroupGrantRequiresMembership(t *testing.T) {
	resource := Resource{
		Entries: []AccessEntry{
			{GrantSource: GrantGroup, SourceId: "family", PermMask: Share},
		},
	}

	inGroup := EvalContext{PrincipalKey: "principal:dan", Groups: map[string]bool{"family": true}}
	assert.True(t, Has(EffectivePermMask(resource, inGroup), Share))

	outOfGroup := EvalContext{PrincipalKey: "principal:erin", Groups: map[string]bool{}}
	assert.False(t, Has(EffectivePermMask(resource, outOfGroup), Share))
}

func TestEffectivePermMask_MagicLinkMustBeValid(t *testing.T) {
	resource := Resource{}

	valid := EvalContext{Link: &ResolvedLink{PermMask: View, Valid: true}}
	assert.True(t, Has(EffectivePermMask(resource, valid), View))

	expired := EvalContext{Link: &ResolvedLink{PermMask: View, Valid: false}}
	assert.False(t, Has(EffectivePermMask(resource, expired), View))
}

func TestEffectivePermMask_PublicAuthRequiresAuthentication(t *testing.T) {
	resource := Resource{PublicPolicy: &PublicPolicy{Mode: PublicAuth, PermMask: View}}

	authed := EvalContext{IsAuthenticated: true}
	assert.True(t, Has(EffectivePermMask(resource, authed), View))

	anon := EvalContext{IsAuthenticated: false}
	assert.False(t, Has(EffectivePermMask(resource, anon), View))
}

func TestEffectivePermMask_PublicLinkRequiresOnlyPossession(t *testing.T) {
	resource := Resource{PublicPolicy: &PublicPolicy{Mode: PublicLink, PermMask: View}}

	withLink := EvalContext{Link: &ResolvedLink{Valid: true}}
	assert.True(t, Has(EffectivePermMask(resource, withLink), View))

	withoutLink := EvalContext{}
	assert.False(t, Has(EffectivePermMask(resource, withoutLink), View))
}

func TestEffectivePermMask_RulesCombineAdditively(t *testing.T) {
	resource := Resource{
		Entries: []AccessEntry{
			{GrantSource: GrantUser, PersonKey: "principal:fay", PermMask: View},
		},
		PublicPolicy: &PublicPolicy{Mode: PublicAuth, PermMask: Download},
	}
	ctx := EvalContext{PrincipalKey: "principal:fay", IsAuthenticated: true}

	mask := EffectivePermMask(resource, ctx)
	assert.True(t, Has(mask, View))
	assert.True(t, Has(mask, Download))
	assert.False(t, Has(mask, Manage))
}

func TestHasPerm(t *testing.T) {
	resource := Resource{OwnerKeys: map[string]bool{"principal:gail": true}}
	ctx := EvalContext{PrincipalKey: "principal:gail"}

	assert.True(t, HasPerm(resource, ctx, Own))
	assert.False(t, HasPerm(Resource{}, EvalContext{}, View))
}
