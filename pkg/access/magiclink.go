package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
)

// Magic-link error values. LinkResolver.Resolve does not return them:
// it reports an invalid or expired token as a ResolvedLink with Valid
// set to false and a nil error.
var (
	ErrLinkInvalid = errors.New("magic link token is invalid")
	ErrLinkExpired = errors.New("magic link token has expired")
)

// MagicLinkClaims is the JWT claim set carried by a magic-link token:
// which resource it grants access to, the permission mask it carries,
// and an optional use-count ceiling.
type MagicLinkClaims struct {
	jwt.RegisteredClaims
	ResourceType string `json:"resource_type"`
	ResourceId   string `json:"resource_id"`
	PermMask     Perm   `json:"perm_mask"`
	MaxUses      *uint32 `json:"max_uses,omitempty"`
}

// LinkIssuer mints magic-link tokens under a shared HMAC secret.
type LinkIssuer struct {
	secret []byte
	clock  func() time.Time
}

// NewLinkIssuer builds a LinkIssuer. clock defaults to time.Now if nil.
func NewLinkIssuer(secret []byte, clock func() time.Time) *LinkIssuer {
	if clock == nil {
		clock = time.Now
	}
	return &LinkIssuer{secret: secret, clock: clock}
}

// Mint issues a signed magic-link token granting permMask on
// (resourceType, resourceId) for ttl, optionally capped at maxUses
// redemptions. The token's jti is the value UsageStore implementations
// key revocation and use-count state by.
func (i *LinkIssuer) Mint(jti, resourceType, resourceId string, permMask Perm, ttl time.Duration, maxUses *uint32) (string, error) {
	now := i.clock()
	claims := &MagicLinkClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ResourceType: resourceType,
		ResourceId:   resourceId,
		PermMask:     permMask,
		MaxUses:      maxUses,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", coreerrors.Wrap(coreerrors.KindInternal, "sign_failed", err, "sign magic link token")
	}
	return signed, nil
}

// UsageState is the revocation and redemption-count bookkeeping a
// UsageStore tracks per jti, keyed outside the JWT itself since the
// token is never re-issued when a link is revoked or exhausted.
type UsageState struct {
	RevokedAt    *int64
	UsesConsumed uint32
}

// usable reports whether state permits one more redemption under
// maxUses, mirroring the design's revocation rule: a link is usable
// while revoked_at == nil && (max_uses == nil || uses_consumed <
// *max_uses).
func (s UsageState) usable(maxUses *uint32) bool {
	if s.RevokedAt != nil {
		return false
	}
	if maxUses != nil && s.UsesConsumed >= *maxUses {
		return false
	}
	return true
}

// UsageStore tracks per-jti revocation and redemption-count state.
// Implementations MAY be backed by storeprim or an in-memory map; the
// resolver never mutates state itself.
type UsageStore interface {
	Get(ctx context.Context, jti string) (UsageState, bool, error)
}

// LinkResolver verifies a magic-link token's signature, expiry,
// resource binding, and revocation/use-count state, producing the
// ResolvedLink an EvalContext carries. This is the one I/O-performing
// step the pure evaluator in access.go is deliberately kept free of.
type LinkResolver struct {
	secret []byte
	usage  UsageStore
}

// NewLinkResolver builds a LinkResolver over the same secret an
// issuer signs with.
func NewLinkResolver(secret []byte, usage UsageStore) *LinkResolver {
	return &LinkResolver{secret: secret, usage: usage}
}

// Resolve parses tokenString, checks it was minted for
// (resourceType, resourceId), and consults the usage store for
// revocation/exhaustion. A structurally invalid or expired token, or a
// resource mismatch, resolves to an invalid link rather than an error
// — the caller is simply unauthorized, not at fault.
func (r *LinkResolver) Resolve(ctx context.Context, tokenString, resourceType, resourceId string) (ResolvedLink, error) {
	claims := &MagicLinkClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return ResolvedLink{Valid: false}, nil
	}
	if claims.ResourceType != resourceType || claims.ResourceId != resourceId {
		return ResolvedLink{Valid: false}, nil
	}

	state, found, err := r.usage.Get(ctx, claims.ID)
	if err != nil {
		return ResolvedLink{}, err
	}
	if found && !state.usable(claims.MaxUses) {
		return ResolvedLink{Valid: false}, nil
	}

	return ResolvedLink{PermMask: claims.PermMask, Valid: true}, nil
}
