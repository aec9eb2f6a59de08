package access

import (
	"encoding/json"
	"fmt"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
)

// enumSchemaVersion is written alongside every persisted enum in this
// package. A reader bumps its own constant when it can decode a newer
// version; it never silently accepts one it doesn't recognize.
const enumSchemaVersion = 1

// versionedEnum is the wire shape every persisted enum in this package
// marshals to: a schema version paired with the raw ordinal. Keeping
// the pair explicit (rather than writing a bare int) lets a future
// version renumber variants without breaking old records, since a
// decoder can see which numbering it's looking at.
type versionedEnum struct {
	V     uint8 `json:"v"`
	Value int   `json:"value"`
}

func marshalEnum(value int) ([]byte, error) {
	return json.Marshal(versionedEnum{V: enumSchemaVersion, Value: value})
}

// unmarshalEnum decodes a versionedEnum and rejects anything the
// current schema doesn't know how to read: a version newer than this
// build understands, or an ordinal outside [0, maxVariant].
func unmarshalEnum(data []byte, maxVariant int) (int, error) {
	var v versionedEnum
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("access: decode enum: %w", err)
	}
	if v.V > enumSchemaVersion {
		return 0, errUnknownSchemaVersion(v.V)
	}
	if v.Value < 0 || v.Value > maxVariant {
		return 0, errUnknownVariant(v.Value)
	}
	return v.Value, nil
}

func errUnknownSchemaVersion(v uint8) error {
	return coreerrors.Internal("unknown_schema_version", "enum schema version %d exceeds current %d", v, enumSchemaVersion)
}

func errUnknownVariant(value int) error {
	return coreerrors.Internal("unknown_variant", "enum variant %d is not recognized", value)
}

const (
	roleMaxVariant        = int(RoleGuest)
	grantSourceMaxVariant = int(GrantSystem)
	publicModeMaxVariant  = int(PublicLink)
)

func (r Role) MarshalJSON() ([]byte, error) { return marshalEnum(int(r)) }

func (r *Role) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, roleMaxVariant)
	if err != nil {
		return err
	}
	*r = Role(v)
	return nil
}

func (g GrantSource) MarshalJSON() ([]byte, error) { return marshalEnum(int(g)) }

func (g *GrantSource) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, grantSourceMaxVariant)
	if err != nil {
		return err
	}
	*g = GrantSource(v)
	return nil
}

func (p PublicMode) MarshalJSON() ([]byte, error) { return marshalEnum(int(p)) }

func (p *PublicMode) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, publicModeMaxVariant)
	if err != nil {
		return err
	}
	*p = PublicMode(v)
	return nil
}
