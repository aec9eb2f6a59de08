package capsule

import (
	"encoding/json"
	"fmt"

	"github.com/novabloom/capsulecore/pkg/coreerrors"
)

// enumSchemaVersion is written alongside every persisted enum in this
// package, independently of access's own schema version.
const enumSchemaVersion = 1

// versionedEnum mirrors access.versionedEnum: a schema version paired
// with the raw ordinal, so a future renumbering of a variant set can
// be told apart from records written under the old numbering.
type versionedEnum struct {
	V     uint8 `json:"v"`
	Value int   `json:"value"`
}

func marshalEnum(value int) ([]byte, error) {
	return json.Marshal(versionedEnum{V: enumSchemaVersion, Value: value})
}

func unmarshalEnum(data []byte, maxVariant int) (int, error) {
	var v versionedEnum
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("capsule: decode enum: %w", err)
	}
	if v.V > enumSchemaVersion {
		return 0, coreerrors.Internal("unknown_schema_version", "enum schema version %d exceeds current %d", v.V, enumSchemaVersion)
	}
	if v.Value < 0 || v.Value > maxVariant {
		return 0, coreerrors.Internal("unknown_variant", "enum variant %d is not recognized", v.Value)
	}
	return v.Value, nil
}

const (
	sharingStatusMaxVariant = int(SharingPublic)
	memoryTypeMaxVariant    = int(MemoryTypeNote)
	assetTypeMaxVariant     = int(AssetMetadataKind)
	assetKindMaxVariant     = int(AssetKindBlobExternal)
)

func (s SharingStatus) MarshalJSON() ([]byte, error) { return marshalEnum(int(s)) }

func (s *SharingStatus) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, sharingStatusMaxVariant)
	if err != nil {
		return err
	}
	*s = SharingStatus(v)
	return nil
}

func (m MemoryType) MarshalJSON() ([]byte, error) { return marshalEnum(int(m)) }

func (m *MemoryType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, memoryTypeMaxVariant)
	if err != nil {
		return err
	}
	*m = MemoryType(v)
	return nil
}

func (a AssetType) MarshalJSON() ([]byte, error) { return marshalEnum(int(a)) }

func (a *AssetType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, assetTypeMaxVariant)
	if err != nil {
		return err
	}
	*a = AssetType(v)
	return nil
}

func (k AssetKind) MarshalJSON() ([]byte, error) { return marshalEnum(int(k)) }

func (k *AssetKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, assetKindMaxVariant)
	if err != nil {
		return err
	}
	*k = AssetKind(v)
	return nil
}

// encodeCapsule and decodeCapsule are the wire format for the
// persistent backend's primary slot, and doubles as the clone
// mechanism for the in-memory backend so both backends hand callers an
// independent copy rather than an aliased pointer into store state.
func encodeCapsule(c *Capsule) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("capsule: encode: %w", err)
	}
	return b, nil
}

func decodeCapsule(b []byte) (*Capsule, error) {
	var c Capsule
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("capsule: decode: %w", err)
	}
	return &c, nil
}

func cloneCapsule(c *Capsule) (*Capsule, error) {
	b, err := encodeCapsule(c)
	if err != nil {
		return nil, err
	}
	return decodeCapsule(b)
}
