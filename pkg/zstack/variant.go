package zstack

import (
	"context"
	"fmt"

	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// Variant is the Z-Stack firmware family reported by SYS version.
type Variant uint8

const (
	VariantLegacy    Variant = 0
	VariantZStack3x0 Variant = 1
	VariantZStack30x Variant = 2
)

// String returns the variant name used in version info and backups.
func (v Variant) String() string {
	switch v {
	case VariantLegacy:
		return "zStack12"
	case VariantZStack3x0:
		return "zStack3x0"
	case VariantZStack30x:
		return "zStack30x"
	default:
		return fmt.Sprintf("zStack(%d)", uint8(v))
	}
}

// IsZStack3 reports whether the variant is a Z-Stack 3 build.
func (v Variant) IsZStack3() bool {
	return v == VariantZStack3x0 || v == VariantZStack30x
}

// keyAccess selects how the network key is read or written.
type keyAccess uint8

const (
	keyViaSAPI keyAccess = iota
	keyViaNV
)

// variantProfile holds the behaviour that differs between variants.
type variantProfile struct {
	hasConfiguredID uint16
	keyRead         keyAccess
	keyWrite        keyAccess

	// writeDefaultTCLK writes legacyTCLK after the network key.
	writeDefaultTCLK bool

	// bdbCommissioning forms the network through APP_CNF BDB commands.
	bdbCommissioning bool

	// panIDWildcard accepts a stored PAN id of 0xFFFF as matching.
	panIDWildcard bool

	backup bool
}

var variantTable = map[Variant]variantProfile{
	VariantLegacy: {
		hasConfiguredID:  nvHasConfiguredZStack1,
		keyRead:          keyViaSAPI,
		keyWrite:         keyViaSAPI,
		writeDefaultTCLK: true,
	},
	VariantZStack3x0: {
		hasConfiguredID:  nvHasConfiguredZStack3,
		keyRead:          keyViaNV,
		keyWrite:         keyViaNV,
		bdbCommissioning: true,
		panIDWildcard:    true,
		backup:           true,
	},
	VariantZStack30x: {
		hasConfiguredID:  nvHasConfiguredZStack3,
		keyRead:          keyViaSAPI,
		keyWrite:         keyViaNV,
		bdbCommissioning: true,
		panIDWildcard:    true,
		backup:           true,
	},
}

func profileOf(v Variant) (variantProfile, error) {
	p, ok := variantTable[v]
	if !ok {
		return variantProfile{}, &UnsupportedError{Reason: fmt.Sprintf("Z-Stack product %d is not supported", uint8(v))}
	}
	return p, nil
}

// readNetworkKey reads the pre-configured network key.
func (a *Adapter) readNetworkKey(ctx context.Context) ([]byte, error) {
	if a.profile.keyRead == keyViaSAPI {
		rsp, err := a.znp.Request(ctx, unpi.SAPI, "readConfiguration", znp.Payload{"configid": sapiPreCfgKey})
		if err != nil {
			return nil, err
		}
		return rsp.Payload.Bytes("value"), nil
	}
	return a.readNV(ctx, nvPreCfgKey)
}

// writeNetworkKey stores the pre-configured network key.
func (a *Adapter) writeNetworkKey(ctx context.Context, key []byte) error {
	if a.profile.keyWrite == keyViaSAPI {
		if _, err := a.znp.Request(ctx, unpi.SAPI, "writeConfiguration", znp.Payload{
			"configid": sapiPreCfgKey,
			"value":    key,
		}); err != nil {
			return err
		}
	} else if err := a.writeNV(ctx, nvPreCfgKey, key); err != nil {
		return err
	}

	if a.profile.writeDefaultTCLK {
		return a.writeNV(ctx, nvTCLKTableStart, legacyTCLK)
	}
	return nil
}
