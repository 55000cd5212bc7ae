package zstack

import "time"

// NV item identifiers (ZCD_NV_*).
const (
	nvExtAddr                  uint16 = 0x0001
	nvStartupOption            uint16 = 0x0003
	nvNIB                      uint16 = 0x0021
	nvExtendedPanID            uint16 = 0x002D
	nvNwkActiveKeyInfo         uint16 = 0x003A
	nvNwkAlternKeyInfo         uint16 = 0x003B
	nvAPSUseExtPanID           uint16 = 0x0047
	nvBDBNodeIsOnANetwork      uint16 = 0x004E
	nvPreCfgKey                uint16 = 0x0062
	nvPreCfgKeysEnable         uint16 = 0x0063
	nvNwkSecMaterialTableStart uint16 = 0x0075
	nvPanID                    uint16 = 0x0083
	nvChanList                 uint16 = 0x0084
	nvLogicalType              uint16 = 0x0087
	nvZDODirectCB              uint16 = 0x008F
	nvTCLKTableStart           uint16 = 0x0101

	// Application flags marking a commissioned chip.
	nvHasConfiguredZStack1 uint16 = 0x0F00
	nvHasConfiguredZStack3 uint16 = 0x0060
)

// SAPI configuration id of the pre-configured network key.
const sapiPreCfgKey uint8 = 0x62

const (
	hasConfiguredValue = 0x55

	// startupOptionClearState wipes network state on the next reset.
	startupOptionClearState = 0x02

	logicalTypeCoordinator = 0x00

	// deviceStateCoordinator is the ZDO state of a started coordinator.
	deviceStateCoordinator = 9

	resetTypeSoft = 1
)

// BDB commissioning modes.
const (
	bdbModeNetworkSteering  = 0x02
	bdbModeNetworkFormation = 0x04
)

// Data plane constants.
const (
	srcEndpoint       = 1
	defaultRadius     = 30
	groupEndpoint     = 0xFF
	addrModeGroup     = 1
	addrModeNwk       = 2
	addrModeIEEE      = 3
	broadcastAddress  = 0xFFFC
	broadcastAddrMode = 0x0F
)

// Default timeouts.
const (
	DefaultDataConfirmTimeout     = 10 * time.Second
	DefaultResponseTimeout        = 10 * time.Second
	DefaultDefaultResponseTimeout = 15 * time.Second
	DefaultZDOTimeout             = 10 * time.Second
	DefaultCommissioningTimeout   = 60 * time.Second
)

// legacyTCLK is the default trust center link key record written on legacy
// firmware: wildcard address, "ZigBeeAlliance09", zero frame counters.
var legacyTCLK = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0x5A, 0x69, 0x67, 0x42, 0x65, 0x65, 0x41, 0x6C,
	0x6C, 0x69, 0x61, 0x6E, 0x63, 0x65, 0x30, 0x39,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// backupItem names one NV item captured by Backup.
type backupItem struct {
	name string
	id   uint16
}

// backupItems lists the captured items in restore order.
var backupItems = []backupItem{
	{"ZCD_NV_EXTADDR", nvExtAddr},
	{"ZCD_NV_NIB", nvNIB},
	{"ZCD_NV_PANID", nvPanID},
	{"ZCD_NV_EXTENDED_PAN_ID", nvExtendedPanID},
	{"ZCD_NV_NWK_ACTIVE_KEY_INFO", nvNwkActiveKeyInfo},
	{"ZCD_NV_NWK_ALTERN_KEY_INFO", nvNwkAlternKeyInfo},
	{"ZCD_NV_APS_USE_EXT_PANID", nvAPSUseExtPanID},
	{"ZCD_NV_PRECFGKEY", nvPreCfgKey},
	{"ZCD_NV_PRECFGKEY_ENABLE", nvPreCfgKeysEnable},
	{"ZCD_NV_TCLK_TABLE_START", nvTCLKTableStart},
	{"ZCD_NV_NWK_SEC_MATERIAL_TABLE_START", nvNwkSecMaterialTableStart},
	{"ZCD_NV_CHANLIST", nvChanList},
}

// Backup item names referenced during restore validation.
const (
	itemChanList      = "ZCD_NV_CHANLIST"
	itemPreCfgKey     = "ZCD_NV_PRECFGKEY"
	itemPanID         = "ZCD_NV_PANID"
	itemExtendedPanID = "ZCD_NV_EXTENDED_PAN_ID"
	itemNIB           = "ZCD_NV_NIB"
)

// endpointDef is an application endpoint registered on the coordinator.
type endpointDef struct {
	id          uint8
	profileID   uint16
	outClusters []uint16
}

const deviceIDConfigurationTool = 0x0005

// endpoints is the fixed coordinator endpoint table.
var endpoints = []endpointDef{
	{id: 1, profileID: 0x0104},
	{id: 2, profileID: 0x0101},
	{id: 3, profileID: 0x0105},
	{id: 4, profileID: 0x0107},
	{id: 5, profileID: 0x0108},
	{id: 6, profileID: 0x0109},
	{id: 11, profileID: 0x0104, outClusters: []uint16{0x0500}},
}
