package znp

import "fmt"

// Status is a Z-Stack command status code.
type Status uint8

const (
	StatusSuccess              Status = 0x00
	StatusFailure              Status = 0x01
	StatusInvalidParameter     Status = 0x02
	StatusNVItemUninit         Status = 0x09
	StatusNVOperFailed         Status = 0x0A
	StatusNVBadItemLength      Status = 0x0C
	StatusMemError             Status = 0x10
	StatusBufferFull           Status = 0x11
	StatusUnsupportedMode      Status = 0x12
	StatusMACMemError          Status = 0x13
	StatusZDOInvalidRequest    Status = 0x80
	StatusZDOInvalidEndpoint   Status = 0x82
	StatusZDOUnsupported       Status = 0x84
	StatusZDOTimeout           Status = 0x85
	StatusZDONoMatch           Status = 0x86
	StatusZDOTableFull         Status = 0x87
	StatusZDONoBindEntry       Status = 0x88
	StatusSecNoKey             Status = 0xA1
	StatusSecMaxFrameCount     Status = 0xA3
	StatusAPSFail              Status = 0xB1
	StatusAPSTableFull         Status = 0xB2
	StatusAPSIllegalRequest    Status = 0xB3
	StatusAPSInvalidBinding    Status = 0xB4
	StatusAPSUnsupportedAttrib Status = 0xB5
	StatusAPSNotSupported      Status = 0xB6
	StatusAPSNoAck             Status = 0xB7
	StatusAPSDuplicateEntry    Status = 0xB8
	StatusAPSNoBoundDevice     Status = 0xB9
	StatusNWKInvalidParam      Status = 0xC1
	StatusNWKInvalidRequest    Status = 0xC2
	StatusNWKNotPermitted      Status = 0xC3
	StatusNWKStartupFailure    Status = 0xC4
	StatusNWKTableFull         Status = 0xC7
	StatusNWKUnknownDevice     Status = 0xC8
	StatusNWKUnsupportedAttrib Status = 0xC9
	StatusNWKNoNetworks        Status = 0xCA
	StatusNWKLeaveUnconfirmed  Status = 0xCB
	StatusNWKNoAck             Status = 0xCC
	StatusNWKNoRoute           Status = 0xCD
	StatusMACChannelAccessFail Status = 0xE1
	StatusMACNoAck             Status = 0xE9
	StatusMACTransactionExpire Status = 0xF0
)

var statusNames = map[Status]string{
	StatusSuccess:              "SUCCESS",
	StatusFailure:              "FAILURE",
	StatusInvalidParameter:     "INVALID_PARAMETER",
	StatusNVItemUninit:         "NV_ITEM_UNINIT",
	StatusNVOperFailed:         "NV_OPER_FAILED",
	StatusNVBadItemLength:      "NV_BAD_ITEM_LEN",
	StatusMemError:             "MEM_ERROR",
	StatusBufferFull:           "BUFFER_FULL",
	StatusUnsupportedMode:      "UNSUPPORTED_MODE",
	StatusMACMemError:          "MAC_MEM_ERROR",
	StatusZDOInvalidRequest:    "ZDO_INVALID_REQUEST_TYPE",
	StatusZDOInvalidEndpoint:   "ZDO_INVALID_ENDPOINT",
	StatusZDOUnsupported:       "ZDO_UNSUPPORTED",
	StatusZDOTimeout:           "ZDO_TIMEOUT",
	StatusZDONoMatch:           "ZDO_NO_MATCH",
	StatusZDOTableFull:         "ZDO_TABLE_FULL",
	StatusZDONoBindEntry:       "ZDO_NO_BIND_ENTRY",
	StatusSecNoKey:             "SEC_NO_KEY",
	StatusSecMaxFrameCount:     "SEC_MAX_FRM_COUNT",
	StatusAPSFail:              "APS_FAIL",
	StatusAPSTableFull:         "APS_TABLE_FULL",
	StatusAPSIllegalRequest:    "APS_ILLEGAL_REQUEST",
	StatusAPSInvalidBinding:    "APS_INVALID_BINDING",
	StatusAPSUnsupportedAttrib: "APS_UNSUPPORTED_ATTRIB",
	StatusAPSNotSupported:      "APS_NOT_SUPPORTED",
	StatusAPSNoAck:             "APS_NO_ACK",
	StatusAPSDuplicateEntry:    "APS_DUPLICATE_ENTRY",
	StatusAPSNoBoundDevice:     "APS_NO_BOUND_DEVICE",
	StatusNWKInvalidParam:      "NWK_INVALID_PARAM",
	StatusNWKInvalidRequest:    "NWK_INVALID_REQUEST",
	StatusNWKNotPermitted:      "NWK_NOT_PERMITTED",
	StatusNWKStartupFailure:    "NWK_STARTUP_FAILURE",
	StatusNWKTableFull:         "NWK_TABLE_FULL",
	StatusNWKUnknownDevice:     "NWK_UNKNOWN_DEVICE",
	StatusNWKUnsupportedAttrib: "NWK_UNSUPPORTED_ATTRIBUTE",
	StatusNWKNoNetworks:        "NWK_NO_NETWORKS",
	StatusNWKLeaveUnconfirmed:  "NWK_LEAVE_UNCONFIRMED",
	StatusNWKNoAck:             "NWK_NO_ACK",
	StatusNWKNoRoute:           "NWK_NO_ROUTE",
	StatusMACChannelAccessFail: "MAC_CHANNEL_ACCESS_FAILURE",
	StatusMACNoAck:             "MAC_NO_ACK",
	StatusMACTransactionExpire: "MAC_TRANSACTION_EXPIRED",
}

// String returns the Z-Stack status name.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(s))
}
