package znp

import (
	"fmt"

	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
)

// Definition describes one MT command: its identifier, frame type and the
// parameter layout of the request and of the synchronous response.
type Definition struct {
	Name     string
	ID       uint8
	Type     unpi.Type
	Request  []Parameter
	Response []Parameter
}

func p(name string, t ParameterType) Parameter { return Parameter{Name: name, Type: t} }

var statusOnly = []Parameter{p("status", Uint8)}

var definitions = map[unpi.Subsystem][]Definition{
	unpi.SYS: {
		{Name: "resetReq", ID: 0x00, Type: unpi.AREQ, Request: []Parameter{p("type", Uint8)}},
		{Name: "ping", ID: 0x01, Type: unpi.SREQ, Response: []Parameter{p("capabilities", Uint16)}},
		{Name: "version", ID: 0x02, Type: unpi.SREQ, Response: []Parameter{
			p("transportrev", Uint8), p("product", Uint8), p("majorrel", Uint8),
			p("minorrel", Uint8), p("maintrel", Uint8), p("revision", Uint32),
		}},
		{Name: "osalNvItemInit", ID: 0x07, Type: unpi.SREQ, Request: []Parameter{
			p("id", Uint16), p("len", Uint16), p("initlen", Uint8), p("initvalue", Buffer),
		}, Response: statusOnly},
		{Name: "osalNvRead", ID: 0x08, Type: unpi.SREQ, Request: []Parameter{
			p("id", Uint16), p("offset", Uint8),
		}, Response: []Parameter{p("status", Uint8), p("len", Uint8), p("value", Buffer)}},
		{Name: "osalNvWrite", ID: 0x09, Type: unpi.SREQ, Request: []Parameter{
			p("id", Uint16), p("offset", Uint8), p("len", Uint8), p("value", Buffer),
		}, Response: statusOnly},
		{Name: "osalNvDelete", ID: 0x12, Type: unpi.SREQ, Request: []Parameter{
			p("id", Uint16), p("len", Uint16),
		}, Response: statusOnly},
		{Name: "osalNvLength", ID: 0x13, Type: unpi.SREQ, Request: []Parameter{
			p("id", Uint16),
		}, Response: []Parameter{p("length", Uint16)}},
		{Name: "resetInd", ID: 0x80, Type: unpi.AREQ, Request: []Parameter{
			p("reason", Uint8), p("transportrev", Uint8), p("productid", Uint8),
			p("majorrel", Uint8), p("minorrel", Uint8), p("hwrev", Uint8),
		}},
	},
	unpi.AF: {
		{Name: "register", ID: 0x00, Type: unpi.SREQ, Request: []Parameter{
			p("endpoint", Uint8), p("appprofid", Uint16), p("appdeviceid", Uint16),
			p("appdevver", Uint8), p("latencyreq", Uint8),
			p("appnuminclusters", Uint8), p("appinclusterlist", ListUint16),
			p("appnumoutclusters", Uint8), p("appoutclusterlist", ListUint16),
		}, Response: statusOnly},
		{Name: "dataRequest", ID: 0x01, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("destendpoint", Uint8), p("srcendpoint", Uint8),
			p("clusterid", Uint16), p("transid", Uint8), p("options", Uint8),
			p("radius", Uint8), p("len", Uint8), p("data", Buffer),
		}, Response: statusOnly},
		{Name: "dataRequestExt", ID: 0x02, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddrmode", Uint8), p("dstaddr", IEEEAddr), p("destendpoint", Uint8),
			p("dstpanid", Uint16), p("srcendpoint", Uint8), p("clusterid", Uint16),
			p("transid", Uint8), p("options", Uint8), p("radius", Uint8),
			p("len", Uint16), p("data", Buffer),
		}, Response: statusOnly},
		{Name: "dataConfirm", ID: 0x80, Type: unpi.AREQ, Request: []Parameter{
			p("status", Uint8), p("endpoint", Uint8), p("transid", Uint8),
		}},
		{Name: "incomingMsg", ID: 0x81, Type: unpi.AREQ, Request: []Parameter{
			p("groupid", Uint16), p("clusterid", Uint16), p("srcaddr", Uint16),
			p("srcendpoint", Uint8), p("dstendpoint", Uint8), p("wasbroadcast", Uint8),
			p("linkquality", Uint8), p("securityuse", Uint8), p("timestamp", Uint32),
			p("transseqnumber", Uint8), p("len", Uint8), p("data", Buffer),
		}},
		{Name: "incomingMsgExt", ID: 0x82, Type: unpi.AREQ, Request: []Parameter{
			p("groupid", Uint16), p("clusterid", Uint16), p("srcaddrmode", Uint8),
			p("srcaddr", IEEEAddr), p("srcendpoint", Uint8), p("srcpanid", Uint16),
			p("dstendpoint", Uint8), p("wasbroadcast", Uint8), p("linkquality", Uint8),
			p("securityuse", Uint8), p("timestamp", Uint32), p("transseqnumber", Uint8),
			p("len", Uint16), p("data", Buffer),
		}},
	},
	unpi.ZDO: {
		{Name: "nodeDescReq", ID: 0x02, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("nwkaddrofinterest", Uint16),
		}, Response: statusOnly},
		{Name: "simpleDescReq", ID: 0x04, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("nwkaddrofinterest", Uint16), p("endpoint", Uint8),
		}, Response: statusOnly},
		{Name: "activeEpReq", ID: 0x05, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("nwkaddrofinterest", Uint16),
		}, Response: statusOnly},
		{Name: "bindReq", ID: 0x21, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("srcaddr", IEEEAddr), p("srcendpoint", Uint8),
			p("clusterid", Uint16), p("dstaddrmode", Uint8), p("dstaddress", IEEEAddr),
			p("dstendpoint", Uint8),
		}, Response: statusOnly},
		{Name: "unbindReq", ID: 0x22, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("srcaddr", IEEEAddr), p("srcendpoint", Uint8),
			p("clusterid", Uint16), p("dstaddrmode", Uint8), p("dstaddress", IEEEAddr),
			p("dstendpoint", Uint8),
		}, Response: statusOnly},
		{Name: "mgmtLqiReq", ID: 0x31, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("startindex", Uint8),
		}, Response: statusOnly},
		{Name: "mgmtRtgReq", ID: 0x32, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("startindex", Uint8),
		}, Response: statusOnly},
		{Name: "mgmtLeaveReq", ID: 0x34, Type: unpi.SREQ, Request: []Parameter{
			p("dstaddr", Uint16), p("deviceaddress", IEEEAddr), p("removechildrenRejoin", Uint8),
		}, Response: statusOnly},
		{Name: "mgmtPermitJoinReq", ID: 0x36, Type: unpi.SREQ, Request: []Parameter{
			p("addrmode", Uint8), p("dstaddr", Uint16), p("duration", Uint8), p("tcsignificance", Uint8),
		}, Response: statusOnly},
		{Name: "startupFromApp", ID: 0x40, Type: unpi.SREQ, Request: []Parameter{
			p("startdelay", Uint16),
		}, Response: statusOnly},
		{Name: "extNwkInfo", ID: 0x50, Type: unpi.SREQ, Response: []Parameter{
			p("shortaddr", Uint16), p("devstate", Uint8), p("panid", Uint16),
			p("parentaddr", Uint16), p("extendedpanid", IEEEAddr),
			p("parentextaddr", IEEEAddr), p("channel", Uint8),
		}},
		{Name: "nodeDescRsp", ID: 0x82, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8), p("nwkaddr", Uint16),
			p("logicaltype_cmplxdescavai_userdescavai", Uint8), p("apsflags_freqband", Uint8),
			p("maccapflags", Uint8), p("manufacturercode", Uint16), p("maxbuffersize", Uint8),
			p("maxintransfersize", Uint16), p("servermask", Uint16),
			p("maxouttransfersize", Uint16), p("descriptorcap", Uint8),
		}},
		{Name: "simpleDescRsp", ID: 0x84, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8), p("nwkaddr", Uint16), p("len", Uint8),
			p("endpoint", Uint8), p("profileid", Uint16), p("deviceid", Uint16),
			p("deviceversion", Uint8), p("numinclusters", Uint8), p("inclusterlist", ListUint16),
			p("numoutclusters", Uint8), p("outclusterlist", ListUint16),
		}},
		{Name: "activeEpRsp", ID: 0x85, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8), p("nwkaddr", Uint16),
			p("activeepcount", Uint8), p("activeeplist", ListUint8),
		}},
		{Name: "bindRsp", ID: 0xA1, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8),
		}},
		{Name: "unbindRsp", ID: 0xA2, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8),
		}},
		{Name: "mgmtLqiRsp", ID: 0xB1, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8), p("neighbortableentries", Uint8),
			p("startindex", Uint8), p("neighborlqilistcount", Uint8),
			p("neighborlqilist", ListNeighborLqi),
		}},
		{Name: "mgmtRtgRsp", ID: 0xB2, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8), p("routingtableentries", Uint8),
			p("startindex", Uint8), p("routingtablelistcount", Uint8),
			p("routingtablelist", ListRoutingTable),
		}},
		{Name: "mgmtLeaveRsp", ID: 0xB4, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8),
		}},
		{Name: "mgmtPermitJoinRsp", ID: 0xB6, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("status", Uint8),
		}},
		{Name: "stateChangeInd", ID: 0xC0, Type: unpi.AREQ, Request: []Parameter{
			p("state", Uint8),
		}},
		{Name: "endDeviceAnnceInd", ID: 0xC1, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("nwkaddr", Uint16), p("ieeeaddr", IEEEAddr), p("capabilities", Uint8),
		}},
		{Name: "leaveInd", ID: 0xC9, Type: unpi.AREQ, Request: []Parameter{
			p("srcaddr", Uint16), p("extaddr", IEEEAddr), p("request", Uint8),
			p("removechildren", Uint8), p("rejoin", Uint8),
		}},
		{Name: "tcDeviceInd", ID: 0xCA, Type: unpi.AREQ, Request: []Parameter{
			p("nwkaddr", Uint16), p("extaddr", IEEEAddr), p("parentaddr", Uint16),
		}},
		{Name: "permitJoinInd", ID: 0xCB, Type: unpi.AREQ, Request: []Parameter{
			p("duration", Uint8),
		}},
	},
	unpi.SAPI: {
		{Name: "readConfiguration", ID: 0x04, Type: unpi.SREQ, Request: []Parameter{
			p("configid", Uint8),
		}, Response: []Parameter{p("status", Uint8), p("configid", Uint8), p("len", Uint8), p("value", Buffer)}},
		{Name: "writeConfiguration", ID: 0x05, Type: unpi.SREQ, Request: []Parameter{
			p("configid", Uint8), p("len", Uint8), p("value", Buffer),
		}, Response: statusOnly},
	},
	unpi.UTIL: {
		{Name: "getDeviceInfo", ID: 0x00, Type: unpi.SREQ, Response: []Parameter{
			p("status", Uint8), p("ieeeaddr", IEEEAddr), p("shortaddr", Uint16),
			p("devicetype", Uint8), p("devicestate", Uint8),
			p("numassocdevices", Uint8), p("assocdeviceslist", ListUint16),
		}},
		{Name: "ledControl", ID: 0x0A, Type: unpi.SREQ, Request: []Parameter{
			p("ledid", Uint8), p("mode", Uint8),
		}, Response: statusOnly},
	},
	unpi.APPConfig: {
		{Name: "bdbStartCommissioning", ID: 0x05, Type: unpi.SREQ, Request: []Parameter{
			p("mode", Uint8),
		}, Response: statusOnly},
		{Name: "bdbSetChannel", ID: 0x08, Type: unpi.SREQ, Request: []Parameter{
			p("isPrimary", Uint8), p("channel", Uint32),
		}, Response: statusOnly},
		{Name: "bdbComissioningNotifcation", ID: 0x80, Type: unpi.AREQ, Request: []Parameter{
			p("status", Uint8), p("commissioningmode", Uint8), p("remainingcommissioningmodes", Uint8),
		}},
	},
}

type defKey struct {
	subsystem unpi.Subsystem
	id        uint8
	inbound   bool
}

var (
	byName = map[unpi.Subsystem]map[string]*Definition{}
	byID   = map[defKey]*Definition{}
)

func init() {
	for subsystem, defs := range definitions {
		byName[subsystem] = map[string]*Definition{}
		for i := range defs {
			d := &defs[i]
			byName[subsystem][d.Name] = d
			// SRSP frames share the SREQ id; AREQ frames are keyed on their own id.
			byID[defKey{subsystem, d.ID, d.Type == unpi.AREQ}] = d
		}
	}
}

// Lookup returns the definition of a named command.
func Lookup(subsystem unpi.Subsystem, command string) (*Definition, error) {
	if d, ok := byName[subsystem][command]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrUnknownCommand, subsystem, command)
}

// lookupFrame returns the definition of a received frame.
func lookupFrame(t unpi.Type, subsystem unpi.Subsystem, id uint8) (*Definition, error) {
	if d, ok := byID[defKey{subsystem, id, t == unpi.AREQ}]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s %s 0x%02x", ErrUnknownCommand, t, subsystem, id)
}
