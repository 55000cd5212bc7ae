package zcl

// Command describes one ZCL command.
type Command struct {
	Name        string
	ID          uint8
	Response    uint8
	HasResponse bool
}

// Global command identifiers.
const (
	CommandRead                   uint8 = 0x00
	CommandReadRsp                uint8 = 0x01
	CommandWrite                  uint8 = 0x02
	CommandWriteUndiv             uint8 = 0x03
	CommandWriteRsp               uint8 = 0x04
	CommandWriteNoRsp             uint8 = 0x05
	CommandConfigReport           uint8 = 0x06
	CommandConfigReportRsp        uint8 = 0x07
	CommandReadReportConfig       uint8 = 0x08
	CommandReadReportConfigRsp    uint8 = 0x09
	CommandReport                 uint8 = 0x0A
	CommandDefaultRsp             uint8 = 0x0B
	CommandDiscover               uint8 = 0x0C
	CommandDiscoverRsp            uint8 = 0x0D
	CommandReadStructured         uint8 = 0x0E
	CommandWriteStructured        uint8 = 0x0F
	CommandWriteStructuredRsp     uint8 = 0x10
	CommandDiscoverCommands       uint8 = 0x11
	CommandDiscoverCommandsRsp    uint8 = 0x12
	CommandDiscoverCommandsGen    uint8 = 0x13
	CommandDiscoverCommandsGenRsp uint8 = 0x14
	CommandDiscoverExtended       uint8 = 0x15
	CommandDiscoverExtendedRsp    uint8 = 0x16
)

func cmd(name string, id uint8) Command { return Command{Name: name, ID: id} }

func cmdRsp(name string, id, rsp uint8) Command {
	return Command{Name: name, ID: id, Response: rsp, HasResponse: true}
}

var globalCommands = map[uint8]Command{
	CommandRead:                   cmdRsp("read", CommandRead, CommandReadRsp),
	CommandReadRsp:                cmd("readRsp", CommandReadRsp),
	CommandWrite:                  cmdRsp("write", CommandWrite, CommandWriteRsp),
	CommandWriteUndiv:             cmd("writeUndiv", CommandWriteUndiv),
	CommandWriteRsp:               cmd("writeRsp", CommandWriteRsp),
	CommandWriteNoRsp:             cmd("writeNoRsp", CommandWriteNoRsp),
	CommandConfigReport:           cmdRsp("configReport", CommandConfigReport, CommandConfigReportRsp),
	CommandConfigReportRsp:        cmd("configReportRsp", CommandConfigReportRsp),
	CommandReadReportConfig:       cmdRsp("readReportConfig", CommandReadReportConfig, CommandReadReportConfigRsp),
	CommandReadReportConfigRsp:    cmd("readReportConfigRsp", CommandReadReportConfigRsp),
	CommandReport:                 cmd("report", CommandReport),
	CommandDefaultRsp:             cmd("defaultRsp", CommandDefaultRsp),
	CommandDiscover:               cmdRsp("discover", CommandDiscover, CommandDiscoverRsp),
	CommandDiscoverRsp:            cmd("discoverRsp", CommandDiscoverRsp),
	CommandReadStructured:         cmd("readStructured", CommandReadStructured),
	CommandWriteStructured:        cmdRsp("writeStructured", CommandWriteStructured, CommandWriteStructuredRsp),
	CommandWriteStructuredRsp:     cmd("writeStructuredRsp", CommandWriteStructuredRsp),
	CommandDiscoverCommands:       cmdRsp("discoverCommands", CommandDiscoverCommands, CommandDiscoverCommandsRsp),
	CommandDiscoverCommandsRsp:    cmd("discoverCommandsRsp", CommandDiscoverCommandsRsp),
	CommandDiscoverCommandsGen:    cmdRsp("discoverCommandsGen", CommandDiscoverCommandsGen, CommandDiscoverCommandsGenRsp),
	CommandDiscoverCommandsGenRsp: cmd("discoverCommandsGenRsp", CommandDiscoverCommandsGenRsp),
	CommandDiscoverExtended:       cmdRsp("discoverExt", CommandDiscoverExtended, CommandDiscoverExtendedRsp),
	CommandDiscoverExtendedRsp:    cmd("discoverExtRsp", CommandDiscoverExtendedRsp),
}

// Cluster identifiers with cluster-specific command entries.
const (
	ClusterGroups uint16 = 0x0004
	ClusterScenes uint16 = 0x0005
)

type clusterCommandKey struct {
	cluster   uint16
	direction Direction
	id        uint8
}

// Groups and Scenes answer most requests with a same-numbered response.
var clusterCommands = map[clusterCommandKey]Command{
	{ClusterGroups, ClientToServer, 0x00}: cmdRsp("add", 0x00, 0x00),
	{ClusterGroups, ClientToServer, 0x01}: cmdRsp("view", 0x01, 0x01),
	{ClusterGroups, ClientToServer, 0x02}: cmdRsp("getMembership", 0x02, 0x02),
	{ClusterGroups, ClientToServer, 0x03}: cmdRsp("remove", 0x03, 0x03),
	{ClusterGroups, ClientToServer, 0x04}: cmd("removeAll", 0x04),
	{ClusterGroups, ClientToServer, 0x05}: cmd("addIfIdentifying", 0x05),
	{ClusterGroups, ServerToClient, 0x00}: cmd("addRsp", 0x00),
	{ClusterGroups, ServerToClient, 0x01}: cmd("viewRsp", 0x01),
	{ClusterGroups, ServerToClient, 0x02}: cmd("getMembershipRsp", 0x02),
	{ClusterGroups, ServerToClient, 0x03}: cmd("removeRsp", 0x03),

	{ClusterScenes, ClientToServer, 0x00}: cmdRsp("add", 0x00, 0x00),
	{ClusterScenes, ClientToServer, 0x01}: cmdRsp("view", 0x01, 0x01),
	{ClusterScenes, ClientToServer, 0x02}: cmdRsp("remove", 0x02, 0x02),
	{ClusterScenes, ClientToServer, 0x03}: cmdRsp("removeAll", 0x03, 0x03),
	{ClusterScenes, ClientToServer, 0x04}: cmdRsp("store", 0x04, 0x04),
	{ClusterScenes, ClientToServer, 0x05}: cmd("recall", 0x05),
	{ClusterScenes, ClientToServer, 0x06}: cmdRsp("getSceneMembership", 0x06, 0x06),
	{ClusterScenes, ServerToClient, 0x00}: cmd("addRsp", 0x00),
	{ClusterScenes, ServerToClient, 0x01}: cmd("viewRsp", 0x01),
	{ClusterScenes, ServerToClient, 0x02}: cmd("removeRsp", 0x02),
	{ClusterScenes, ServerToClient, 0x03}: cmd("removeAllRsp", 0x03),
	{ClusterScenes, ServerToClient, 0x04}: cmd("storeRsp", 0x04),
	{ClusterScenes, ServerToClient, 0x06}: cmd("getSceneMembershipRsp", 0x06),
}

// GlobalCommand looks up a global command by name.
func GlobalCommand(name string) (Command, bool) {
	for _, c := range globalCommands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}
