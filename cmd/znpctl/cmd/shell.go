package cmd

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"

	"github.com/claudegel/zigbee-herdsman/pkg/zcl"
	"github.com/claudegel/zigbee-herdsman/pkg/zstack"
)

// operator is the part of the adapter the shell drives.
type operator interface {
	State() zstack.State
	GetCoordinatorVersion() (zstack.CoordinatorVersion, error)
	GetCoordinator(ctx context.Context) (zstack.Coordinator, error)
	GetNetworkParameters(ctx context.Context) (zstack.NetworkParameters, error)
	PermitJoin(ctx context.Context, seconds uint8) error
	NodeDescriptor(ctx context.Context, addr uint16) (zstack.NodeDescriptor, error)
	ActiveEndpoints(ctx context.Context, addr uint16) ([]uint8, error)
	SimpleDescriptor(ctx context.Context, addr uint16, endpoint uint8) (zstack.SimpleDescriptor, error)
	LQI(ctx context.Context, addr uint16) ([]zstack.Neighbor, error)
	RoutingTable(ctx context.Context, addr uint16) ([]zstack.Route, error)
	Bind(ctx context.Context, addr uint16, sourceIEEE string, sourceEndpoint uint8, clusterID uint16, target zstack.BindTarget) error
	Unbind(ctx context.Context, addr uint16, sourceIEEE string, sourceEndpoint uint8, clusterID uint16, target zstack.BindTarget) error
	RemoveDevice(ctx context.Context, addr uint16, ieeeAddr string) error
	SendZclFrameToEndpointWithResponse(ctx context.Context, addr uint16, endpoint uint8, frame *zcl.Frame) (*zstack.ZclData, error)
	SendZclFrameToGroup(ctx context.Context, groupID uint16, frame *zcl.Frame) error
	SoftReset(ctx context.Context) error
	DisableLED(ctx context.Context) error
}

var _ operator = (*zstack.Adapter)(nil)

// errQuit ends the shell loop.
var errQuit = errors.New("quit")

// shellTimeout bounds a single shell command.
const shellTimeout = 30 * time.Second

type shellCommand struct {
	usage string
	help  string
	min   int
	run   func(s *Shell, ctx context.Context, args []string) error
}

// Shell executes interactive coordinator commands.
type Shell struct {
	op     operator
	out    io.Writer
	backup func(ctx context.Context) error
	seq    atomic.Uint32
}

// NewShell creates a shell writing to out. backup may be nil.
func NewShell(op operator, out io.Writer, backup func(ctx context.Context) error) *Shell {
	return &Shell{op: op, out: out, backup: backup}
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"help":        {usage: "help", help: "Show this help", run: (*Shell).cmdHelp},
		"status":      {usage: "status", help: "Show adapter state and firmware", run: (*Shell).cmdStatus},
		"params":      {usage: "params", help: "Show network parameters", run: (*Shell).cmdParams},
		"coordinator": {usage: "coordinator", help: "Show coordinator endpoints", run: (*Shell).cmdCoordinator},
		"permitjoin":  {usage: "permitjoin <seconds>", help: "Open the network for joining (0 closes)", min: 1, run: (*Shell).cmdPermitJoin},
		"nodedesc":    {usage: "nodedesc <nwk>", help: "Request a node descriptor", min: 1, run: (*Shell).cmdNodeDesc},
		"endpoints":   {usage: "endpoints <nwk>", help: "List active endpoints", min: 1, run: (*Shell).cmdEndpoints},
		"simpledesc":  {usage: "simpledesc <nwk> <ep>", help: "Request a simple descriptor", min: 2, run: (*Shell).cmdSimpleDesc},
		"lqi":         {usage: "lqi <nwk>", help: "Show the neighbor table", min: 1, run: (*Shell).cmdLQI},
		"routes":      {usage: "routes <nwk>", help: "Show the routing table", min: 1, run: (*Shell).cmdRoutes},
		"read":        {usage: "read <nwk> <ep> <cluster> <attr>...", help: "Read attributes", min: 4, run: (*Shell).cmdRead},
		"groupcmd":    {usage: "groupcmd <group> <cluster> <cmd> [hex]", help: "Send a cluster command to a group", min: 3, run: (*Shell).cmdGroup},
		"bind":        {usage: "bind <nwk> <ieee> <ep> <cluster> (<ieee> <ep> | group <id>)", help: "Create a binding", min: 6, run: (*Shell).cmdBind},
		"unbind":      {usage: "unbind <nwk> <ieee> <ep> <cluster> (<ieee> <ep> | group <id>)", help: "Remove a binding", min: 6, run: (*Shell).cmdBind},
		"remove":      {usage: "remove <nwk> <ieee>", help: "Ask a device to leave", min: 2, run: (*Shell).cmdRemove},
		"backup":      {usage: "backup", help: "Write a backup to the configured file", run: (*Shell).cmdBackup},
		"reset":       {usage: "reset", help: "Soft reset the chip", run: (*Shell).cmdReset},
		"ledoff":      {usage: "ledoff", help: "Turn the chip LED off", run: (*Shell).cmdLEDOff},
		"quit":        {usage: "quit", help: "Exit", run: func(*Shell, context.Context, []string) error { return errQuit }},
	}
}

// Exec runs one command line. It returns errQuit when the shell should
// end.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name := strings.ToLower(fields[0])
	switch name {
	case "?":
		name = "help"
	case "exit", "q":
		name = "quit"
	}
	c, ok := shellCommands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", name)
	}
	args := fields[1:]
	if len(args) < c.min {
		return fmt.Errorf("usage: %s", c.usage)
	}
	if name == "bind" || name == "unbind" {
		args = fields
	}

	ctx, cancel := context.WithTimeout(ctx, shellTimeout)
	defer cancel()
	return c.run(s, ctx, args)
}

// Run reads commands from rl until quit, EOF or ctx ends.
func (s *Shell) Run(ctx context.Context, rl *readline.Instance) error {
	_ = s.cmdHelp(ctx, nil)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		if err := s.Exec(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *Shell) cmdHelp(context.Context, []string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(s.out, "Coordinator Commands:")
	for _, name := range names {
		c := shellCommands[name]
		fmt.Fprintf(s.out, "  %-62s - %s\n", c.usage, c.help)
	}
	return nil
}

func (s *Shell) cmdStatus(context.Context, []string) error {
	fmt.Fprintf(s.out, "State: %s\n", s.op.State())
	v, err := s.op.GetCoordinatorVersion()
	if err != nil {
		return nil
	}
	fmt.Fprintf(s.out, "Firmware: %s (product %d, revision %d)\n", v.Type, v.Meta.Product, v.Meta.Revision)
	return nil
}

func (s *Shell) cmdParams(ctx context.Context, _ []string) error {
	p, err := s.op.GetNetworkParameters(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "PAN ID: 0x%04x\nExtended PAN ID: %s\nChannel: %d\n", p.PanID, p.ExtendedPanID, p.Channel)
	return nil
}

func (s *Shell) cmdCoordinator(ctx context.Context, _ []string) error {
	c, err := s.op.GetCoordinator(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "IEEE: %s  NWK: 0x%04x  Manufacturer: 0x%04x\n", c.IEEEAddr, c.NetworkAddress, c.ManufacturerID)
	for _, ep := range c.Endpoints {
		s.printSimpleDescriptor(ep)
	}
	return nil
}

func (s *Shell) cmdPermitJoin(ctx context.Context, args []string) error {
	seconds, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid seconds %q", args[0])
	}
	if err := s.op.PermitJoin(ctx, uint8(seconds)); err != nil {
		return err
	}
	if seconds == 0 {
		fmt.Fprintln(s.out, "Joining disabled")
	} else {
		fmt.Fprintf(s.out, "Joining enabled for %ds\n", seconds)
	}
	return nil
}

func (s *Shell) cmdNodeDesc(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	d, err := s.op.NodeDescriptor(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Type: %s  Manufacturer: 0x%04x\n", d.Type, d.ManufacturerCode)
	return nil
}

func (s *Shell) cmdEndpoints(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	eps, err := s.op.ActiveEndpoints(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Endpoints: %v\n", eps)
	return nil
}

func (s *Shell) cmdSimpleDesc(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	ep, err := parseUint8(args[1])
	if err != nil {
		return err
	}
	d, err := s.op.SimpleDescriptor(ctx, addr, ep)
	if err != nil {
		return err
	}
	s.printSimpleDescriptor(d)
	return nil
}

func (s *Shell) printSimpleDescriptor(d zstack.SimpleDescriptor) {
	fmt.Fprintf(s.out, "  Endpoint %d profile=0x%04x device=0x%04x in=%s out=%s\n",
		d.EndpointID, d.ProfileID, d.DeviceID, hexList(d.InputClusters), hexList(d.OutputClusters))
}

func (s *Shell) cmdLQI(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	neighbors, err := s.op.LQI(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d neighbors\n", len(neighbors))
	for _, n := range neighbors {
		fmt.Fprintf(s.out, "  %s nwk=0x%04x lqi=%d depth=%d relationship=%d\n",
			n.IEEEAddr, n.NetworkAddress, n.LinkQuality, n.Depth, n.Relationship)
	}
	return nil
}

func (s *Shell) cmdRoutes(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	routes, err := s.op.RoutingTable(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d routes\n", len(routes))
	for _, r := range routes {
		fmt.Fprintf(s.out, "  0x%04x via 0x%04x %s\n", r.DestinationAddress, r.NextHop, r.Status)
	}
	return nil
}

func (s *Shell) nextSeq() uint8 {
	return uint8(s.seq.Add(1))
}

func (s *Shell) cmdRead(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	ep, err := parseUint8(args[1])
	if err != nil {
		return err
	}
	cluster, err := parseUint16(args[2])
	if err != nil {
		return err
	}
	payload := make([]byte, 0, 2*len(args[3:]))
	for _, a := range args[3:] {
		id, err := parseUint16(a)
		if err != nil {
			return err
		}
		payload = binary.LittleEndian.AppendUint16(payload, id)
	}

	frame := zcl.NewFrame(zcl.FrameTypeGlobal, zcl.ClientToServer, true, 0, s.nextSeq(), zcl.CommandRead, cluster, payload)
	rsp, err := s.op.SendZclFrameToEndpointWithResponse(ctx, addr, ep, frame)
	if err != nil {
		return err
	}
	if rsp == nil || rsp.Frame == nil {
		fmt.Fprintln(s.out, "No response")
		return nil
	}
	fmt.Fprintf(s.out, "%s (lqi %d)\n", rsp.Frame, rsp.LinkQuality)
	return nil
}

func (s *Shell) cmdGroup(ctx context.Context, args []string) error {
	group, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	cluster, err := parseUint16(args[1])
	if err != nil {
		return err
	}
	command, err := parseUint8(args[2])
	if err != nil {
		return err
	}
	var payload []byte
	if len(args) > 3 {
		if payload, err = parseHex(args[3]); err != nil {
			return err
		}
	}
	frame := zcl.NewFrame(zcl.FrameTypeSpecific, zcl.ClientToServer, true, 0, s.nextSeq(), command, cluster, payload)
	if err := s.op.SendZclFrameToGroup(ctx, group, frame); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Sent to group %d\n", group)
	return nil
}

// cmdBind receives the full field list so bind and unbind share it.
func (s *Shell) cmdBind(ctx context.Context, fields []string) error {
	name, args := strings.ToLower(fields[0]), fields[1:]
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	srcEP, err := parseUint8(args[2])
	if err != nil {
		return err
	}
	cluster, err := parseUint16(args[3])
	if err != nil {
		return err
	}

	var target zstack.BindTarget
	if strings.EqualFold(args[4], "group") {
		group, err := parseUint16(args[5])
		if err != nil {
			return err
		}
		target = zstack.GroupTarget(group)
	} else {
		dstEP, err := parseUint8(args[5])
		if err != nil {
			return err
		}
		target = zstack.EndpointTarget(args[4], dstEP)
	}

	if name == "unbind" {
		err = s.op.Unbind(ctx, addr, args[1], srcEP, cluster, target)
	} else {
		err = s.op.Bind(ctx, addr, args[1], srcEP, cluster, target)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, "OK")
	return nil
}

func (s *Shell) cmdRemove(ctx context.Context, args []string) error {
	addr, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	if err := s.op.RemoveDevice(ctx, addr, args[1]); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Leave requested")
	return nil
}

func (s *Shell) cmdBackup(ctx context.Context, _ []string) error {
	if s.backup == nil {
		return errors.New("no backup path configured")
	}
	if err := s.backup(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Backup written")
	return nil
}

func (s *Shell) cmdReset(ctx context.Context, _ []string) error {
	return s.op.SoftReset(ctx)
}

func (s *Shell) cmdLEDOff(ctx context.Context, _ []string) error {
	return s.op.DisableLED(ctx)
}

// parseUint16 accepts decimal and 0x prefixed hex.
func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid 16-bit value %q", s)
	}
	return uint16(v), nil
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid 8-bit value %q", s)
	}
	return uint8(v), nil
}

func parseHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func hexList(ids []uint16) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("0x%04x", id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
