package zstack

import (
	"bytes"
	"context"
	"fmt"

	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// VersionInfo is the firmware identification reported by SYS version.
type VersionInfo struct {
	Variant      Variant
	TransportRev uint8
	Product      uint8
	MajorRel     uint8
	MinorRel     uint8
	MaintRel     uint8
	Revision     uint32
}

// CoordinatorVersion is the result of GetCoordinatorVersion.
type CoordinatorVersion struct {
	Type string
	Meta VersionInfo
}

// Start opens the link and brings the coordinator onto the configured
// network: resuming it, forming it from scratch or restoring the
// configured backup.
func (a *Adapter) Start(ctx context.Context) (StartResult, error) {
	a.stopping.Store(false)
	if err := a.znp.Open(ctx); err != nil {
		return "", err
	}

	if err := a.queryVersion(ctx); err != nil {
		return "", err
	}
	a.logger.Info("detected firmware", "variant", a.version.Variant.String(), "revision", a.version.Revision)

	configured, err := a.hasConfigured(ctx)
	if err != nil {
		return "", err
	}

	var result StartResult
	switch {
	case a.opts.Backup != nil && !configured:
		a.setState(StateRestore, "backup supplied for unconfigured chip")
		if err := a.restoreItems(ctx, a.opts.Backup); err != nil {
			return "", err
		}
		result = StartRestored

	default:
		valid, err := a.networkMatches(ctx, configured)
		if err != nil {
			return "", err
		}
		if valid {
			a.setState(StateResume, "network parameters match")
			result = StartResumed
		} else {
			a.setState(StateReset, "network parameters differ")
			if err := a.formNetwork(ctx); err != nil {
				return "", err
			}
			result = StartResetted
		}
	}

	if err := a.boot(ctx); err != nil {
		return "", err
	}
	if err := a.registerEndpoints(ctx); err != nil {
		return "", err
	}
	if result == StartRestored {
		if err := a.restoreChannelList(ctx, a.opts.Backup); err != nil {
			return "", err
		}
	}
	a.setState(StateReady, string(result))
	a.startKeepAlive()
	a.logger.Info("coordinator started", "result", string(result))
	return result, nil
}

func (a *Adapter) queryVersion(ctx context.Context) error {
	rsp, err := a.znp.Request(ctx, unpi.SYS, "version", nil)
	if err != nil {
		return err
	}
	p := rsp.Payload
	v := &VersionInfo{
		Variant:      Variant(p.Uint8("product")),
		TransportRev: p.Uint8("transportrev"),
		Product:      p.Uint8("product"),
		MajorRel:     p.Uint8("majorrel"),
		MinorRel:     p.Uint8("minorrel"),
		MaintRel:     p.Uint8("maintrel"),
		Revision:     p.Uint32("revision"),
	}
	profile, err := profileOf(v.Variant)
	if err != nil {
		return err
	}
	a.version = v
	a.profile = profile
	a.setState(StateVersionQueried, v.Variant.String())
	return nil
}

// hasConfigured reads the variant's commissioned flag. A missing item
// reads as unconfigured.
func (a *Adapter) hasConfigured(ctx context.Context) (bool, error) {
	rsp, err := a.znp.Request(ctx, unpi.SYS, "osalNvRead",
		znp.Payload{"id": a.profile.hasConfiguredID, "offset": 0},
		znp.WithExpectedStatus(znp.StatusSuccess, znp.StatusNVItemUninit, znp.StatusNVOperFailed))
	if err != nil {
		return false, err
	}
	if znp.Status(rsp.Payload.Uint8("status")) != znp.StatusSuccess {
		return false, nil
	}
	value := rsp.Payload.Bytes("value")
	return len(value) > 0 && value[0] == hasConfiguredValue, nil
}

// networkMatches compares the chip's stored network parameters with the
// configured ones, stopping at the first difference.
func (a *Adapter) networkMatches(ctx context.Context, configured bool) (bool, error) {
	if !configured {
		a.logger.Info("chip not configured")
		return false, nil
	}
	net := a.opts.Network

	checks := []struct {
		name string
		read func(context.Context) ([]byte, error)
		want []byte
	}{
		{"channel list", a.nvReader(nvChanList), net.channelMaskBytes()},
		{"key distribution", a.nvReader(nvPreCfgKeysEnable), net.distributeFlag()},
		{"network key", a.readNetworkKey, net.NetworkKey[:]},
		{"PAN id", a.nvReader(nvPanID), net.panIDBytes()},
		{"extended PAN id", a.nvReader(nvExtendedPanID), net.ExtendedPanID[:]},
	}
	for _, c := range checks {
		got, err := c.read(ctx)
		if err != nil {
			return false, err
		}
		if bytes.Equal(got, c.want) {
			continue
		}
		if c.name == "PAN id" && a.profile.panIDWildcard && bytes.Equal(got, []byte{0xFF, 0xFF}) {
			continue
		}
		a.logger.Info("stored network differs", "field", c.name, "stored", fmt.Sprintf("% x", got))
		return false, nil
	}
	return true, nil
}

func (a *Adapter) nvReader(id uint16) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return a.readNV(ctx, id)
	}
}

// formNetwork wipes the chip's network state and commissions the
// configured network.
func (a *Adapter) formNetwork(ctx context.Context) error {
	net := a.opts.Network

	if err := a.resetChip(ctx); err != nil {
		return err
	}
	if err := a.writeNV(ctx, nvStartupOption, []byte{startupOptionClearState}); err != nil {
		return err
	}
	if err := a.resetChip(ctx); err != nil {
		return err
	}

	writes := []struct {
		id    uint16
		value []byte
	}{
		{nvLogicalType, []byte{logicalTypeCoordinator}},
		{nvPreCfgKeysEnable, net.distributeFlag()},
		{nvZDODirectCB, []byte{1}},
		{nvChanList, net.channelMaskBytes()},
		{nvPanID, net.panIDBytes()},
		{nvExtendedPanID, net.ExtendedPanID[:]},
	}
	for _, w := range writes {
		if err := a.writeNV(ctx, w.id, w.value); err != nil {
			return err
		}
	}
	if err := a.writeNetworkKey(ctx, net.NetworkKey[:]); err != nil {
		return err
	}

	if a.profile.bdbCommissioning {
		if err := a.commission(ctx, net.ChannelMask()); err != nil {
			return err
		}
	}
	return a.markConfigured(ctx)
}

// commission runs BDB network formation followed by network steering.
func (a *Adapter) commission(ctx context.Context, mask uint32) error {
	if _, err := a.znp.Request(ctx, unpi.APPConfig, "bdbSetChannel", znp.Payload{"isPrimary": 1, "channel": mask}); err != nil {
		return err
	}
	if _, err := a.znp.Request(ctx, unpi.APPConfig, "bdbSetChannel", znp.Payload{"isPrimary": 0, "channel": 0}); err != nil {
		return err
	}

	started := a.znp.WaitFor(unpi.AREQ, unpi.ZDO, "stateChangeInd",
		znp.Payload{"state": deviceStateCoordinator}, a.opts.Timeouts.Commissioning)
	if _, err := a.znp.Request(ctx, unpi.APPConfig, "bdbStartCommissioning", znp.Payload{"mode": bdbModeNetworkFormation}); err != nil {
		started.Cancel()
		return err
	}
	if _, err := started.Wait(ctx); err != nil {
		return fmt.Errorf("network formation: %w", err)
	}

	_, err := a.znp.Request(ctx, unpi.APPConfig, "bdbStartCommissioning", znp.Payload{"mode": bdbModeNetworkSteering})
	return err
}

func (a *Adapter) markConfigured(ctx context.Context) error {
	value := []byte{hasConfiguredValue}
	if err := a.initNV(ctx, a.profile.hasConfiguredID, value); err != nil {
		return err
	}
	return a.writeNV(ctx, a.profile.hasConfiguredID, value)
}

func (a *Adapter) resetChip(ctx context.Context) error {
	_, err := a.znp.Request(ctx, unpi.SYS, "resetReq", znp.Payload{"type": resetTypeSoft})
	return err
}

// boot starts the coordinator application unless it is already running.
func (a *Adapter) boot(ctx context.Context) error {
	rsp, err := a.znp.Request(ctx, unpi.UTIL, "getDeviceInfo", nil)
	if err != nil {
		return err
	}
	if rsp.Payload.Uint8("devicestate") == deviceStateCoordinator {
		return nil
	}

	a.logger.Info("starting coordinator application")
	started := a.znp.WaitFor(unpi.AREQ, unpi.ZDO, "stateChangeInd",
		znp.Payload{"state": deviceStateCoordinator}, a.opts.Timeouts.Commissioning)
	// 0: restored network state, 1: new network state.
	if _, err := a.znp.Request(ctx, unpi.ZDO, "startupFromApp", znp.Payload{"startdelay": 100},
		znp.WithExpectedStatus(znp.StatusSuccess, znp.StatusFailure)); err != nil {
		started.Cancel()
		return err
	}
	if _, err := started.Wait(ctx); err != nil {
		return fmt.Errorf("coordinator startup: %w", err)
	}
	return nil
}

// registerEndpoints registers every endpoint of the fixed table the chip
// does not report as active.
func (a *Adapter) registerEndpoints(ctx context.Context) error {
	active := a.zdoWait("activeEpRsp", znp.Payload{"nwkaddr": 0})
	if _, err := a.znp.Request(ctx, unpi.ZDO, "activeEpReq", znp.Payload{"dstaddr": 0, "nwkaddrofinterest": 0}); err != nil {
		active.Cancel()
		return err
	}
	rsp, err := active.Wait(ctx)
	if err != nil {
		return fmt.Errorf("active endpoints: %w", err)
	}
	existing := rsp.Payload.Bytes("activeeplist")

	for _, ep := range endpoints {
		if bytes.IndexByte(existing, ep.id) >= 0 {
			continue
		}
		a.logger.Debug("registering endpoint", "endpoint", ep.id, "profile", ep.profileID)
		if _, err := a.znp.Request(ctx, unpi.AF, "register", znp.Payload{
			"endpoint":          ep.id,
			"appprofid":         ep.profileID,
			"appdeviceid":       deviceIDConfigurationTool,
			"appdevver":         0,
			"latencyreq":        0,
			"appinclusterlist":  []uint16{},
			"appoutclusterlist": append([]uint16{}, ep.outClusters...),
		}); err != nil {
			return fmt.Errorf("register endpoint %d: %w", ep.id, err)
		}
	}
	return nil
}

// GetCoordinatorVersion returns the firmware identification read by Start.
func (a *Adapter) GetCoordinatorVersion() (CoordinatorVersion, error) {
	if a.version == nil {
		return CoordinatorVersion{}, ErrNotStarted
	}
	return CoordinatorVersion{Type: a.version.Variant.String(), Meta: *a.version}, nil
}
