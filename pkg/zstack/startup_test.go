package zstack

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudegel/zigbee-herdsman/pkg/log"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

var testNetwork = NetworkOptions{
	PanID:         6754,
	ExtendedPanID: [8]byte{0xDD, 0xDD, 0xDD, 0xDD, 0xDD, 0xDD, 0xDD, 0xDD},
	ChannelList:   []uint8{11},
	NetworkKey:    [16]byte{1, 3, 5, 7, 9, 11, 13, 15, 0, 2, 4, 6, 8, 10, 12, 13},
}

func newTestAdapter(t *testing.T, f *fakeZnp, mutate func(*Options)) *Adapter {
	t.Helper()
	opts := Options{
		Network: testNetwork,
		Timeouts: Timeouts{
			DataConfirm:     time.Second,
			Response:        time.Second,
			DefaultResponse: time.Second,
			ZDO:             time.Second,
			Commissioning:   time.Second,
		},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(f, opts)
}

// seedConfigured stores testNetwork on the fake chip as a commissioned
// network.
func seedConfigured(f *fakeZnp, variant Variant) {
	profile := variantTable[variant]
	f.setNV(profile.hasConfiguredID, []byte{hasConfiguredValue})
	f.setNV(nvChanList, []byte{0x00, 0x08, 0x00, 0x00})
	f.setNV(nvPreCfgKeysEnable, []byte{0})
	f.setNV(nvPreCfgKey, testNetwork.NetworkKey[:])
	f.setNV(nvPanID, []byte{0x62, 0x1A})
	f.setNV(nvExtendedPanID, testNetwork.ExtendedPanID[:])
}

func TestChannelMask(t *testing.T) {
	opts := NetworkOptions{ChannelList: []uint8{11}}
	assert.Equal(t, uint32(2048), opts.ChannelMask())
	assert.Equal(t, []byte{0, 8, 0, 0}, opts.channelMaskBytes())

	opts = NetworkOptions{ChannelList: []uint8{11, 15, 20, 25}}
	assert.Equal(t, uint32(1<<11|1<<15|1<<20|1<<25), opts.ChannelMask())
}

func TestStartResume(t *testing.T) {
	for _, variant := range []Variant{VariantLegacy, VariantZStack3x0, VariantZStack30x} {
		t.Run(variant.String(), func(t *testing.T) {
			f := newFakeZnp(uint8(variant))
			seedConfigured(f, variant)
			a := newTestAdapter(t, f, nil)

			result, err := a.Start(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StartResumed, result)
			assert.Equal(t, StateReady, a.State())
			assert.Empty(t, f.callsOf(unpi.SYS, "osalNvWrite"))
			assert.Empty(t, f.callsOf(unpi.SYS, "resetReq"))
		})
	}
}

func TestStartResumeReadsKeyWithVariantPrimitive(t *testing.T) {
	tests := []struct {
		variant Variant
		sapi    int
	}{
		{VariantLegacy, 1},
		{VariantZStack3x0, 0},
		{VariantZStack30x, 1},
	}
	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			f := newFakeZnp(uint8(tt.variant))
			seedConfigured(f, tt.variant)
			a := newTestAdapter(t, f, nil)

			_, err := a.Start(context.Background())
			require.NoError(t, err)
			reads := f.callsOf(unpi.SAPI, "readConfiguration")
			assert.Len(t, reads, tt.sapi)
			for _, c := range reads {
				assert.Equal(t, sapiPreCfgKey, c.Payload.Uint8("configid"))
			}
		})
	}
}

func TestStartPanIDWildcard(t *testing.T) {
	t.Run("zStack3x0 accepts 0xFFFF", func(t *testing.T) {
		f := newFakeZnp(uint8(VariantZStack3x0))
		seedConfigured(f, VariantZStack3x0)
		f.setNV(nvPanID, []byte{0xFF, 0xFF})
		a := newTestAdapter(t, f, nil)

		result, err := a.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StartResumed, result)
	})

	t.Run("zStack12 resets", func(t *testing.T) {
		f := newFakeZnp(uint8(VariantLegacy))
		seedConfigured(f, VariantLegacy)
		f.setNV(nvPanID, []byte{0xFF, 0xFF})
		a := newTestAdapter(t, f, nil)

		result, err := a.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StartResetted, result)
	})
}

func TestStartResetsOnMismatch(t *testing.T) {
	tests := []struct {
		name string
		id   uint16
		bad  []byte
	}{
		{"channel list", nvChanList, []byte{0x00, 0x10, 0x00, 0x00}},
		{"key distribution", nvPreCfgKeysEnable, []byte{1}},
		{"network key", nvPreCfgKey, make([]byte, 16)},
		{"pan id", nvPanID, []byte{0x01, 0x00}},
		{"extended pan id", nvExtendedPanID, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeZnp(uint8(VariantZStack3x0))
			seedConfigured(f, VariantZStack3x0)
			f.setNV(tt.id, tt.bad)
			a := newTestAdapter(t, f, nil)

			result, err := a.Start(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StartResetted, result)
		})
	}
}

func TestStartResetZStack3(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	a := newTestAdapter(t, f, nil)

	result, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartResetted, result)

	assert.Equal(t, []string{
		"SYS version",
		"SYS osalNvRead",
		"SYS resetReq",
		"SYS osalNvWrite",
		"SYS resetReq",
		"SYS osalNvWrite",
		"SYS osalNvWrite",
		"SYS osalNvWrite",
		"SYS osalNvWrite",
		"SYS osalNvWrite",
		"SYS osalNvWrite",
		"SYS osalNvWrite",
		"APP_CNF bdbSetChannel",
		"APP_CNF bdbSetChannel",
		"APP_CNF bdbStartCommissioning",
		"APP_CNF bdbStartCommissioning",
		"SYS osalNvItemInit",
		"SYS osalNvWrite",
		"UTIL getDeviceInfo",
		"ZDO activeEpReq",
		"AF register",
		"AF register",
		"AF register",
		"AF register",
		"AF register",
		"AF register",
		"AF register",
	}, f.commands())

	writes := f.callsOf(unpi.SYS, "osalNvWrite")
	ids := make([]uint16, len(writes))
	for i, w := range writes {
		ids[i] = w.Payload.Uint16("id")
	}
	assert.Equal(t, []uint16{
		nvStartupOption, nvLogicalType, nvPreCfgKeysEnable, nvZDODirectCB,
		nvChanList, nvPanID, nvExtendedPanID, nvPreCfgKey, nvHasConfiguredZStack3,
	}, ids)
	assert.Equal(t, []byte{startupOptionClearState}, writes[0].Payload.Bytes("value"))
	assert.Equal(t, []byte{0, 8, 0, 0}, writes[4].Payload.Bytes("value"))
	assert.Equal(t, []byte{0x62, 0x1A}, writes[5].Payload.Bytes("value"))

	channels := f.callsOf(unpi.APPConfig, "bdbSetChannel")
	assert.Equal(t, uint8(1), channels[0].Payload.Uint8("isPrimary"))
	assert.Equal(t, uint32(2048), channels[0].Payload.Uint32("channel"))
	assert.Equal(t, uint8(0), channels[1].Payload.Uint8("isPrimary"))
	assert.Equal(t, uint32(0), channels[1].Payload.Uint32("channel"))

	modes := f.callsOf(unpi.APPConfig, "bdbStartCommissioning")
	assert.Equal(t, uint8(bdbModeNetworkFormation), modes[0].Payload.Uint8("mode"))
	assert.Equal(t, uint8(bdbModeNetworkSteering), modes[1].Payload.Uint8("mode"))

	assert.Equal(t, []byte{hasConfiguredValue}, f.nvValue(nvHasConfiguredZStack3))
}

func TestStartResetLegacy(t *testing.T) {
	f := newFakeZnp(uint8(VariantLegacy))
	a := newTestAdapter(t, f, func(o *Options) { o.Network.NetworkKeyDistribute = true })

	result, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StartResetted, result)

	assert.Empty(t, f.callsOf(unpi.APPConfig, "bdbSetChannel"))
	assert.Empty(t, f.callsOf(unpi.APPConfig, "bdbStartCommissioning"))

	keyWrites := f.callsOf(unpi.SAPI, "writeConfiguration")
	require.Len(t, keyWrites, 1)
	assert.Equal(t, testNetwork.NetworkKey[:], keyWrites[0].Payload.Bytes("value"))

	assert.Equal(t, legacyTCLK, f.nvValue(nvTCLKTableStart))
	assert.Equal(t, []byte{1}, f.nvValue(nvPreCfgKeysEnable))
	assert.Equal(t, []byte{hasConfiguredValue}, f.nvValue(nvHasConfiguredZStack1))
	assert.Nil(t, f.nvValue(nvHasConfiguredZStack3))
}

func TestStartResetZStack30xWritesKeyToNV(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack30x))
	a := newTestAdapter(t, f, nil)

	_, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.callsOf(unpi.SAPI, "writeConfiguration"))
	assert.Equal(t, testNetwork.NetworkKey[:], f.nvValue(nvPreCfgKey))
	assert.Nil(t, f.nvValue(nvTCLKTableStart))
}

func TestStartFormationTimeout(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	f.handle(unpi.APPConfig, "bdbStartCommissioning", func(*fakeZnp, call) (znp.Payload, error) {
		return znp.Payload{"status": 0}, nil
	})
	a := newTestAdapter(t, f, func(o *Options) { o.Timeouts.Commissioning = 20 * time.Millisecond })

	_, err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network formation")
	assert.Nil(t, f.nvValue(nvHasConfiguredZStack3))
}

func TestStartAbortsOnUnexpectedReply(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	failure := &znp.StatusError{Subsystem: unpi.SYS, Command: "osalNvWrite", Status: znp.StatusFailure}
	f.handle(unpi.SYS, "osalNvWrite", func(*fakeZnp, call) (znp.Payload, error) {
		return nil, failure
	})
	a := newTestAdapter(t, f, nil)

	_, err := a.Start(context.Background())
	assert.ErrorIs(t, err, failure)
	assert.Empty(t, f.callsOf(unpi.UTIL, "getDeviceInfo"))
}

func TestStartUnsupportedProduct(t *testing.T) {
	f := newFakeZnp(7)
	a := newTestAdapter(t, f, nil)

	_, err := a.Start(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestBootStartsCoordinator(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	seedConfigured(f, VariantZStack3x0)
	f.deviceState = 0
	a := newTestAdapter(t, f, nil)

	_, err := a.Start(context.Background())
	require.NoError(t, err)
	startups := f.callsOf(unpi.ZDO, "startupFromApp")
	require.Len(t, startups, 1)
	assert.Equal(t, uint16(100), startups[0].Payload.Uint16("startdelay"))
}

func TestBootSkipsRunningCoordinator(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	seedConfigured(f, VariantZStack3x0)
	a := newTestAdapter(t, f, nil)

	_, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.callsOf(unpi.ZDO, "startupFromApp"))
}

func TestRegisterEndpointsOnlyMissing(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	seedConfigured(f, VariantZStack3x0)
	f.activeEps = []uint8{1, 2, 3, 4, 5, 6}
	a := newTestAdapter(t, f, nil)

	_, err := a.Start(context.Background())
	require.NoError(t, err)

	registers := f.callsOf(unpi.AF, "register")
	require.Len(t, registers, 1)
	p := registers[0].Payload
	assert.Equal(t, uint8(11), p.Uint8("endpoint"))
	assert.Equal(t, uint16(0x0104), p.Uint16("appprofid"))
	assert.Equal(t, uint16(0x0005), p.Uint16("appdeviceid"))
	assert.Equal(t, []uint16{0x0500}, p.Uint16s("appoutclusterlist"))

	active := f.callsOf(unpi.ZDO, "activeEpReq")
	require.Len(t, active, 1)
	assert.Equal(t, uint16(0), active[0].Payload.Uint16("dstaddr"))
	assert.Equal(t, uint16(0), active[0].Payload.Uint16("nwkaddrofinterest"))
}

func TestGetCoordinatorVersion(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack30x))
	seedConfigured(f, VariantZStack30x)
	a := newTestAdapter(t, f, nil)

	_, err := a.GetCoordinatorVersion()
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = a.Start(context.Background())
	require.NoError(t, err)
	v, err := a.GetCoordinatorVersion()
	require.NoError(t, err)
	assert.Equal(t, "zStack30x", v.Type)
	assert.Equal(t, uint8(2), v.Meta.Product)
	assert.Equal(t, uint32(20200805), v.Meta.Revision)
}

type stateLogger struct {
	mu     sync.Mutex
	states []string
}

func (l *stateLogger) Log(e log.Event) {
	if e.StateChange == nil || e.StateChange.Entity != log.StateEntityCommissioning {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, e.StateChange.NewState)
}

func TestStartLogsCommissioningStates(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	seedConfigured(f, VariantZStack3x0)
	logger := &stateLogger{}
	a := newTestAdapter(t, f, func(o *Options) { o.ProtocolLogger = logger })

	_, err := a.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"VERSION_QUERIED", "RESUME", "READY"}, logger.states)

	require.NoError(t, a.Stop())
	assert.Equal(t, "UNINITIALIZED", logger.states[len(logger.states)-1])
}

func TestStartPropagatesContextCancel(t *testing.T) {
	f := newFakeZnp(uint8(VariantZStack3x0))
	f.handle(unpi.APPConfig, "bdbStartCommissioning", func(*fakeZnp, call) (znp.Payload, error) {
		return znp.Payload{"status": 0}, nil
	})
	a := newTestAdapter(t, f, func(o *Options) { o.Timeouts.Commissioning = time.Minute })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Start(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
