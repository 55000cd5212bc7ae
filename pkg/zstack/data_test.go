package zstack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/zcl"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

func startedAdapter(t *testing.T, mutate func(*Options)) (*Adapter, *fakeZnp, *recordingQueue) {
	t.Helper()
	f := newFakeZnp(uint8(VariantZStack3x0))
	seedConfigured(f, VariantZStack3x0)
	q := newRecordingQueue()
	a := newTestAdapter(t, f, func(o *Options) {
		o.Queue = q
		if mutate != nil {
			mutate(o)
		}
	})
	_, err := a.Start(context.Background())
	require.NoError(t, err)
	f.resetCalls()
	return a, f, q
}

func readFrame(disableDefaultResponse bool) *zcl.Frame {
	return zcl.NewFrame(zcl.FrameTypeGlobal, zcl.ClientToServer, disableDefaultResponse, 0, 100, zcl.CommandRead, 0, []byte{0x05, 0x00})
}

// incoming emits an AF incomingMsg carrying frame from addr/endpoint.
func incoming(f *fakeZnp, addr uint16, endpoint uint8, frame *zcl.Frame) {
	data := frame.Encode()
	f.emit(unpi.AF, "incomingMsg", znp.Payload{
		"groupid": uint16(0), "clusterid": frame.ClusterID, "srcaddr": addr,
		"srcendpoint": endpoint, "dstendpoint": uint8(1), "wasbroadcast": uint8(0),
		"linkquality": uint8(50), "securityuse": uint8(0), "timestamp": uint32(0),
		"transseqnumber": uint8(0), "len": uint8(len(data)), "data": data,
	})
}

func serverFrame(frameType zcl.FrameType, seq, commandID uint8) *zcl.Frame {
	return zcl.NewFrame(frameType, zcl.ServerToClient, true, 0, seq, commandID, 0, []byte{0x00})
}

func TestSendZclFrameToEndpoint(t *testing.T) {
	a, f, q := startedAdapter(t, nil)

	err := a.SendZclFrameToEndpoint(context.Background(), 2, 20, readFrame(true))
	require.NoError(t, err)

	reqs := f.callsOf(unpi.AF, "dataRequest")
	require.Len(t, reqs, 1)
	p := reqs[0].Payload
	assert.Equal(t, uint16(2), p.Uint16("dstaddr"))
	assert.Equal(t, uint8(20), p.Uint8("destendpoint"))
	assert.Equal(t, uint8(1), p.Uint8("srcendpoint"))
	assert.Equal(t, uint16(0), p.Uint16("clusterid"))
	assert.Equal(t, uint8(1), p.Uint8("transid"))
	assert.Equal(t, uint8(0), p.Uint8("options"))
	assert.Equal(t, uint8(30), p.Uint8("radius"))
	assert.Equal(t, readFrame(true).Encode(), p.Bytes("data"))
	assert.Equal(t, uint8(len(readFrame(true).Encode())), p.Uint8("len"))
	assert.Equal(t, []string{"2"}, q.recorded())
}

func TestSendZclFrameToEndpointWaitsForDefaultResponse(t *testing.T) {
	a, f, _ := startedAdapter(t, nil)
	obs := &recordingObserver{}
	a.AddObserver(obs)
	f.onData = func(f *fakeZnp, c call) {
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 100, zcl.CommandDefaultRsp))
	}

	err := a.SendZclFrameToEndpoint(context.Background(), 2, 20, readFrame(false))
	require.NoError(t, err)
	assert.Empty(t, obs.zclData())
}

func TestSendZclFrameToEndpointDefaultResponseTimeout(t *testing.T) {
	a, _, _ := startedAdapter(t, func(o *Options) { o.Timeouts.DefaultResponse = 30 * time.Millisecond })

	err := a.SendZclFrameToEndpoint(context.Background(), 2, 20, readFrame(false))
	var terr *TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.EqualError(t, err, "Timeout - 2 - 20 - 100 - 11 after 30ms")
}

func TestSendWithResponse(t *testing.T) {
	a, f, _ := startedAdapter(t, nil)
	obs := &recordingObserver{}
	a.AddObserver(obs)
	f.onData = func(f *fakeZnp, c call) {
		// Wrong sequence number first, then the matching response.
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 102, zcl.CommandReadRsp))
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 100, zcl.CommandReadRsp))
	}

	data, err := a.SendZclFrameToEndpointWithResponse(context.Background(), 2, 20, readFrame(true))
	require.NoError(t, err)
	assert.Equal(t, uint16(2), data.NetworkAddress)
	assert.Equal(t, uint8(20), data.Endpoint)
	assert.Equal(t, uint8(50), data.LinkQuality)
	assert.Equal(t, uint8(100), data.Frame.TransactionSequenceNumber)
	assert.Equal(t, zcl.CommandReadRsp, data.Frame.CommandID)

	published := obs.zclData()
	require.Len(t, published, 1)
	assert.Equal(t, uint8(102), published[0].Frame.TransactionSequenceNumber)
}

func TestSendWithResponseAndDefaultResponse(t *testing.T) {
	a, f, _ := startedAdapter(t, nil)
	f.onData = func(f *fakeZnp, c call) {
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 100, zcl.CommandDefaultRsp))
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 100, zcl.CommandReadRsp))
	}

	data, err := a.SendZclFrameToEndpointWithResponse(context.Background(), 2, 20, readFrame(false))
	require.NoError(t, err)
	assert.Equal(t, zcl.CommandReadRsp, data.Frame.CommandID)
}

func TestSendWithResponseDefaultResponseTimeout(t *testing.T) {
	a, f, _ := startedAdapter(t, func(o *Options) { o.Timeouts.DefaultResponse = 30 * time.Millisecond })
	f.onData = func(f *fakeZnp, c call) {
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 100, zcl.CommandReadRsp))
	}

	_, err := a.SendZclFrameToEndpointWithResponse(context.Background(), 2, 20, readFrame(false))
	assert.EqualError(t, err, "Timeout - 2 - 20 - 100 - 11 after 30ms")
}

func TestSendWithResponseTimeout(t *testing.T) {
	a, f, _ := startedAdapter(t, func(o *Options) { o.Timeouts.Response = 30 * time.Millisecond })
	obs := &recordingObserver{}
	a.AddObserver(obs)
	f.onData = func(f *fakeZnp, c call) {
		incoming(f, 2, 20, serverFrame(zcl.FrameTypeGlobal, 102, zcl.CommandReadRsp))
	}

	_, err := a.SendZclFrameToEndpointWithResponse(context.Background(), 2, 20, readFrame(true))
	assert.EqualError(t, err, "Timeout - 2 - 20 - 100 - 1 after 30ms")
	assert.Len(t, obs.zclData(), 1)
}

func TestSendWithResponseWrongDirectionIgnored(t *testing.T) {
	a, f, _ := startedAdapter(t, func(o *Options) { o.Timeouts.Response = 30 * time.Millisecond })
	f.onData = func(f *fakeZnp, c call) {
		frame := zcl.NewFrame(zcl.FrameTypeGlobal, zcl.ClientToServer, true, 0, 100, zcl.CommandReadRsp, 0, nil)
		incoming(f, 2, 20, frame)
	}

	_, err := a.SendZclFrameToEndpointWithResponse(context.Background(), 2, 20, readFrame(true))
	var terr *TimeoutError
	assert.ErrorAs(t, err, &terr)
}

func TestSendWithResponseCommandWithoutResponse(t *testing.T) {
	a, f, _ := startedAdapter(t, nil)
	frame := zcl.NewFrame(zcl.FrameTypeGlobal, zcl.ClientToServer, true, 0, 100, zcl.CommandReadRsp, 0, nil)

	_, err := a.SendZclFrameToEndpointWithResponse(context.Background(), 2, 20, frame)
	assert.EqualError(t, err, "Command 'readRsp' has no response, cannot wait for response")
	assert.Empty(t, f.callsOf(unpi.AF, "dataRequest"))
}

func TestSendDataConfirmFailure(t *testing.T) {
	tests := []struct {
		status uint8
		want   string
	}{
		{205, "Data request failed with error: 'No network route' (205)"},
		{233, "Data request failed with error: 'MAC no ack' (233)"},
		{184, "Data request failed with error: 'undefined' (184)"},
	}
	for _, tt := range tests {
		a, f, _ := startedAdapter(t, nil)
		f.confirm = tt.status

		err := a.SendZclFrameToEndpoint(context.Background(), 2, 20, readFrame(false))
		var derr *DataRequestError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, tt.status, derr.Status)
		assert.EqualError(t, err, tt.want)
	}
}

func TestSendZclFrameToGroup(t *testing.T) {
	a, f, q := startedAdapter(t, nil)
	frame := zcl.NewFrame(zcl.FrameTypeSpecific, zcl.ClientToServer, true, 0, 7, 0x01, 0x0006, nil)

	err := a.SendZclFrameToGroup(context.Background(), 25, frame)
	require.NoError(t, err)

	reqs := f.callsOf(unpi.AF, "dataRequestExt")
	require.Len(t, reqs, 1)
	p := reqs[0].Payload
	assert.Equal(t, uint8(1), p.Uint8("dstaddrmode"))
	assert.Equal(t, "0x0000000000000019", p.String("dstaddr"))
	assert.Equal(t, uint8(255), p.Uint8("destendpoint"))
	assert.Equal(t, uint16(0), p.Uint16("dstpanid"))
	assert.Equal(t, uint8(1), p.Uint8("srcendpoint"))
	assert.Equal(t, uint16(0x0006), p.Uint16("clusterid"))
	assert.Equal(t, uint8(30), p.Uint8("radius"))
	assert.Equal(t, frame.Encode(), p.Bytes("data"))
	assert.Equal(t, []string{"undefined"}, q.recorded())
}

func TestTransactionIDWraps(t *testing.T) {
	var id transactionID
	seen := make([]uint8, 0, 300)
	for i := 0; i < 300; i++ {
		seen = append(seen, id.next())
	}
	assert.Equal(t, uint8(1), seen[0])
	assert.Equal(t, uint8(255), seen[254])
	assert.Equal(t, uint8(1), seen[255])
	assert.NotContains(t, seen, uint8(0))
}

func TestTransactionIDConcurrent(t *testing.T) {
	var id transactionID
	var mu sync.Mutex
	counts := map[uint8]int{}
	var wg sync.WaitGroup
	for g := 0; g < 5; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 51; i++ {
				v := id.next()
				mu.Lock()
				counts[v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, counts, 255)
	for v, n := range counts {
		assert.Equal(t, 1, n, "transaction id %d", v)
	}
}

func TestSendAllocatesTransactionIDs(t *testing.T) {
	a, f, _ := startedAdapter(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, a.SendZclFrameToEndpoint(context.Background(), 2, 20, readFrame(true)))
	}
	var ids []uint8
	for _, c := range f.callsOf(unpi.AF, "dataRequest") {
		ids = append(ids, c.Payload.Uint8("transid"))
	}
	assert.Equal(t, []uint8{1, 2, 3}, ids)
}

func TestUnsolicitedZclData(t *testing.T) {
	a, f, _ := startedAdapter(t, nil)
	obs := &recordingObserver{}
	a.AddObserver(obs)

	frame := serverFrame(zcl.FrameTypeGlobal, 9, zcl.CommandReport)
	data := frame.Encode()
	f.emit(unpi.AF, "incomingMsgExt", znp.Payload{
		"groupid": uint16(3), "clusterid": uint16(0), "srcaddrmode": uint8(addrModeNwk),
		"srcaddr": "0x0000000000001234", "srcendpoint": uint8(4), "srcpanid": uint16(0),
		"dstendpoint": uint8(1), "wasbroadcast": uint8(0), "linkquality": uint8(80),
		"securityuse": uint8(0), "timestamp": uint32(0), "transseqnumber": uint8(0),
		"len": uint16(len(data)), "data": data,
	})

	got := obs.zclData()
	require.Len(t, got, 1)
	assert.Equal(t, uint16(0x1234), got[0].NetworkAddress)
	assert.Equal(t, uint8(4), got[0].Endpoint)
	assert.Equal(t, uint16(3), got[0].GroupID)
	assert.Equal(t, uint8(80), got[0].LinkQuality)
	assert.Equal(t, zcl.CommandReport, got[0].Frame.CommandID)
}

func TestStopFailsPendingResponse(t *testing.T) {
	a, _, _ := startedAdapter(t, func(o *Options) { o.Timeouts.DefaultResponse = time.Minute })

	done := make(chan error, 1)
	go func() {
		done <- a.SendZclFrameToEndpoint(context.Background(), 2, 20, readFrame(false))
	}()
	require.Eventually(t, func() bool { return a.responses.Len() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, a.Stop())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, znp.ErrConnectionClosed)
	case <-time.After(time.Second):
		t.Fatal("send did not fail after Stop")
	}
}
