package zstack

import (
	"context"
	"fmt"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/queue"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/waitress"
	"github.com/claudegel/zigbee-herdsman/pkg/zcl"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// ZclData is a ZCL frame received from a device.
type ZclData struct {
	NetworkAddress uint16
	Endpoint       uint8
	GroupID        uint16
	LinkQuality    uint8
	Frame          *zcl.Frame
}

// zclMatcher selects the reply to an outbound ZCL frame.
type zclMatcher struct {
	NetworkAddress uint16
	Endpoint       uint8
	Sequence       uint8
	ClusterID      uint16
	FrameType      zcl.FrameType
	Direction      zcl.Direction
	CommandID      uint8
}

func zclKey(addr uint16, endpoint, seq uint8) string {
	return fmt.Sprintf("%d/%d/%d", addr, endpoint, seq)
}

func newZclWaitress() *zclWaitress {
	return waitress.New(waitress.Config[*ZclData, zclMatcher]{
		MatcherKey: func(m zclMatcher) string {
			return zclKey(m.NetworkAddress, m.Endpoint, m.Sequence)
		},
		PayloadKey: func(d *ZclData) string {
			return zclKey(d.NetworkAddress, d.Endpoint, d.Frame.TransactionSequenceNumber)
		},
		Validate: func(d *ZclData, m zclMatcher) bool {
			f := d.Frame
			return f.ClusterID == m.ClusterID &&
				f.FrameType == m.FrameType &&
				f.Direction == m.Direction &&
				f.CommandID == m.CommandID
		},
		TimeoutError: func(m zclMatcher, timeout time.Duration) error {
			return &TimeoutError{
				NetworkAddress: m.NetworkAddress,
				Endpoint:       m.Endpoint,
				Sequence:       m.Sequence,
				CommandID:      m.CommandID,
				Timeout:        timeout,
			}
		},
	})
}

// SendZclFrameToEndpoint sends frame to a device endpoint. It returns once
// the chip confirms delivery and, unless the frame disables it, the
// device's default response has arrived.
func (a *Adapter) SendZclFrameToEndpoint(ctx context.Context, addr uint16, endpoint uint8, frame *zcl.Frame) error {
	_, err := a.sendToEndpoint(ctx, addr, endpoint, frame, false)
	return err
}

// SendZclFrameToEndpointWithResponse sends frame and returns the device's
// response command.
func (a *Adapter) SendZclFrameToEndpointWithResponse(ctx context.Context, addr uint16, endpoint uint8, frame *zcl.Frame) (*ZclData, error) {
	return a.sendToEndpoint(ctx, addr, endpoint, frame, true)
}

func (a *Adapter) sendToEndpoint(ctx context.Context, addr uint16, endpoint uint8, frame *zcl.Frame, withResponse bool) (*ZclData, error) {
	var responseID uint8
	if withResponse {
		id, ok := frame.Response()
		if !ok {
			return nil, &NoResponseError{Command: frame.CommandName()}
		}
		responseID = id
	}

	return queue.Do(ctx, a.queue, queue.KeyOf(addr), func(ctx context.Context) (*ZclData, error) {
		reply := zclMatcher{
			NetworkAddress: addr,
			Endpoint:       endpoint,
			Sequence:       frame.TransactionSequenceNumber,
			ClusterID:      frame.ClusterID,
			Direction:      frame.Direction.Opposite(),
		}

		var response, defaultResponse *waitress.Waiter[*ZclData, zclMatcher]
		if withResponse {
			m := reply
			m.FrameType = frame.FrameType
			m.CommandID = responseID
			response = a.responses.WaitFor(m, a.opts.Timeouts.Response)
		}
		if !frame.DisableDefaultResponse {
			m := reply
			m.FrameType = zcl.FrameTypeGlobal
			m.CommandID = zcl.CommandDefaultRsp
			defaultResponse = a.responses.WaitFor(m, a.opts.Timeouts.DefaultResponse)
		}
		cancel := func() {
			if response != nil {
				response.Cancel()
			}
			if defaultResponse != nil {
				defaultResponse.Cancel()
			}
		}

		transID := a.transID.next()
		err := a.dataRequest(ctx, transID, "dataRequest", znp.Payload{
			"dstaddr":      addr,
			"destendpoint": endpoint,
			"srcendpoint":  srcEndpoint,
			"clusterid":    frame.ClusterID,
			"transid":      transID,
			"options":      0,
			"radius":       defaultRadius,
			"data":         frame.Encode(),
		})
		if err != nil {
			cancel()
			return nil, err
		}

		var result *ZclData
		if response != nil {
			d, err := response.Wait(ctx)
			if err != nil {
				cancel()
				return nil, err
			}
			result = d
		}
		if defaultResponse != nil {
			if _, err := defaultResponse.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return result, nil
	})
}

// SendZclFrameToGroup broadcasts frame to a group. It returns once the
// chip confirms the transmission.
func (a *Adapter) SendZclFrameToGroup(ctx context.Context, groupID uint16, frame *zcl.Frame) error {
	return a.queue.Execute(ctx, queue.NoKey, func(ctx context.Context) error {
		transID := a.transID.next()
		return a.dataRequest(ctx, transID, "dataRequestExt", znp.Payload{
			"dstaddrmode":  addrModeGroup,
			"dstaddr":      znp.FormatIEEEAddr(uint64(groupID)),
			"destendpoint": groupEndpoint,
			"dstpanid":     0,
			"srcendpoint":  srcEndpoint,
			"clusterid":    frame.ClusterID,
			"transid":      transID,
			"options":      0,
			"radius":       defaultRadius,
			"data":         frame.Encode(),
		})
	})
}

// dataRequest sends an AF data request and waits for its data confirm.
func (a *Adapter) dataRequest(ctx context.Context, transID uint8, command string, payload znp.Payload) error {
	confirm := a.znp.WaitFor(unpi.AREQ, unpi.AF, "dataConfirm", znp.Payload{"transid": transID}, a.opts.Timeouts.DataConfirm)
	if _, err := a.znp.Request(ctx, unpi.AF, command, payload); err != nil {
		confirm.Cancel()
		return err
	}
	rsp, err := confirm.Wait(ctx)
	if err != nil {
		return fmt.Errorf("data confirm for transaction %d: %w", transID, err)
	}
	if status := rsp.Payload.Uint8("status"); status != 0 {
		return &DataRequestError{Status: status}
	}
	return nil
}
