// Package znp speaks the Z-Stack Monitor and Test (MT) command protocol on
// top of UNPI frames.
//
// A command definition table maps every supported subsystem command to its
// identifier, frame type and parameter layout, so callers work with named
// payloads:
//
//	rsp, err := z.Request(ctx, unpi.SYS, "osalNvRead", znp.Payload{"id": 0x84, "offset": 0})
//
// # Correlation
//
// SREQ commands are serialized on the link and resolved by the SRSP of the
// same subsystem and command. Asynchronous AREQ frames are awaited with
// WaitFor, which registers the wait before returning so the triggering
// request can be sent afterwards without a race:
//
//	w := z.WaitFor(unpi.AREQ, unpi.ZDO, "activeEpRsp", znp.Payload{"nwkaddr": 0}, 10*time.Second)
//	if _, err := z.Request(ctx, unpi.ZDO, "activeEpReq", znp.Payload{"dstaddr": 0, "nwkaddrofinterest": 0}); err != nil {
//		w.Cancel()
//		return err
//	}
//	rsp, err := w.Wait(ctx)
//
// Every inbound frame is first offered to pending waits and then published
// to observers. When the link drops, pending waits fail with
// ErrConnectionClosed and observers receive OnClosed, unless Close was
// called by the owner.
package znp
