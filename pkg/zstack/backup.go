package zstack

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/claudegel/zigbee-herdsman/pkg/persistence"
	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
	"github.com/claudegel/zigbee-herdsman/pkg/znp"
)

// Backup captures the coordinator's network NV items.
func (a *Adapter) Backup(ctx context.Context) (*persistence.Backup, error) {
	if a.version == nil {
		return nil, ErrNotStarted
	}
	if !a.profile.backup {
		return nil, errBackupUnsupported
	}

	backup := &persistence.Backup{
		AdapterType: persistence.AdapterType,
		Time:        persistence.NewTimestamp(time.Now().UTC()),
		Meta:        persistence.Meta{Product: a.version.Product},
		Data:        make(map[string]persistence.NVItem, len(backupItems)),
	}
	for _, item := range backupItems {
		value, err := a.readNVItem(ctx, item.id)
		if err != nil {
			return nil, fmt.Errorf("backup %s: %w", item.name, err)
		}
		backup.Data[item.name] = persistence.NVItem{
			ID:    item.id,
			Value: value,
			Len:   len(value),
		}
	}
	a.logger.Info("backup taken", "items", len(backup.Data))
	return backup, nil
}

// readNVItem reads a whole NV item, continuing at the returned offset
// until the length reported by SYS osalNvLength is reached.
func (a *Adapter) readNVItem(ctx context.Context, id uint16) ([]byte, error) {
	rsp, err := a.znp.Request(ctx, unpi.SYS, "osalNvLength", znp.Payload{"id": id})
	if err != nil {
		return nil, err
	}
	length := int(rsp.Payload.Uint16("length"))
	if length == 0 {
		return nil, fmt.Errorf("NV item 0x%04x does not exist", id)
	}

	value := make([]byte, 0, length)
	for len(value) < length {
		if len(value) > 0xFF {
			return nil, fmt.Errorf("NV item 0x%04x is longer than a single read can address", id)
		}
		rsp, err := a.znp.Request(ctx, unpi.SYS, "osalNvRead", znp.Payload{"id": id, "offset": len(value)})
		if err != nil {
			return nil, err
		}
		chunk := rsp.Payload.Bytes("value")
		if len(chunk) == 0 {
			break
		}
		value = append(value, chunk...)
	}
	if len(value) > length {
		value = value[:length]
	}
	return value, nil
}

// RestoreFromBackup validates backup against the chip and the configured
// network, writes its NV items and soft resets the chip. Nothing is
// written when validation fails. The channel list is written after the
// reset.
func (a *Adapter) RestoreFromBackup(ctx context.Context, backup *persistence.Backup) error {
	if err := a.restoreItems(ctx, backup); err != nil {
		return err
	}
	return a.restoreChannelList(ctx, backup)
}

// restoreItems is RestoreFromBackup without the channel list. A channel
// list written before the coordinator has started would steer formation,
// so Start writes it with restoreChannelList once the coordinator runs.
func (a *Adapter) restoreItems(ctx context.Context, backup *persistence.Backup) error {
	if a.version == nil {
		return ErrNotStarted
	}
	if !a.profile.backup {
		return errBackupUnsupported
	}
	if err := a.validateBackup(backup); err != nil {
		return err
	}

	for _, item := range backupItems {
		if item.name == itemChanList {
			continue
		}
		nv := backup.Data[item.name]
		var err error
		if item.name == itemNIB {
			err = a.initNV(ctx, nv.ID, nv.Value)
		} else {
			_, err = a.znp.Request(ctx, unpi.SYS, "osalNvWrite", znp.Payload{
				"id":     nv.ID,
				"offset": nv.Offset,
				"value":  []byte(nv.Value),
			})
		}
		if err != nil {
			return fmt.Errorf("restore %s: %w", item.name, err)
		}
	}

	if err := a.markConfigured(ctx); err != nil {
		return err
	}
	onNetwork := []byte{1}
	if err := a.initNV(ctx, nvBDBNodeIsOnANetwork, onNetwork); err != nil {
		return err
	}
	if err := a.writeNV(ctx, nvBDBNodeIsOnANetwork, onNetwork); err != nil {
		return err
	}
	if err := a.resetChip(ctx); err != nil {
		return err
	}
	a.logger.Info("backup restored", "taken", backup.Time.String())
	return nil
}

func (a *Adapter) restoreChannelList(ctx context.Context, backup *persistence.Backup) error {
	nv := backup.Data[itemChanList]
	if _, err := a.znp.Request(ctx, unpi.SYS, "osalNvWrite", znp.Payload{
		"id":     nv.ID,
		"offset": nv.Offset,
		"value":  []byte(nv.Value),
	}); err != nil {
		return fmt.Errorf("restore %s: %w", itemChanList, err)
	}
	return nil
}

func (a *Adapter) validateBackup(backup *persistence.Backup) error {
	if backup.AdapterType != persistence.AdapterType {
		return &RestoreValidationError{Field: "adapterType", Backup: backup.AdapterType, Current: persistence.AdapterType}
	}
	if backup.Meta.Product != a.version.Product {
		return &RestoreValidationError{
			Field:   "product",
			Backup:  Variant(backup.Meta.Product).String(),
			Current: a.version.Variant.String(),
		}
	}
	net := a.opts.Network
	checks := []struct {
		field string
		item  string
		want  []byte
	}{
		{"channel", itemChanList, net.channelMaskBytes()},
		{"networkKey", itemPreCfgKey, net.NetworkKey[:]},
		{"panID", itemPanID, net.panIDBytes()},
		{"extendedPanID", itemExtendedPanID, net.ExtendedPanID[:]},
	}
	for _, c := range checks {
		item, ok := backup.Data[c.item]
		if ok && !bytes.Equal(item.Value, c.want) {
			return &RestoreValidationError{Field: c.field}
		}
	}
	for _, item := range backupItems {
		if _, err := backup.Item(item.name); err != nil {
			return err
		}
	}
	return nil
}
