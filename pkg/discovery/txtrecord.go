package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeBridgeTXT creates the TXT records a serial bridge advertises.
func EncodeBridgeTXT(baudRate int, serial, firmware string) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyRadioType: RadioTypeZNP,
		TXTKeyBaudRate:  strconv.Itoa(baudRate),
	}
	if serial != "" {
		txt[TXTKeySerial] = serial
	}
	if firmware != "" {
		txt[TXTKeyFirmware] = firmware
	}
	return txt
}

// applyTXT copies the known TXT records into svc. A malformed baud rate is
// ignored.
func applyTXT(svc *Service, txt TXTRecordMap) {
	svc.RadioType = strings.ToLower(txt[TXTKeyRadioType])
	if baud, err := strconv.Atoi(txt[TXTKeyBaudRate]); err == nil {
		svc.BaudRate = baud
	}
	svc.Serial = txt[TXTKeySerial]
	svc.Firmware = txt[TXTKeyFirmware]
}

// TXTRecordsToStrings formats a TXTRecordMap as sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("empty instance name")
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
