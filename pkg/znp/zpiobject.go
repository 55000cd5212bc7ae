package znp

import (
	"fmt"

	"github.com/claudegel/zigbee-herdsman/pkg/unpi"
)

// ZpiObject is a decoded MT command: a frame together with its named
// parameters.
type ZpiObject struct {
	Type      unpi.Type
	Subsystem unpi.Subsystem
	Command   string
	CommandID uint8
	Payload   Payload
}

// NewRequest builds the outbound object for a named command. Length
// parameters preceding a buffer or list are filled in when absent.
func NewRequest(subsystem unpi.Subsystem, command string, payload Payload) (*ZpiObject, error) {
	def, err := Lookup(subsystem, command)
	if err != nil {
		return nil, err
	}

	filled := make(Payload, len(payload)+1)
	for k, v := range payload {
		filled[k] = v
	}
	for i, param := range def.Request {
		if !param.Type.variable() || i == 0 {
			continue
		}
		lenName := def.Request[i-1].Name
		if _, ok := filled[lenName]; ok {
			continue
		}
		if n, ok := length(filled[param.Name]); ok {
			filled[lenName] = n
		}
	}

	return &ZpiObject{
		Type:      def.Type,
		Subsystem: subsystem,
		Command:   command,
		CommandID: def.ID,
		Payload:   filled,
	}, nil
}

// Frame encodes the object's request parameters.
func (o *ZpiObject) Frame() (*unpi.Frame, error) {
	def, err := Lookup(o.Subsystem, o.Command)
	if err != nil {
		return nil, err
	}
	data, err := encodeParameters(def.Request, o.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", o.Subsystem, o.Command, err)
	}
	return unpi.NewFrame(o.Type, o.Subsystem, o.CommandID, data), nil
}

// FromFrame decodes a received frame. SRSP frames use the response
// layout of the matching SREQ definition.
func FromFrame(f *unpi.Frame) (*ZpiObject, error) {
	def, err := lookupFrame(f.Type, f.Subsystem, f.CommandID)
	if err != nil {
		return nil, err
	}
	params := def.Request
	if f.Type == unpi.SRSP {
		params = def.Response
	}
	payload, err := decodeParameters(params, f.Data)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", f.Type, f.Subsystem, def.Name, err)
	}
	return &ZpiObject{
		Type:      f.Type,
		Subsystem: f.Subsystem,
		Command:   def.Name,
		CommandID: f.CommandID,
		Payload:   payload,
	}, nil
}

// Is reports whether the object is the given command.
func (o *ZpiObject) Is(t unpi.Type, subsystem unpi.Subsystem, command string) bool {
	return o.Type == t && o.Subsystem == subsystem && o.Command == command
}

func (o *ZpiObject) String() string {
	return fmt.Sprintf("%s %s %s %v", o.Type, o.Subsystem, o.Command, map[string]any(o.Payload))
}
