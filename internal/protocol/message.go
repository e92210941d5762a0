// Package protocol implements the newline-delimited JSON exchange between the
// canvas and its driver over a local unix socket.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/jask/flowcanvas/internal/annotation"
	"github.com/jask/flowcanvas/internal/flow"
)

// Type tags every message on the wire.
type Type string

// Driver to canvas.
const (
	TypeUpdate      Type = "update"
	TypeClose       Type = "close"
	TypeGetComments Type = "getComments"
	TypePing        Type = "ping"
)

// Canvas to driver.
const (
	TypeReady     Type = "ready"
	TypeComment   Type = "comment"
	TypeComments  Type = "comments"
	TypeCancelled Type = "cancelled"
	TypePong      Type = "pong"
)

var (
	ErrUnknownType   = errors.New("unknown message type")
	ErrMissingConfig = errors.New("update without config")
)

// Inbound is a message sent by the driver.
type Inbound struct {
	Type   Type         `json:"type"`
	Config *flow.Config `json:"config,omitempty"`
}

// Outbound is a message sent by the canvas. Key and Text are set for
// comment, Data for comments.
type Outbound struct {
	Type Type
	Key  string
	Text string
	Data annotation.Store
}

func Ready() Outbound     { return Outbound{Type: TypeReady} }
func Pong() Outbound      { return Outbound{Type: TypePong} }
func Cancelled() Outbound { return Outbound{Type: TypeCancelled} }

func Comment(key, text string) Outbound {
	return Outbound{Type: TypeComment, Key: key, Text: text}
}

// Comments builds the reply to getComments; empty entries are dropped.
func Comments(s annotation.Store) Outbound {
	return Outbound{Type: TypeComments, Data: s.Compact()}
}

type commentWire struct {
	Type Type   `json:"type"`
	Key  string `json:"key"`
	Text string `json:"text"`
}

type commentsWire struct {
	Type Type             `json:"type"`
	Data annotation.Store `json:"data"`
}

type bareWire struct {
	Type Type `json:"type"`
}

// MarshalJSON emits only the fields that belong to the message type.
func (o Outbound) MarshalJSON() ([]byte, error) {
	switch o.Type {
	case TypeComment:
		return sonic.Marshal(commentWire{Type: o.Type, Key: o.Key, Text: o.Text})
	case TypeComments:
		return sonic.Marshal(commentsWire{Type: o.Type, Data: o.Data})
	default:
		return sonic.Marshal(bareWire{Type: o.Type})
	}
}

// UnmarshalJSON accepts the legacy nodeId spelling of key.
func (o *Outbound) UnmarshalJSON(data []byte) error {
	var w struct {
		Type   Type              `json:"type"`
		Key    string            `json:"key"`
		NodeID string            `json:"nodeId"`
		Text   string            `json:"text"`
		Data   *annotation.Store `json:"data"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Outbound{Type: w.Type, Key: w.Key, Text: w.Text}
	if o.Key == "" {
		o.Key = w.NodeID
	}
	if w.Data != nil {
		o.Data = *w.Data
	}
	return nil
}

// DecodeInbound parses one line from the driver.
func DecodeInbound(line []byte) (Inbound, error) {
	var in Inbound
	if err := sonic.ConfigStd.Unmarshal(line, &in); err != nil {
		return Inbound{}, fmt.Errorf("decode message: %w", err)
	}
	switch in.Type {
	case TypeUpdate:
		if in.Config == nil {
			return Inbound{}, ErrMissingConfig
		}
		c := in.Config.Normalize()
		in.Config = &c
	case TypeClose, TypeGetComments, TypePing:
		in.Config = nil
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	return in, nil
}

// DecodeOutbound parses one line from the canvas.
func DecodeOutbound(line []byte) (Outbound, error) {
	var out Outbound
	if err := out.UnmarshalJSON(line); err != nil {
		return Outbound{}, fmt.Errorf("decode message: %w", err)
	}
	if out.Type == "" {
		return Outbound{}, fmt.Errorf("%w: missing type", ErrUnknownType)
	}
	return out, nil
}

// Encode marshals v and appends the frame terminator.
func Encode(v any) ([]byte, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return append(data, '\n'), nil
}

// SocketPath expands {id} in template.
func SocketPath(template, id string) string {
	return strings.ReplaceAll(template, "{id}", id)
}
