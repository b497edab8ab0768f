package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carloswaibl/algotrader/internal/data"
	"github.com/carloswaibl/algotrader/internal/market"
)

// Upstream message types
const (
	typeSubscribe   = "subscribe"
	typeUnsubscribe = "unsubscribe"
	typePing        = "ping"
)

// Downstream message types
const (
	typeConnected = "connected"
	typeAck       = "ack"
	typePong      = "pong"
	typeBar       = "bar"
	typeEnd       = "end"
)

// UpstreamMessage is what clients send. Group is "ROOT/YYYY-MM-DD".
type UpstreamMessage struct {
	Type  string  `json:"type"`
	Group string  `json:"group,omitempty"`
	AckID *uint64 `json:"ack_id,omitempty"`
}

// DownstreamMessage is what the server sends.
type DownstreamMessage struct {
	Type         string            `json:"type"`
	ConnectionID string            `json:"connection_id,omitempty"`
	Group        string            `json:"group,omitempty"`
	AckID        *uint64           `json:"ack_id,omitempty"`
	Success      *bool             `json:"success,omitempty"`
	Frame        *data.ReplayFrame `json:"frame,omitempty"`
}

func parseUpstreamMessage(raw []byte) (UpstreamMessage, error) {
	var msg UpstreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, fmt.Errorf("unmarshal upstream message: %w", err)
	}
	switch msg.Type {
	case typeSubscribe, typeUnsubscribe, typePing:
		return msg, nil
	}
	return msg, fmt.Errorf("unknown message type: %q", msg.Type)
}

// GroupName is the subscription group of a session.
func GroupName(root, date string) string {
	return market.Root(root) + "/" + date
}

// ParseGroup splits a group into root and date, validating the date.
func ParseGroup(group string) (string, string, error) {
	root, date, ok := strings.Cut(group, "/")
	if !ok || root == "" {
		return "", "", fmt.Errorf("invalid group %q (use ROOT/YYYY-MM-DD)", group)
	}
	if _, err := market.SessionOpen(date); err != nil {
		return "", "", err
	}
	return market.Root(root), date, nil
}

func encode(msg DownstreamMessage) []byte {
	raw, _ := json.Marshal(msg)
	return raw
}

func connectedMessage(connID string) []byte {
	return encode(DownstreamMessage{Type: typeConnected, ConnectionID: connID})
}

func ackMessage(ackID uint64, success bool) []byte {
	return encode(DownstreamMessage{Type: typeAck, AckID: &ackID, Success: &success})
}

func pongMessage() []byte {
	return encode(DownstreamMessage{Type: typePong})
}

func barMessage(group string, frame data.ReplayFrame) []byte {
	return encode(DownstreamMessage{Type: typeBar, Group: group, Frame: &frame})
}

func endMessage(group string) []byte {
	return encode(DownstreamMessage{Type: typeEnd, Group: group})
}
