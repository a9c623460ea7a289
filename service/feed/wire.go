package feed

import (
	"encoding/json"
	"time"
)

// Wire representation of feed messages. Envelopes are JSON; exactly one of
// the variant fields is set per inbound message. The eof marker is how the
// server signals a clean end of stream.

type envelope struct {
	Transaction *transactionEnvelope `json:"transaction,omitempty"`
	Ping        *pingEnvelope        `json:"ping,omitempty"`
	Pong        *pingEnvelope        `json:"pong,omitempty"`
	EOF         bool                 `json:"eof,omitempty"`
	Filters     []string             `json:"filters,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

type transactionEnvelope struct {
	Signature   []byte        `json:"signature"`
	AccountKeys []string      `json:"account_keys"`
	Slot        uint64        `json:"slot"`
	Meta        *metaEnvelope `json:"meta,omitempty"`
}

type metaEnvelope struct {
	Fee uint64 `json:"fee"`
}

type pingEnvelope struct {
	ID int32 `json:"id"`
}

// subscribeEnvelope is the outbound request frame. ReplyTo and ControlTo
// carry the per-session subjects the client listens and sends on; they are
// set by the transport, not by callers.
type subscribeEnvelope struct {
	Accounts   []string      `json:"accounts,omitempty"`
	Commitment string        `json:"commitment,omitempty"`
	Ping       *pingEnvelope `json:"ping,omitempty"`
	ReplyTo    string        `json:"reply_to,omitempty"`
	ControlTo  string        `json:"control_to,omitempty"`
}

// decodeUpdate classifies one wire frame into the update union. The second
// return is true when the frame is the clean end-of-stream marker. Frames
// that fail to parse, carry no variant, or carry more than one variant
// classify as KindUnknown; the dispatcher treats that as a protocol
// violation rather than skipping it.
func decodeUpdate(data []byte) (*Update, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return &Update{Kind: KindUnknown, CreatedAt: time.Now().UTC()}, false
	}
	if env.EOF {
		return nil, true
	}

	u := &Update{
		Kind:      KindUnknown,
		Filters:   env.Filters,
		CreatedAt: env.CreatedAt,
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	variants := 0
	if env.Transaction != nil {
		variants++
		u.Kind = KindTransaction
		u.Transaction = &TransactionPayload{
			Signature:   env.Transaction.Signature,
			AccountKeys: env.Transaction.AccountKeys,
			Slot:        env.Transaction.Slot,
		}
		if env.Transaction.Meta != nil {
			u.Transaction.Meta = &TransactionMeta{Fee: env.Transaction.Meta.Fee}
		}
	}
	if env.Ping != nil {
		variants++
		u.Kind = KindPing
		u.Ping = &PingPayload{ID: env.Ping.ID}
	}
	if env.Pong != nil {
		variants++
		u.Kind = KindPong
		u.Pong = &PongPayload{ID: env.Pong.ID}
	}

	if variants != 1 {
		u.Kind = KindUnknown
		u.Transaction = nil
		u.Ping = nil
		u.Pong = nil
	}
	return u, false
}

// encodeSubscribeRequest serializes an outbound request frame.
func encodeSubscribeRequest(req *SubscribeRequest, replyTo, controlTo string) ([]byte, error) {
	env := subscribeEnvelope{
		Accounts:  req.Accounts,
		ReplyTo:   replyTo,
		ControlTo: controlTo,
	}
	if req.Ping != nil {
		env.Ping = &pingEnvelope{ID: req.Ping.ID}
	} else {
		env.Commitment = req.Commitment.String()
	}
	return json.Marshal(env)
}
