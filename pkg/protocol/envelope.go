// Package protocol defines the wire envelope and file metadata carried
// over the visual channel between a Sender and a Receiver.
package protocol

import (
	"encoding/json"
	"strings"
)

// Kind tags the seven envelope variants. Only six are ever emitted on
// the wire; Unknown is never emitted and is the codec's default for
// anything it cannot recognize.
type Kind int

const (
	KindMetaInfo         Kind = 0
	KindMetaInfoReceived Kind = 1
	KindOkNext           Kind = 2
	KindEvalSHA256       Kind = 3
	KindInvalidSHA256    Kind = 4
	KindCompleted        Kind = 50
	KindUnknown          Kind = 100
)

func (k Kind) String() string {
	switch k {
	case KindMetaInfo:
		return "meta_info"
	case KindMetaInfoReceived:
		return "meta_info_received"
	case KindOkNext:
		return "ok_next"
	case KindEvalSHA256:
		return "eval_sha256"
	case KindInvalidSHA256:
		return "invalid_sha256"
	case KindCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func knownKind(k Kind) bool {
	switch k {
	case KindMetaInfo, KindMetaInfoReceived, KindOkNext, KindEvalSHA256, KindInvalidSHA256, KindCompleted:
		return true
	default:
		return false
	}
}

// Envelope is the single message every QR image on the channel
// carries. Nonce is the observer-side dedup key: it must strictly
// increase within one emitter.
type Envelope struct {
	KindID Kind   `json:"kind_id"`
	Body   string `json:"body"`
	Nonce  int64  `json:"nonce"`
}

// wireEnvelope mirrors Envelope but with pointer fields so Decode can
// tell "field present but empty" apart from "field missing".
type wireEnvelope struct {
	KindID *Kind   `json:"kind_id"`
	Body   *string `json:"body"`
	Nonce  *int64  `json:"nonce"`
}

// Encode serializes env to the textual payload that gets rendered
// into a QR image. Body whitespace is trimmed before encoding.
func Encode(env Envelope) (string, error) {
	env.Body = strings.TrimSpace(env.Body)
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode is total: malformed payloads, payloads missing a field, or
// an unrecognized kind_id all map to Envelope{KindID: KindUnknown}
// rather than an error. Both state machines treat Unknown as a no-op.
func Decode(payload string) Envelope {
	var w wireEnvelope
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return Envelope{KindID: KindUnknown}
	}
	if w.KindID == nil || w.Body == nil || w.Nonce == nil {
		return Envelope{KindID: KindUnknown}
	}
	if !knownKind(*w.KindID) {
		return Envelope{KindID: KindUnknown}
	}
	return Envelope{
		KindID: *w.KindID,
		Body:   strings.TrimSpace(*w.Body),
		Nonce:  *w.Nonce,
	}
}
