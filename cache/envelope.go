package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Entry is one cached payload. Entries are replaced wholesale, never patched.
type Entry struct {
	Key       Key
	Payload   []byte
	WrittenAt time.Time
}

var envelopeMagic = []byte("snapgate/1\n")

type envelopeHeader struct {
	Key       string    `json:"key"`
	WrittenAt time.Time `json:"written_at"`
	Size      int       `json:"size"`
	SHA256    string    `json:"sha256"`
}

// encodeEntry frames a payload as: magic line, JSON header line, payload.
func encodeEntry(e Entry) ([]byte, error) {
	sum := sha256.Sum256(e.Payload)
	header, err := json.Marshal(envelopeHeader{
		Key:       e.Key.Path(),
		WrittenAt: e.WrittenAt.UTC(),
		Size:      len(e.Payload),
		SHA256:    hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(envelopeMagic)+len(header)+1+len(e.Payload))
	buf = append(buf, envelopeMagic...)
	buf = append(buf, header...)
	buf = append(buf, '\n')
	buf = append(buf, e.Payload...)
	return buf, nil
}

// decodeEntry verifies and unframes data stored under key.
func decodeEntry(key Key, data []byte) (Entry, error) {
	corrupt := func(reason string) (Entry, error) {
		return Entry{}, &CorruptionError{Path: key.Path(), Reason: reason}
	}

	rest, ok := bytes.CutPrefix(data, envelopeMagic)
	if !ok {
		return corrupt("missing envelope magic")
	}
	headerLine, payload, ok := bytes.Cut(rest, []byte{'\n'})
	if !ok {
		return corrupt("truncated header")
	}

	var h envelopeHeader
	if err := json.Unmarshal(headerLine, &h); err != nil {
		return corrupt("unparseable header: " + err.Error())
	}
	if h.Key != key.Path() {
		return corrupt("header addresses " + h.Key)
	}
	if h.Size != len(payload) {
		return corrupt("payload size mismatch")
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != h.SHA256 {
		return corrupt("checksum mismatch")
	}

	return Entry{Key: key, Payload: payload, WrittenAt: h.WrittenAt}, nil
}
