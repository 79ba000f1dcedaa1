package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TimeLayout is the ISO-8601 form used for block timestamps, always UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// GenesisPreviousHash is the previous hash carried by the genesis block.
const GenesisPreviousHash = "0"

// Payload is the opaque data carried by a block.
type Payload map[string]interface{}

// Block is a single hash-linked ledger entry.
type Block struct {
	Index        int64   `json:"index"`
	Timestamp    string  `json:"timestamp"`
	Data         Payload `json:"data"`
	PreviousHash string  `json:"previousHash"`
	Hash         string  `json:"hash"`
	Nonce        int64   `json:"nonce"`
}

// FormatTime renders t the way block timestamps are stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// NewBlock creates a block and computes its hash.
func NewBlock(index int64, timestamp string, data Payload, previousHash string, nonce int64) (*Block, error) {
	b := &Block{
		Index:        index,
		Timestamp:    timestamp,
		Data:         data,
		PreviousHash: previousHash,
		Nonce:        nonce,
	}

	hash, err := b.CalculateHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}

// CalculateHash computes the SHA-256 hash of the block from its index,
// previous hash, timestamp, canonical data and nonce. The stored Hash field
// is not consulted or modified.
func (b *Block) CalculateHash() (string, error) {
	data, err := CanonicalJSON(b.Data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(strconv.FormatInt(b.Index, 10))
	buf.WriteString(b.PreviousHash)
	buf.WriteString(b.Timestamp)
	buf.Write(data)
	buf.WriteString(strconv.FormatInt(b.Nonce, 10))

	return hex.EncodeToString(chainhash.HashB(buf.Bytes())), nil
}

// IsGenesis reports whether b sits at the root of the chain.
func (b *Block) IsGenesis() bool {
	return b.Index == 0
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	if b.Data != nil {
		c.Data = copyValue(map[string]interface{}(b.Data)).(map[string]interface{})
	}
	return &c
}

// Encode serializes the block into its flat six-field record.
func (b *Block) Encode() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block %d: %w", b.Index, err)
	}
	return data, nil
}

// DecodeBlock restores a block from its stored record. The stored hash is
// kept verbatim so that verification compares against the historical value.
func DecodeBlock(data []byte) (*Block, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var b Block
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return &b, nil
}

// CanonicalJSON encodes p with keys sorted at every nesting level and number
// literals preserved, so equal payloads always produce equal bytes.
func CanonicalJSON(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}

	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = copyValue(val)
		}
		return m
	case Payload:
		return Payload(copyValue(map[string]interface{}(t)).(map[string]interface{}))
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, val := range t {
			s[i] = copyValue(val)
		}
		return s
	default:
		return v
	}
}
