package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/atlassian/gossipmember"
)

var (
	// ErrUnknownKind is returned when decoding a message with a tag this node does not understand.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrMalformed is returned when a payload can not be decoded.
	ErrMalformed = errors.New("malformed message")
)

// Field numbers of the protobuf compatible encoding:
//
//	message Message { int32 kind = 1; Address sender = 2; repeated Entry entries = 3; }
//	message Address { sint32 id = 1; sint32 port = 2; }
//	message Entry   { sint32 id = 1; sint32 port = 2; sint64 heartbeat = 3; sint64 last_refreshed = 4; }
const (
	fieldKind    protowire.Number = 1
	fieldSender  protowire.Number = 2
	fieldEntries protowire.Number = 3

	fieldID            protowire.Number = 1
	fieldPort          protowire.Number = 2
	fieldHeartbeat     protowire.Number = 3
	fieldLastRefreshed protowire.Number = 4
)

// Encode serializes a message.
func Encode(m Message) ([]byte, error) {
	switch m.(type) {
	case *JoinRequest, *JoinResponse, *Gossip:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	entries := m.Entries()
	b := make([]byte, 0, 16+len(entries)*24)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind()))
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendBytes(b, appendAddress(nil, m.Sender()))
	for _, e := range entries {
		b = protowire.AppendTag(b, fieldEntries, protowire.BytesType)
		b = protowire.AppendBytes(b, appendEntry(nil, e))
	}
	return b, nil
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendAddress(b []byte, a gossipmember.Address) []byte {
	b = appendSint(b, fieldID, int64(a.ID))
	return appendSint(b, fieldPort, int64(a.Port))
}

func appendEntry(b []byte, e gossipmember.Entry) []byte {
	b = appendAddress(b, e.Address)
	b = appendSint(b, fieldHeartbeat, e.Heartbeat)
	return appendSint(b, fieldLastRefreshed, int64(e.LastRefreshed))
}

// Decode parses a payload produced by Encode.  Unknown fields are skipped,
// an unknown kind is reported as ErrUnknownKind.
func Decode(b []byte) (Message, error) {
	var (
		kind      Kind
		sender    gossipmember.Address
		hasSender bool
		entries   []gossipmember.Entry
	)

	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}
			kind = Kind(v)
			return n, nil
		case num == fieldSender && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			a, err := decodeAddress(v)
			if err != nil {
				return 0, err
			}
			sender, hasSender = a, true
			return n, nil
		case num == fieldEntries && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			e, err := decodeEntry(v)
			if err != nil {
				return 0, err
			}
			entries = append(entries, e)
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return nil, err
	}
	if !hasSender {
		return nil, fmt.Errorf("%w: missing sender", ErrMalformed)
	}
	return New(kind, sender, entries)
}

// walk calls fn for each field in b.  fn consumes the field value and
// returns its length, or a negative protowire error code.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// sints decodes a sub-message made only of zigzag varint fields.
func sints(b []byte) (map[protowire.Number]int64, error) {
	fields := make(map[protowire.Number]int64, 4)
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			fields[num] = protowire.DecodeZigZag(v)
		}
		return n, nil
	})
	return fields, err
}

func decodeAddress(b []byte) (gossipmember.Address, error) {
	f, err := sints(b)
	if err != nil {
		return gossipmember.Address{}, err
	}
	a, err := gossipmember.AddressFromWire(f[fieldID], f[fieldPort])
	if err != nil {
		return gossipmember.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return a, nil
}

func decodeEntry(b []byte) (gossipmember.Entry, error) {
	f, err := sints(b)
	if err != nil {
		return gossipmember.Entry{}, err
	}
	a, err := gossipmember.AddressFromWire(f[fieldID], f[fieldPort])
	if err != nil {
		return gossipmember.Entry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return gossipmember.Entry{
		Address:       a,
		Heartbeat:     f[fieldHeartbeat],
		LastRefreshed: gossipmember.Tick(f[fieldLastRefreshed]),
	}, nil
}
