package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/atlassian/gossipmember"
)

func sampleEntries() []gossipmember.Entry {
	return []gossipmember.Entry{
		{Address: gossipmember.Address{ID: 2, Port: 0}, Heartbeat: 17, LastRefreshed: 40},
		{Address: gossipmember.Address{ID: 3, Port: -5}, Heartbeat: 1, LastRefreshed: 41},
	}
}

func TestEncodeDecodePreservesMessage(t *testing.T) {
	t.Parallel()
	from := gossipmember.Address{ID: 1, Port: 0}

	for _, kind := range []Kind{KindJoinRequest, KindJoinResponse, KindGossip} {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			t.Parallel()
			m, err := New(kind, from, sampleEntries())
			require.NoError(t, err)

			b, err := Encode(m)
			require.NoError(t, err)

			got, err := Decode(b)
			require.NoError(t, err)
			require.Equal(t, m, got)
		})
	}
}

func TestDecodeEmptyTable(t *testing.T) {
	t.Parallel()
	b, err := Encode(&JoinRequest{From: gossipmember.Address{ID: 4, Port: 9}})
	require.NoError(t, err)

	m, err := Decode(b)
	require.NoError(t, err)
	require.IsType(t, &JoinRequest{}, m)
	require.Empty(t, m.Entries())
	require.Equal(t, gossipmember.Address{ID: 4, Port: 9}, m.Sender())
}

func TestDecodeUnknownKind(t *testing.T) {
	t.Parallel()
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendBytes(b, appendAddress(nil, gossipmember.Address{ID: 1}))

	_, err := Decode(b)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	t.Parallel()
	b, err := Encode(&Gossip{From: gossipmember.Address{ID: 1}, Table: sampleEntries()})
	require.NoError(t, err)
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	m, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, sampleEntries(), m.Entries())
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	good, err := Encode(&Gossip{From: gossipmember.Address{ID: 1}, Table: sampleEntries()})
	require.NoError(t, err)

	tests := map[string][]byte{
		"truncated":      good[:len(good)-3],
		"garbage":        {0xff, 0xff, 0xff},
		"missing sender": protowire.AppendVarint(protowire.AppendTag(nil, fieldKind, protowire.VarintType), uint64(KindGossip)),
	}
	for name, b := range tests {
		b := b
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(b)
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecodeRejectsOversizedPort(t *testing.T) {
	t.Parallel()
	var addr []byte
	addr = appendSint(addr, fieldID, 1)
	addr = appendSint(addr, fieldPort, 1<<20)

	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(KindGossip))
	b = protowire.AppendTag(b, fieldSender, protowire.BytesType)
	b = protowire.AppendBytes(b, addr)

	_, err := Decode(b)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestKindString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "GOSSIP", KindGossip.String())
	require.Equal(t, "UNKNOWN(7)", Kind(7).String())
}
