package gossipmember

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "bootstrap", input: "1:0", want: Address{ID: 1, Port: 0}},
		{name: "with spaces", input: " 7:8080 ", want: Address{ID: 7, Port: 8080}},
		{name: "negative id", input: "-3:1", want: Address{ID: -3, Port: 1}},
		{name: "empty", input: "", wantErr: true},
		{name: "no port", input: "12", wantErr: true},
		{name: "bad id", input: "x:1", wantErr: true},
		{name: "port overflow", input: "1:70000", wantErr: true},
		{name: "id overflow", input: "9999999999:1", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidAddress))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAddressStringRoundTrip(t *testing.T) {
	t.Parallel()
	a := Address{ID: 42, Port: 1234}
	require.Equal(t, "42:1234", a.String())
	require.Equal(t, a, MustParseAddress(a.String()))
}

func TestAddressEquality(t *testing.T) {
	t.Parallel()
	require.Equal(t, Address{ID: 1, Port: 2}, Address{ID: 1, Port: 2})
	require.NotEqual(t, Address{ID: 1, Port: 2}, Address{ID: 1, Port: 3})
	require.NotEqual(t, Address{ID: 1, Port: 2}, Address{ID: 2, Port: 2})
}

func TestAddressFromWire(t *testing.T) {
	t.Parallel()
	a, err := AddressFromWire(3, 4)
	require.NoError(t, err)
	require.Equal(t, Address{ID: 3, Port: 4}, a)

	_, err = AddressFromWire(1<<40, 0)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = AddressFromWire(1, 1<<20)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestEntryAge(t *testing.T) {
	t.Parallel()
	e := Entry{LastRefreshed: 10}
	require.Equal(t, Tick(5), e.Age(15))
}
