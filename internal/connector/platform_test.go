package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityID(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{email: "Alice.Smith+cal@Example.com", want: "alicesmithcalexamplecom"},
		{email: "a@b.com", want: "abcom"},
		{email: "  ", want: ""},
		{email: "ÜSER_01@host.io", want: "ser01hostio"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, EntityID(tt.email))
		})
	}
}

func TestEntityID_Deterministic(t *testing.T) {
	assert.Equal(t, EntityID("a@b.com"), EntityID("A@B.COM"))
}

func TestConnection_Active(t *testing.T) {
	var nilConn *Connection
	assert.False(t, nilConn.Active())
	assert.False(t, (&Connection{Status: ConnectionPending}).Active())
	assert.True(t, (&Connection{Status: ConnectionActive}).Active())
}
