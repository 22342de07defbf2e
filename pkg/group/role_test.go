package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrLow  = "02:00:00:00:00:00"
	addrHigh = "02:00:00:00:01:00"
)

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name    string
		local   Intent
		peer    Intent
		want    Role
		wantErr error
	}{
		{
			name:  "higher intent wins",
			local: Intent{Address: addrLow, GoIntent: 10},
			peer:  Intent{Address: addrHigh, GoIntent: 3},
			want:  RoleGroupOwner,
		},
		{
			name:  "lower intent is client",
			local: Intent{Address: addrHigh, GoIntent: 0},
			peer:  Intent{Address: addrLow, GoIntent: 15},
			want:  RoleClient,
		},
		{
			name:  "tie broken by greater address",
			local: Intent{Address: addrHigh, GoIntent: 7},
			peer:  Intent{Address: addrLow, GoIntent: 7},
			want:  RoleGroupOwner,
		},
		{
			name:  "tie lower address is client",
			local: Intent{Address: addrLow, GoIntent: 7},
			peer:  Intent{Address: addrHigh, GoIntent: 7},
			want:  RoleClient,
		},
		{
			name:    "both require group owner",
			local:   Intent{Address: addrLow, GoIntent: 15},
			peer:    Intent{Address: addrHigh, GoIntent: 15},
			wantErr: ErrFormationFailed,
		},
		{
			name:  "join existing group",
			local: Intent{Address: addrHigh, GoIntent: 15, Join: true},
			peer:  Intent{Address: addrLow, GoIntent: 0, HasGroup: true},
			want:  RoleClient,
		},
		{
			name:  "accept joiner",
			local: Intent{Address: addrLow, HasGroup: true},
			peer:  Intent{Address: addrHigh, GoIntent: 15, Join: true},
			want:  RoleGroupOwner,
		},
		{
			name:    "join without group",
			local:   Intent{Address: addrLow, Join: true},
			peer:    Intent{Address: addrHigh},
			wantErr: ErrFormationFailed,
		},
		{
			name:  "existing group owner keeps role",
			local: Intent{Address: addrLow, GoIntent: 0, HasGroup: true},
			peer:  Intent{Address: addrHigh, GoIntent: 15},
			want:  RoleGroupOwner,
		},
		{
			name:    "intent out of range",
			local:   Intent{Address: addrLow, GoIntent: 16},
			peer:    Intent{Address: addrHigh},
			wantErr: ErrInvalidIntent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRole(tt.local, tt.peer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Both sides must agree.
			other, err := ResolveRole(tt.peer, tt.local)
			require.NoError(t, err)
			assert.NotEqual(t, got, other)
		})
	}
}

func TestOperatingFrequency(t *testing.T) {
	assert.Equal(t, 5180, OperatingFrequency(5180, 2412, 2437))
	assert.Equal(t, 2412, OperatingFrequency(0, 2412, 2437))
	assert.Equal(t, 2462, OperatingFrequency(0, 0, 2462))
	assert.Equal(t, DefaultFrequency, OperatingFrequency(0, 0, 0))
}
