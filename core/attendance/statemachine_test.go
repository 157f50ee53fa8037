package attendance

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kinderhub/core/child"
)

func TestNextTransition(t *testing.T) {
	tests := []struct {
		name       string
		current    child.Status
		wantTo     child.Status
		wantLedger Status
		wantMsg    string
		wantErr    error
	}{
		{name: "absent checks in", current: child.StatusAbsent, wantTo: child.StatusPresent, wantLedger: StatusPresent, wantMsg: "Lina checked in"},
		{name: "present is picked up", current: child.StatusPresent, wantTo: child.StatusPickedUp, wantLedger: StatusPickedUp, wantMsg: "Lina was picked up"},
		{name: "picked up checks in again", current: child.StatusPickedUp, wantTo: child.StatusPresent, wantLedger: StatusPresent, wantMsg: "Lina checked in again"},
		{name: "pickup requested has no transition", current: child.StatusPickupRequested, wantErr: ErrInvalidState},
		{name: "unknown status", current: child.Status("ASLEEP"), wantErr: ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NextTransition(tt.current)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.current, tr.From)
			assert.Equal(t, tt.wantTo, tr.To)
			assert.Equal(t, tt.wantLedger, tr.Ledger)
			assert.Equal(t, tt.wantMsg, tr.Message("Lina"))
			assert.Equal(t, tt.wantTo == child.StatusPresent, tr.ChecksIn())
		})
	}
}
