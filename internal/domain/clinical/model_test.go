package clinical

import (
	"testing"
	"time"
)

func TestRecordAccess_Active(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name   string
		access RecordAccess
		want   bool
	}{
		{"approved and unexpired", RecordAccess{Status: AccessApproved, ExpiresAt: &later}, true},
		{"approved but expired", RecordAccess{Status: AccessApproved, ExpiresAt: &earlier}, false},
		{"expires exactly now", RecordAccess{Status: AccessApproved, ExpiresAt: &now}, false},
		{"approved without expiry", RecordAccess{Status: AccessApproved}, false},
		{"pending", RecordAccess{Status: AccessPending, ExpiresAt: &later}, false},
		{"rejected", RecordAccess{Status: AccessRejected, ExpiresAt: &later}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.access.Active(now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
