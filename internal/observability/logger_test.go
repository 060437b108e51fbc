package observability

import "testing"

func TestRotationSettings(t *testing.T) {
	tests := []struct {
		name                 string
		sizeMB, backups      int
		wantSize, wantBackup int
	}{
		{"configured values pass through", 50, 10, 50, 10},
		{"zero size falls back", 0, 10, 20, 10},
		{"zero backups falls back", 50, 0, 50, 5},
		{"both zero use defaults", 0, 0, 20, 5},
		{"negative treated as unset", -1, -1, 20, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, backups := rotationSettings(tt.sizeMB, tt.backups)
			if size != tt.wantSize || backups != tt.wantBackup {
				t.Errorf("rotationSettings(%d, %d) = (%d, %d), want (%d, %d)",
					tt.sizeMB, tt.backups, size, backups, tt.wantSize, tt.wantBackup)
			}
		})
	}
}
