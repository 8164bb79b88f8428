package database

import "testing"

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"001_chat_turns.sql", 1},
		{"012_add_index.sql", 12},
		{"000_nothing.sql", 0},
		{"README.md", 0},
		{"abc_chat.sql", 0},
		{"001chat.sql", 0},
		{"001_chat_turns.sql.bak", 0},
	}

	for _, tt := range tests {
		if got := migrationVersion(tt.name); got != tt.want {
			t.Errorf("migrationVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
