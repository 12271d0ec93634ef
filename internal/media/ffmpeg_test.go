package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want float64
	}{
		{"plain seconds", "1447.893000\n", 1447.893},
		{"integer", "90", 90},
		{"trailing whitespace", "  12.5  \n", 12.5},
		{"empty", "", 0},
		{"not a number", "N/A\n", 0},
		{"negative", "-3.0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDuration(tt.out))
		})
	}
}
