package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "blanks only", input: []string{"", "  "}, expected: []string{}},
		{name: "broker list", input: []string{" kafka-1:9092", "kafka-2:9092 ", "kafka-1:9092"}, expected: []string{"kafka-1:9092", "kafka-2:9092"}},
		{name: "case is significant", input: []string{"Zhang", "ZHANG"}, expected: []string{"Zhang", "ZHANG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeFold(t *testing.T) {
	got := DedupeFold([]string{" ZHANG ", "zhang", "Wei", "", "E12345678", "e12345678"})
	assert.Equal(t, []string{"ZHANG", "Wei", "E12345678"}, got)
}
