package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
)

func input(id string, qty int) *repository.Movement {
	return &repository.Movement{ID: id, Type: repository.MovementTypeInput, Quantity: qty}
}

func output(id string, qty int) *repository.Movement {
	return &repository.Movement{ID: id, Type: repository.MovementTypeOutput, Quantity: qty}
}

func TestReplayWithout(t *testing.T) {
	tests := []struct {
		name      string
		log       []*repository.Movement
		exclude   string
		wantStock int
		wantOK    bool
	}{
		{
			name:      "empty log after removing only movement",
			log:       []*repository.Movement{input("a", 10)},
			exclude:   "a",
			wantStock: 0,
			wantOK:    true,
		},
		{
			name: "removing unconsumed input",
			log: []*repository.Movement{
				input("a", 100),
				output("b", 40),
			},
			exclude:   "a",
			wantStock: 0,
			wantOK:    false,
		},
		{
			name: "removing input still covered by another",
			log: []*repository.Movement{
				input("a", 100),
				input("b", 50),
				output("c", 40),
			},
			exclude:   "b",
			wantStock: 60,
			wantOK:    true,
		},
		{
			name: "removing an output always succeeds",
			log: []*repository.Movement{
				input("a", 100),
				output("b", 40),
				output("c", 30),
			},
			exclude:   "b",
			wantStock: 70,
			wantOK:    true,
		},
		{
			name: "prefix dips negative even though final balance would not",
			log: []*repository.Movement{
				input("a", 50),
				output("b", 50),
				input("c", 80),
			},
			exclude:   "a",
			wantStock: 0,
			wantOK:    false,
		},
		{
			name: "removing input that backs a full drain",
			log: []*repository.Movement{
				input("a", 50),
				input("b", 10),
				output("c", 60),
				input("d", 5),
			},
			exclude:   "b",
			wantStock: 0,
			wantOK:    false,
		},
		{
			name: "removing movement leaves exact zero prefix",
			log: []*repository.Movement{
				input("a", 60),
				output("b", 60),
				input("c", 5),
			},
			exclude:   "c",
			wantStock: 0,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock, ok := replayWithout(tt.log, tt.exclude)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStock, stock)
		})
	}
}

func TestReplayWithout_ExcludeUnknownIDKeepsBalance(t *testing.T) {
	log := []*repository.Movement{
		input("a", 100),
		output("b", 30),
	}

	stock, ok := replayWithout(log, "missing")
	assert.True(t, ok)
	assert.Equal(t, 70, stock)
}
