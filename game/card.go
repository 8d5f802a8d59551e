package game

import (
	"fmt"
	"math/rand"
)

const (
	// CardSize is the grid dimension.
	CardSize = 5
	// FreeRow, FreeCol locate the permanent wildcard cell.
	FreeRow = 2
	FreeCol = 2
	// FreeValue is the sentinel stored in the free cell.
	FreeValue = 0
	// bandSize is how many numbers each column letter owns.
	bandSize = 15
	// maxSampleAttempts bounds rejection sampling per column so a pathological
	// random source surfaces as an internal error instead of a stalled session.
	maxSampleAttempts = 4096
)

// Card is an immutable 5x5 bingo card. Columns hold 5 distinct values from
// that letter's band (B 1-15, I 16-30, N 31-45, G 46-60, O 61-75); the center
// of column N is the free cell, stored as FreeValue. Number is the card's
// catalog identity: with the deterministic generator the same number always
// yields the same card.
type Card struct {
	Number int          `json:"card_number"`
	B      [CardSize]int `json:"B"`
	I      [CardSize]int `json:"I"`
	N      [CardSize]int `json:"N"`
	G      [CardSize]int `json:"G"`
	O      [CardSize]int `json:"O"`
}

// Column returns the values of column col (0=B .. 4=O).
func (c Card) Column(col int) [CardSize]int {
	switch col {
	case 0:
		return c.B
	case 1:
		return c.I
	case 2:
		return c.N
	case 3:
		return c.G
	default:
		return c.O
	}
}

// Value returns the number at (row, col); the free cell reports FreeValue.
func (c Card) Value(row, col int) int {
	return c.Column(col)[row]
}

// IsFree reports whether (row, col) is the wildcard center cell.
func IsFree(row, col int) bool {
	return row == FreeRow && col == FreeCol
}

// GenerateCard deterministically produces the card for a catalog number:
// re-fetching the same number is idempotent.
func GenerateCard(number int) (Card, error) {
	card, err := newCard(rand.New(rand.NewSource(int64(number))))
	if err != nil {
		return Card{}, err
	}
	card.Number = number
	return card, nil
}

// RandomCard draws a one-off card from the supplied source. The caller is
// responsible for assigning a catalog number if it needs one.
func RandomCard(rng *rand.Rand) (Card, error) {
	return newCard(rng)
}

func newCard(rng *rand.Rand) (Card, error) {
	var cols [CardSize][CardSize]int
	for col := 0; col < CardSize; col++ {
		min := col*bandSize + 1
		values, err := sampleColumn(rng, min, min+bandSize-1)
		if err != nil {
			return Card{}, err
		}
		cols[col] = values
	}
	cols[FreeCol][FreeRow] = FreeValue
	return Card{B: cols[0], I: cols[1], N: cols[2], G: cols[3], O: cols[4]}, nil
}

// sampleColumn rejection-samples 5 distinct values in [min, max].
func sampleColumn(rng *rand.Rand, min, max int) ([CardSize]int, error) {
	var out [CardSize]int
	seen := make(map[int]bool, CardSize)
	attempts := 0
	for i := 0; i < CardSize; i++ {
		for {
			attempts++
			if attempts > maxSampleAttempts {
				return out, fmt.Errorf("%w: card generator exceeded %d samples for column %d-%d", ErrInternal, maxSampleAttempts, min, max)
			}
			n := min + rng.Intn(max-min+1)
			if !seen[n] {
				seen[n] = true
				out[i] = n
				break
			}
		}
	}
	return out, nil
}
