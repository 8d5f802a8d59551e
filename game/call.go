package game

import (
	"fmt"
	"strconv"
)

// TotalNumbers is the size of the draw pool. Numbers 1-75 never repeat within
// a session, so a Call is uniquely identified by its number alone.
const TotalNumbers = 75

// Letters are the column headers; each letter owns a disjoint 15-number band.
var Letters = [5]string{"B", "I", "N", "G", "O"}

// Call is one announced draw: a letter paired with a number in that letter's
// exclusive range.
type Call struct {
	Letter string `json:"letter"`
	Number int    `json:"number"`
}

// LetterFor derives the column letter for a number in 1-75.
func LetterFor(n int) string {
	switch {
	case n < 1:
		return ""
	case n <= 15:
		return "B"
	case n <= 30:
		return "I"
	case n <= 45:
		return "N"
	case n <= 60:
		return "G"
	case n <= TotalNumbers:
		return "O"
	}
	return ""
}

// NewCall builds the Call for a drawn number.
func NewCall(n int) (Call, error) {
	letter := LetterFor(n)
	if letter == "" {
		return Call{}, fmt.Errorf("%w: drawn number %d outside 1-%d", ErrInternal, n, TotalNumbers)
	}
	return Call{Letter: letter, Number: n}, nil
}

func (c Call) String() string {
	return c.Letter + strconv.Itoa(c.Number)
}
