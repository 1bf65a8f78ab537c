// Package dice parses and rolls standard tabletop dice expressions such as
// "2d6+3" or "d20".
package dice

import (
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidRollString indicates an expression that does not match NdS(+/-M).
var ErrInvalidRollString = errors.New("invalid roll string")

// ErrTooManyDice indicates a roll count above the supported limit.
var ErrTooManyDice = errors.New("too many dice")

// ErrInvalidSides indicates a die with fewer than two sides or more than the
// supported maximum.
var ErrInvalidSides = errors.New("dice must have between 2 and 1000 sides")

const (
	maxCount = 100
	maxSides = 1000
)

var rollPattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Roll is a parsed dice expression.
type Roll struct {
	Count    int
	Sides    int
	Modifier int
}

// Result captures the outcome of rolling a parsed expression.
type Result struct {
	Rolls []int
	Total int
}

// Parse validates and decomposes a roll string. The count defaults to one
// when omitted ("d20" means "1d20"). Parsing is case-insensitive and ignores
// surrounding whitespace.
func Parse(s string) (Roll, error) {
	m := rollPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Roll{}, ErrInvalidRollString
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return Roll{}, ErrInvalidRollString
		}
		count = n
	}
	if count > maxCount {
		return Roll{}, ErrTooManyDice
	}

	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 || sides > maxSides {
		return Roll{}, ErrInvalidSides
	}

	modifier := 0
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil {
			return Roll{}, ErrInvalidRollString
		}
	}

	return Roll{Count: count, Sides: sides, Modifier: modifier}, nil
}

// Roll rolls the expression. The result is deterministic with respect to the
// seed: the same seed and expression always produce the same Result, with
// individual die results appearing in roll order.
func (r Roll) Roll(seed int64) Result {
	rng := rand.New(rand.NewSource(seed))
	result := Result{Rolls: make([]int, 0, r.Count)}
	for i := 0; i < r.Count; i++ {
		v := rng.Intn(r.Sides) + 1
		result.Rolls = append(result.Rolls, v)
		result.Total += v
	}
	result.Total += r.Modifier
	return result
}
