// ABOUTME: Conversions between American odds, decimal odds, and implied probability
// ABOUTME: Pure functions with no state; invalid prices are rejected, never guessed

package odds

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidOdds is returned for prices that are not valid odds
var ErrInvalidOdds = errors.New("invalid odds")

// minAmerican is the smallest magnitude a real American price can have.
// Prices strictly between -100 and +100 do not exist on either side of the line.
const minAmerican = 100

// MaxAmerican is the largest magnitude accepted. Beyond it a favourite's
// decimal price rounds to 1.0 and the implied probability to 1.
const MaxAmerican = 1_000_000

// Validate reports whether american is a usable American price.
func Validate(american int) error {
	if american == 0 {
		return fmt.Errorf("%w: american odds cannot be zero", ErrInvalidOdds)
	}
	if american > -minAmerican && american < minAmerican {
		return fmt.Errorf("%w: american odds %d must be <= -100 or >= +100", ErrInvalidOdds, american)
	}
	if american > MaxAmerican || american < -MaxAmerican {
		return fmt.Errorf("%w: american odds %d exceed magnitude %d", ErrInvalidOdds, american, MaxAmerican)
	}
	return nil
}

// AmericanToDecimal converts an American price to decimal odds (always >= 1).
func AmericanToDecimal(american int) (float64, error) {
	if err := Validate(american); err != nil {
		return 0, err
	}
	if american > 0 {
		return float64(american)/100 + 1, nil
	}
	return 100/math.Abs(float64(american)) + 1, nil
}

// ImpliedProbability returns the probability an American price encodes if treated as fair.
// The result lies strictly inside (0, 1).
func ImpliedProbability(american int) (float64, error) {
	if err := Validate(american); err != nil {
		return 0, err
	}
	if american > 0 {
		return 100 / (float64(american) + 100), nil
	}
	abs := math.Abs(float64(american))
	return abs / (abs + 100), nil
}

// DecimalToAmerican converts decimal odds back to an American price.
// Decimal odds of exactly 1.0 carry no price and are rejected.
func DecimalToAmerican(decimal float64) (int, error) {
	if math.IsNaN(decimal) || math.IsInf(decimal, 0) {
		return 0, fmt.Errorf("%w: decimal odds must be finite", ErrInvalidOdds)
	}
	if decimal <= 1 {
		return 0, fmt.Errorf("%w: decimal odds %.4f must be greater than 1", ErrInvalidOdds, decimal)
	}
	if decimal >= 2 {
		return int(math.Round((decimal - 1) * 100)), nil
	}
	return int(math.Round(-100 / (decimal - 1))), nil
}

// ParseAmerican parses a display price such as "+130", "-150", "130" or "EVEN".
func ParseAmerican(s string) (int, error) {
	raw := strings.TrimSpace(s)
	switch strings.ToUpper(raw) {
	case "":
		return 0, fmt.Errorf("%w: empty price", ErrInvalidOdds)
	case "EVEN", "EV", "EVS":
		return 100, nil
	}

	american, err := strconv.Atoi(strings.TrimPrefix(raw, "+"))
	if err != nil {
		return 0, fmt.Errorf("%w: cannot parse %q", ErrInvalidOdds, s)
	}
	if strings.HasPrefix(raw, "+") && american < 0 {
		return 0, fmt.Errorf("%w: cannot parse %q", ErrInvalidOdds, s)
	}
	if err := Validate(american); err != nil {
		return 0, err
	}
	return american, nil
}

// Format renders an American price with an explicit sign, e.g. "+130" or "-150".
func Format(american int) string {
	if american > 0 {
		return "+" + strconv.Itoa(american)
	}
	return strconv.Itoa(american)
}
