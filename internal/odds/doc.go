// Package odds converts between the three ways a betting price is written.
//
// # Notations
//
//   - American: signed integer. +130 pays 130 profit per 100 staked; -150 needs
//     150 staked to profit 100.
//   - Decimal: total return per unit staked, always greater than 1 for a real price.
//   - Implied probability: the chance a price encodes if it were fair, in (0, 1).
//
// # Validation
//
// Zero and any American price with magnitude below 100 are rejected with
// ErrInvalidOdds. Those values have no meaning on a betting board and would
// break the round trip DecimalToAmerican(AmericanToDecimal(o)) == o.
// Magnitudes above MaxAmerican are rejected as well: past it float64 can no
// longer keep the implied probability below 1.
//
// -100 and +100 are the same price (even money); both convert to decimal 2.0
// and convert back as +100.
package odds
