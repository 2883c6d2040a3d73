// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package near

import (
	"strconv"

	"github.com/holiman/uint256"
)

const BasisPointsDenominator = 10000

var bpsDenominator = uint256.NewInt(BasisPointsDenominator)

// BasisPoints is 1/100th of a percent, 100 bps = 1%.
type BasisPoints uint16

func (b BasisPoints) Value() uint16 {
	return uint16(b)
}

// OfRoundedDown returns amount * b / 10000 rounded down.
func (b BasisPoints) OfRoundedDown(amount YoctoNear) YoctoNear {
	z := new(uint256.Int).Mul(amount.Int(), uint256.NewInt(uint64(b)))
	return YoctoNear(*z.Div(z, bpsDenominator))
}

// OfRoundedUp returns amount * b / 10000 rounded up.
func (b BasisPoints) OfRoundedUp(amount YoctoNear) YoctoNear {
	z := new(uint256.Int).Mul(amount.Int(), uint256.NewInt(uint64(b)))
	z.Add(z, uint256.NewInt(BasisPointsDenominator-1))
	return YoctoNear(*z.Div(z, bpsDenominator))
}

func (b BasisPoints) String() string {
	return strconv.FormatUint(uint64(b), 10)
}
