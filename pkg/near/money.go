// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package near

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Amounts are u128 on chain. They are kept in 256-bit words so products of two
// amounts never overflow before they are divided.
const maxAmountBits = 128

var yoctoPerNear = uint256.MustFromDecimal("1000000000000000000000000")

// YoctoNear is a NEAR balance in yocto units, 1 NEAR = 10^24 yocto.
type YoctoNear uint256.Int

var ZeroYocto YoctoNear

func NewYocto(n uint64) YoctoNear {
	return YoctoNear(*uint256.NewInt(n))
}

// Near converts whole NEAR into yocto.
func Near(n uint64) YoctoNear {
	z := new(uint256.Int).Mul(uint256.NewInt(n), yoctoPerNear)
	return YoctoNear(*z)
}

func YoctoFromInt(x *uint256.Int) YoctoNear {
	if x.BitLen() > maxAmountBits {
		panic(fmt.Sprintf("yocto amount overflow: %s", x.Dec()))
	}
	return YoctoNear(*x)
}

func ParseYocto(s string) (YoctoNear, error) {
	var z uint256.Int
	if err := z.SetFromDecimal(s); err != nil {
		return ZeroYocto, errors.Wrapf(err, "invalid yocto amount %q", s)
	}
	if z.BitLen() > maxAmountBits {
		return ZeroYocto, errors.Errorf("yocto amount %q exceeds u128", s)
	}
	return YoctoNear(z), nil
}

func MustParseYocto(s string) YoctoNear {
	y, err := ParseYocto(s)
	if err != nil {
		panic(err)
	}
	return y
}

func (m YoctoNear) Int() *uint256.Int {
	z := uint256.Int(m)
	return &z
}

func (m YoctoNear) IsZero() bool {
	return m == ZeroYocto
}

func (m YoctoNear) Cmp(n YoctoNear) int {
	return m.Int().Cmp(n.Int())
}

func (m YoctoNear) Lt(n YoctoNear) bool {
	return m.Cmp(n) < 0
}

func (m YoctoNear) Gt(n YoctoNear) bool {
	return m.Cmp(n) > 0
}

// Add panics on u128 overflow.
func (m YoctoNear) Add(n YoctoNear) YoctoNear {
	return YoctoNear(add128(uint256.Int(m), uint256.Int(n)))
}

// Sub panics on underflow, callers are expected to check balances first.
func (m YoctoNear) Sub(n YoctoNear) YoctoNear {
	return YoctoNear(sub128(uint256.Int(m), uint256.Int(n)))
}

func (m YoctoNear) SaturatingSub(n YoctoNear) YoctoNear {
	if m.Lt(n) {
		return ZeroYocto
	}
	return m.Sub(n)
}

func (m YoctoNear) Min(n YoctoNear) YoctoNear {
	if m.Lt(n) {
		return m
	}
	return n
}

func (m YoctoNear) Mul(n int) YoctoNear {
	z := new(uint256.Int).Mul(m.Int(), uint256.NewInt(uint64(n)))
	return YoctoFromInt(z)
}

func (m YoctoNear) Div(n int) YoctoNear {
	z := new(uint256.Int).Div(m.Int(), uint256.NewInt(uint64(n)))
	return YoctoNear(*z)
}

// Near returns the whole NEAR part of the amount, rounded down.
func (m YoctoNear) Near() uint64 {
	return new(uint256.Int).Div(m.Int(), yoctoPerNear).Uint64()
}

func (m YoctoNear) String() string {
	return m.Int().Dec()
}

func (m YoctoNear) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *YoctoNear) UnmarshalText(data []byte) error {
	y, err := ParseYocto(string(data))
	if err != nil {
		return err
	}
	*m = y
	return nil
}

// TokenAmount is a fungible token balance in the token's smallest unit.
type TokenAmount uint256.Int

var ZeroTokens TokenAmount

func NewTokenAmount(n uint64) TokenAmount {
	return TokenAmount(*uint256.NewInt(n))
}

func TokensFromInt(x *uint256.Int) TokenAmount {
	if x.BitLen() > maxAmountBits {
		panic(fmt.Sprintf("token amount overflow: %s", x.Dec()))
	}
	return TokenAmount(*x)
}

func ParseTokenAmount(s string) (TokenAmount, error) {
	y, err := ParseYocto(s)
	if err != nil {
		return ZeroTokens, err
	}
	return TokenAmount(y), nil
}

func (t TokenAmount) Int() *uint256.Int {
	z := uint256.Int(t)
	return &z
}

func (t TokenAmount) IsZero() bool {
	return t == ZeroTokens
}

func (t TokenAmount) Cmp(n TokenAmount) int {
	return t.Int().Cmp(n.Int())
}

func (t TokenAmount) Lt(n TokenAmount) bool {
	return t.Cmp(n) < 0
}

func (t TokenAmount) Gt(n TokenAmount) bool {
	return t.Cmp(n) > 0
}

func (t TokenAmount) Add(n TokenAmount) TokenAmount {
	return TokenAmount(add128(uint256.Int(t), uint256.Int(n)))
}

func (t TokenAmount) Sub(n TokenAmount) TokenAmount {
	return TokenAmount(sub128(uint256.Int(t), uint256.Int(n)))
}

func (t TokenAmount) String() string {
	return t.Int().Dec()
}

func (t TokenAmount) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TokenAmount) UnmarshalText(data []byte) error {
	a, err := ParseTokenAmount(string(data))
	if err != nil {
		return err
	}
	*t = a
	return nil
}

func add128(x, y uint256.Int) uint256.Int {
	var z uint256.Int
	z.Add(&x, &y)
	if z.BitLen() > maxAmountBits {
		panic(fmt.Sprintf("amount overflow: %s + %s", x.Dec(), y.Dec()))
	}
	return z
}

func sub128(x, y uint256.Int) uint256.Int {
	var z uint256.Int
	if _, underflow := z.SubOverflow(&x, &y); underflow {
		panic(fmt.Sprintf("amount underflow: %s - %s", x.Dec(), y.Dec()))
	}
	return z
}
