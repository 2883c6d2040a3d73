// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind groups error codes by how a caller can recover from them.
type Kind uint8

const (
	KindValidation Kind = iota
	KindAuthorization
	KindInsufficientFunds
	KindIllegalState
	KindInsufficientGas
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindIllegalState:
		return "illegal_state"
	case KindInsufficientGas:
		return "insufficient_gas"
	default:
		return "unknown"
	}
}

type ErrCode string

// Error is a pool failure with a stable code. Sentinel values are wrapped with
// context and matched with errors.Is.
type Error struct {
	Code ErrCode
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Msg)
}

func newError(code ErrCode, kind Kind, msg string) *Error {
	return &Error{Code: code, Kind: kind, Msg: msg}
}

var (
	ErrNotDeployed          = newError("ERR_NOT_DEPLOYED", KindIllegalState, "pool is not deployed")
	ErrAlreadyDeployed      = newError("ERR_ALREADY_DEPLOYED", KindIllegalState, "pool is already deployed")
	ErrAccountNotRegistered = newError("ERR_ACCOUNT_NOT_REGISTERED", KindValidation, "account is not registered")
	ErrZeroAmount           = newError("ERR_ZERO_AMOUNT", KindValidation, "amount must not be zero")
	ErrStakeAmountTooLow    = newError("ERR_STAKE_AMOUNT_TOO_LOW", KindValidation, "amount is too low to mint any STAKE")
	ErrUnexpectedDeposit    = newError("ERR_UNEXPECTED_DEPOSIT", KindValidation, "method does not accept an attached deposit")
	ErrFeeTooHigh           = newError("ERR_FEE_TOO_HIGH", KindValidation, "fee must not exceed 1000 bps")
	ErrZeroFees             = newError("ERR_ZERO_FEES", KindValidation, "at least one fee must be non-zero")
	ErrInvalidCallbackGas   = newError("ERR_INVALID_CALLBACK_GAS", KindValidation, "callback gas is out of range")
	ErrInvalidCommand       = newError("ERR_INVALID_COMMAND", KindValidation, "unknown operator command")
	ErrValidatorKeyNotSet   = newError("ERR_VALIDATOR_KEY_NOT_SET", KindValidation, "validator public key is not set")
	ErrNotAuthorized        = newError("ERR_NOT_AUTHORIZED", KindAuthorization, "caller is not authorized")
	ErrNotPrivate           = newError("ERR_NOT_PRIVATE", KindAuthorization, "method can only be called by the contract")
	ErrInsufficientStake    = newError("ERR_INSUFFICIENT_STAKE", KindInsufficientFunds, "STAKE balance is insufficient")
	ErrInsufficientUnstaked = newError("ERR_INSUFFICIENT_UNSTAKED", KindInsufficientFunds, "unstaked balance is insufficient")
	ErrInsufficientFunds    = newError("ERR_INSUFFICIENT_FUNDS", KindInsufficientFunds, "available balance is insufficient")
	ErrInsufficientTreasury = newError("ERR_INSUFFICIENT_TREASURY", KindInsufficientFunds, "treasury balance is insufficient")
	ErrPoolOnline           = newError("ERR_POOL_ONLINE", KindIllegalState, "operation is not allowed while the pool is online")
	ErrInsufficientGas      = newError("ERR_INSUFFICIENT_GAS", KindInsufficientGas, "not enough gas attached to pay for the stake action callback")
)

// KindOf returns the kind of a pool error and false for any other error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// CodeOf returns the code of a pool error or an empty code.
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
