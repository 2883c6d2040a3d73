// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	logpkg "github.com/echa/log"
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/account"
	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

var log logpkg.Logger = logpkg.Log

func UseLogger(logger logpkg.Logger) {
	log = logger
}

const (
	// Unstaked funds unlock after the validator's 3 epoch delay plus one
	// epoch of margin.
	UNSTAKE_LOCK_EPOCHS = 4

	MAX_FEE_BPS = 1000

	// Gas charged for creating the stake action receipt.
	STAKE_ACTION_GAS = 5 * near.TGas

	// Gas attached to the callback of the compensating stop action.
	STOP_CALLBACK_GAS = 5 * near.TGas

	// The stake finalize callback may have to issue the stop action.
	MIN_CALLBACK_GAS     = STAKE_ACTION_GAS + STOP_CALLBACK_GAS
	DEFAULT_CALLBACK_GAS = 15 * near.TGas
	MAX_CALLBACK_GAS     = 100 * near.TGas
)

// AccountRepository holds registered accounts and their storage balances.
type AccountRepository interface {
	AccountExists(id near.AccountID) (bool, error)
	StorageBalanceOf(id near.AccountID) (*account.StorageBalance, error)
	IncrNearBalance(id near.AccountID, amount near.YoctoNear) error
	DecrNearBalance(id near.AccountID, amount near.YoctoNear) error
	RegisteredAccount(id near.AccountID) error
	TotalNearBalance() (near.YoctoNear, error)
}

// ShareToken is the STAKE ledger.
type ShareToken interface {
	BalanceOf(id near.AccountID) (near.TokenAmount, error)
	TotalSupply() (near.TokenAmount, error)
	Mint(id near.AccountID, amount near.TokenAmount) error
	Burn(id near.AccountID, amount near.TokenAmount) error
	Transfer(sender, receiver near.AccountID, amount near.TokenAmount, memo string) error
	TransferAndNotify(ctx *near.CallContext, receiver near.AccountID, amount near.TokenAmount, memo, msg string) (*near.Promise, error)
}

// PermissionOracle answers ownership and permission questions.
type PermissionOracle interface {
	CurrentOwner() (near.AccountID, error)
	HasPermission(id near.AccountID, perm account.Permission) (bool, error)
	GrantPermission(id near.AccountID, perm account.Permission) error
	RevokePermission(id near.AccountID, perm account.Permission) error
}

// Config holds the deployment parameters of a pool.
type Config struct {
	ValidatorKey near.PublicKey   `yaml:"validator_key" json:"validator_key"`
	StakingFee   near.BasisPoints `yaml:"staking_fee" json:"staking_fee"`
	EarningsFee  near.BasisPoints `yaml:"earnings_fee" json:"earnings_fee"`
	CallbackGas  near.Gas         `yaml:"callback_gas" json:"callback_gas"`
}

func DefaultConfig() Config {
	return Config{
		CallbackGas: DEFAULT_CALLBACK_GAS,
	}
}

func (c Config) Validate() error {
	if c.StakingFee > MAX_FEE_BPS || c.EarningsFee > MAX_FEE_BPS {
		return ErrFeeTooHigh
	}
	if c.CallbackGas < MIN_CALLBACK_GAS || c.CallbackGas > MAX_CALLBACK_GAS {
		return ErrInvalidCallbackGas
	}
	return nil
}

// Pool is the staking pool contract. All state lives in the store it was
// created with, so independent pools can share nothing.
type Pool struct {
	db       store.GetPutter
	accounts AccountRepository
	token    ShareToken
	perms    PermissionOracle
}

func New(db store.GetPutter, accounts AccountRepository, token ShareToken, perms PermissionOracle) *Pool {
	return &Pool{
		db:       db,
		accounts: accounts,
		token:    token,
		perms:    perms,
	}
}

// Deploy initializes the pool ledger. The pool starts offline and the current
// managed balance becomes the earnings baseline.
// Called by: owner
func (p *Pool) Deploy(ctx *near.CallContext, cfg Config) error {
	if _, err := p.loadState(); err == nil {
		return ErrAlreadyDeployed
	} else if !errors.Is(err, ErrNotDeployed) {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	managed, err := p.ContractManagedTotalBalance(ctx)
	if err != nil {
		return err
	}
	st := &State{
		Status:                     StatusOffline,
		OfflineReason:              ReasonStopped,
		ValidatorKey:               cfg.ValidatorKey,
		StakingFee:                 cfg.StakingFee,
		EarningsFee:                cfg.EarningsFee,
		CallbackGas:                cfg.CallbackGas,
		LastContractManagedBalance: managed,
	}
	log.Infof("pool: deployed %s key=%s staking_fee=%s earnings_fee=%s", ctx.Contract, cfg.ValidatorKey, cfg.StakingFee, cfg.EarningsFee)
	return p.saveState(st)
}

func (p *Pool) exchangeRate(st *State) (ExchangeRate, error) {
	supply, err := p.token.TotalSupply()
	if err != nil {
		return ExchangeRate{}, err
	}
	return NewExchangeRate(st.TotalStaked, supply), nil
}

func (p *Pool) requireRegistered(id near.AccountID) error {
	ok, err := p.accounts.AccountExists(id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrAccountNotRegistered, id.String())
	}
	return nil
}

// requirePermission passes for the owner and for accounts holding perm.
func (p *Pool) requirePermission(id near.AccountID, perm account.Permission) error {
	owner, err := p.perms.CurrentOwner()
	if err != nil {
		return err
	}
	if id == owner {
		return nil
	}
	ok, err := p.perms.HasPermission(id, perm)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrNotAuthorized, "%s requires %s permission", id, perm)
	}
	return nil
}

func (p *Pool) requireOwner(id near.AccountID) error {
	owner, err := p.perms.CurrentOwner()
	if err != nil {
		return err
	}
	if id != owner {
		return errors.Wrapf(ErrNotAuthorized, "%s is not the owner", id)
	}
	return nil
}

func requireNoDeposit(ctx *near.CallContext) error {
	if !ctx.Amount.IsZero() {
		return errors.Wrapf(ErrUnexpectedDeposit, "attached %s", ctx.Amount)
	}
	return nil
}
