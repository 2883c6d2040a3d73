// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package chain

import (
	"sync"

	logpkg "github.com/echa/log"
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

var log logpkg.Logger = logpkg.Log

func UseLogger(logger logpkg.Logger) {
	log = logger
}

var ErrInsufficientWallet = errors.New("wallet balance is too low for the attached deposit")

// Contract receives promise callbacks.
type Contract interface {
	OnCallback(ctx *near.CallContext, method string, args []byte, result near.PromiseResult) error
}

type Config struct {
	ContractID     near.AccountID   `yaml:"contract_id"`
	InitialBalance near.YoctoNear   `yaml:"initial_balance"`
	RewardBps      near.BasisPoints `yaml:"reward_bps"`
	UnlockEpochs   uint64           `yaml:"unlock_epochs"`
}

func DefaultConfig() Config {
	return Config{
		ContractID:     "pool.near",
		InitialBalance: near.Near(10),
		UnlockEpochs:   3,
	}
}

// Receipt is a promise waiting for execution.
type Receipt struct {
	ID          string
	Predecessor near.AccountID
	Promise     *near.Promise
}

// Outcome is the result of a call or an executed receipt.
type Outcome struct {
	ReceiptID string   `json:"receipt_id,omitempty"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	Logs      []string `json:"logs,omitempty"`
	Receipts  []string `json:"receipts,omitempty"`
	GasBurnt  near.Gas `json:"gas_burnt"`
	Callback  *Outcome `json:"callback,omitempty"`
}

// Runtime simulates the NEAR runtime for a single contract account. Calls are
// atomic: the store is checkpointed before a call and reverted on failure.
// Promises created by a call are executed later, one receipt at a time.
type Runtime struct {
	mu        sync.Mutex
	db        *store.Stacked
	cfg       Config
	contract  Contract
	st        *chainState
	queue     []*Receipt
	failStake int
}

func New(db *store.Stacked, cfg Config, contract Contract) (*Runtime, error) {
	r := &Runtime{
		db:       db,
		cfg:      cfg,
		contract: contract,
	}
	ok, err := r.load()
	if err != nil {
		return nil, errors.Wrap(err, "load chain state")
	}
	if !ok {
		r.st = &chainState{
			Balance: cfg.InitialBalance,
			Wallets: make(map[near.AccountID]near.YoctoNear),
		}
		if err := r.persist(); err != nil {
			return nil, errors.Wrap(err, "init chain state")
		}
		log.Infof("chain: genesis for %s with %s yocto", cfg.ContractID, cfg.InitialBalance)
	}
	return r, nil
}

func (r *Runtime) ContractID() near.AccountID {
	return r.cfg.ContractID
}

func (r *Runtime) context(caller near.AccountID, deposit near.YoctoNear, gas near.Gas) *near.CallContext {
	if gas == 0 {
		gas = near.MaxPrepaidGas
	}
	return &near.CallContext{
		Contract:      r.cfg.ContractID,
		Caller:        caller,
		Amount:        deposit,
		Height:        r.st.Height,
		Epoch:         r.st.Epoch,
		Balance:       r.st.Balance.Add(deposit),
		LockedBalance: r.st.Validator.Locked(),
		PrepaidGas:    gas,
	}
}

// execute runs fn under a store checkpoint. Contract panics count as
// failures.
func (r *Runtime) execute(ctx *near.CallContext, fn func(*near.CallContext) error) (err error) {
	depth := r.db.Push()
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("contract panicked: %v", e)
		}
		if err != nil {
			r.db.PopTo(depth)
		}
	}()
	return fn(ctx)
}

// apply books a successful execution and enqueues its promises.
func (r *Runtime) apply(ctx *near.CallContext, out *Outcome) error {
	r.st.Balance = ctx.Balance
	for _, p := range ctx.Promises() {
		id := p.ID()
		if !id.Defined() {
			r.st.Nonce++
			var err error
			if id, err = p.Seal(r.st.Height, r.st.Nonce); err != nil {
				return errors.Wrap(err, "seal promise")
			}
		}
		r.queue = append(r.queue, &Receipt{
			ID:          id.String(),
			Predecessor: ctx.Contract,
			Promise:     p,
		})
		out.Receipts = append(out.Receipts, id.String())
	}
	return nil
}

// Call executes fn as a function call from caller with an attached deposit.
// The returned error is the contract error, in which case all state changes
// were reverted and the deposit was not charged.
func (r *Runtime) Call(caller near.AccountID, deposit near.YoctoNear, gas near.Gas, fn func(*near.CallContext) error) (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !deposit.IsZero() && r.st.Wallets[caller].Lt(deposit) {
		return nil, errors.Wrapf(ErrInsufficientWallet, "%s has %s, attached %s", caller, r.st.Wallets[caller], deposit)
	}
	ctx := r.context(caller, deposit, gas)
	out := &Outcome{}
	err := r.execute(ctx, fn)
	out.Logs = ctx.Logs()
	out.GasBurnt = ctx.UsedGas
	if err != nil {
		out.Error = err.Error()
		log.Debugf("chain: call by %s failed: %v", caller, err)
	} else {
		if !deposit.IsZero() {
			r.st.Wallets[caller] = r.st.Wallets[caller].Sub(deposit)
		}
		if aerr := r.apply(ctx, out); aerr != nil {
			return nil, aerr
		}
		out.Success = true
	}
	r.st.Height++
	if perr := r.persist(); perr != nil {
		return nil, errors.Wrap(perr, "commit call")
	}
	return out, err
}

// View runs fn read-only. Any writes are discarded.
func (r *Runtime) View(fn func(*near.CallContext) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx := r.context("", near.ZeroYocto, 0)
	ctx.ViewOnly = true
	depth := r.db.Push()
	defer r.db.PopTo(depth)
	return fn(ctx)
}

// Pending returns the number of queued receipts.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Step executes the next receipt and its callback. It returns nil when the
// queue is empty.
func (r *Runtime) Step() (*Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, nil
	}
	rc := r.queue[0]
	r.queue = r.queue[1:]

	out := &Outcome{ReceiptID: rc.ID, Success: true}
	if err := r.runActions(rc); err != nil {
		out.Success = false
		out.Error = err.Error()
		log.Warnf("chain: receipt %s failed: %v", rc.ID, err)
	}

	if cb := rc.Promise.Then; cb != nil && r.contract != nil {
		result := near.PromiseResult{ReceiptID: rc.ID, Success: out.Success, Error: out.Error}
		ctx := r.context(r.cfg.ContractID, near.ZeroYocto, cb.Gas)
		cbOut := &Outcome{ReceiptID: rc.ID}
		err := r.execute(ctx, func(ctx *near.CallContext) error {
			return r.contract.OnCallback(ctx, cb.Method, cb.Args, result)
		})
		cbOut.Logs = ctx.Logs()
		cbOut.GasBurnt = ctx.UsedGas
		if err != nil {
			cbOut.Error = err.Error()
			log.Errorf("chain: callback %s for %s failed: %v", cb.Method, rc.ID, err)
		} else {
			if err := r.apply(ctx, cbOut); err != nil {
				return nil, err
			}
			cbOut.Success = true
		}
		out.Callback = cbOut
	}

	r.st.Height++
	if err := r.persist(); err != nil {
		return nil, errors.Wrap(err, "commit receipt")
	}
	return out, nil
}

// Drain executes receipts until the queue is empty.
func (r *Runtime) Drain() ([]*Outcome, error) {
	var outs []*Outcome
	for {
		out, err := r.Step()
		if err != nil {
			return outs, err
		}
		if out == nil {
			return outs, nil
		}
		outs = append(outs, out)
	}
}

// runActions applies all actions of a receipt or none of them.
func (r *Runtime) runActions(rc *Receipt) error {
	snapshot := r.st.clone()
	receiver := rc.Promise.Receiver
	for _, a := range rc.Promise.Actions {
		var err error
		switch a.Kind {
		case near.ActionTransfer:
			r.credit(receiver, a.Amount)
		case near.ActionStake:
			err = r.stake(receiver, a.PublicKey, a.Amount)
		case near.ActionFunctionCall:
			if receiver == r.cfg.ContractID {
				err = errors.Errorf("function call %s on the contract is not supported", a.Method)
				break
			}
			r.credit(receiver, a.Amount)
			log.Debugf("chain: %s notified with %s", receiver, a.Method)
		default:
			err = errors.Errorf("unknown action %d", a.Kind)
		}
		if err != nil {
			r.st = snapshot
			return err
		}
	}
	return nil
}

func (r *Runtime) credit(id near.AccountID, amount near.YoctoNear) {
	if id == r.cfg.ContractID {
		r.st.Balance = r.st.Balance.Add(amount)
		return
	}
	r.st.Wallets[id] = r.st.Wallets[id].Add(amount)
}

func (r *Runtime) stake(receiver near.AccountID, key near.PublicKey, amount near.YoctoNear) error {
	if receiver != r.cfg.ContractID {
		return errors.Errorf("stake action on foreign account %s", receiver)
	}
	if r.failStake > 0 {
		r.failStake--
		return ErrStakeRejected
	}
	unlock := r.st.Epoch + near.EpochHeight(r.cfg.UnlockEpochs)
	liquid, err := r.st.Validator.stake(key, amount, r.st.Balance, unlock)
	if err != nil {
		return err
	}
	r.st.Balance = liquid
	log.Debugf("chain: staked %s, locked %s", amount, r.st.Validator.Locked())
	return nil
}

// FailNextStake makes the next n stake actions fail.
func (r *Runtime) FailNextStake(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failStake += n
}

// AdvanceEpoch starts a new epoch. The validator pays RewardBps on the staked
// balance and releases matured unstaked funds.
func (r *Runtime) AdvanceEpoch() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.Epoch++
	r.st.Height++
	reward := r.cfg.RewardBps.OfRoundedDown(r.st.Validator.Staked)
	r.st.Validator.Staked = r.st.Validator.Staked.Add(reward)
	released := r.st.Validator.mature(r.st.Epoch)
	r.st.Balance = r.st.Balance.Add(released)
	log.Infof("chain: epoch %d reward=%s released=%s", r.st.Epoch, reward, released)
	return r.persist()
}

// Reward pays amount to the contract as if earned by the validator. Without
// stake it lands on the liquid balance.
func (r *Runtime) Reward(amount near.YoctoNear) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.st.Validator.Staked.IsZero() {
		r.st.Balance = r.st.Balance.Add(amount)
	} else {
		r.st.Validator.Staked = r.st.Validator.Staked.Add(amount)
	}
	return r.persist()
}

// Fund credits an external wallet.
func (r *Runtime) Fund(id near.AccountID, amount near.YoctoNear) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.credit(id, amount)
	return r.persist()
}

func (r *Runtime) WalletBalance(id near.AccountID) near.YoctoNear {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.Wallets[id]
}

// Info is a snapshot of the simulated chain.
type Info struct {
	Height        int64            `json:"height"`
	Epoch         near.EpochHeight `json:"epoch"`
	Balance       near.YoctoNear   `json:"balance"`
	LockedBalance near.YoctoNear   `json:"locked_balance"`
	Staked        near.YoctoNear   `json:"staked"`
	Pending       int              `json:"pending_receipts"`
}

func (r *Runtime) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		Height:        r.st.Height,
		Epoch:         r.st.Epoch,
		Balance:       r.st.Balance,
		LockedBalance: r.st.Validator.Locked(),
		Staked:        r.st.Validator.Staked,
		Pending:       len(r.queue),
	}
}
