// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	cid "github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blockwatch.cc/near-stake/pkg/account"
	"blockwatch.cc/near-stake/pkg/chain"
	"blockwatch.cc/near-stake/pkg/ft"
	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/pool"
	"blockwatch.cc/near-stake/pkg/service"
)

var resultPrefix = cid.Prefix{
	Version:  1,
	Codec:    uint64(mc.Json),
	MhType:   mh.SHA2_256,
	MhLength: -1,
}

// Params are the query parameters shared by all call endpoints. Amounts are
// decimal yocto strings. A missing amount means "all", an explicit zero is
// passed through and rejected by the contract.
type Params struct {
	Deposit  near.YoctoNear   `schema:"deposit"`
	Amount   near.YoctoNear   `schema:"amount"`
	Shares   near.TokenAmount `schema:"shares"`
	TGas     uint64           `schema:"tgas"`
	Receiver near.AccountID   `schema:"receiver"`
	Account  near.AccountID   `schema:"account"`
	Memo     string           `schema:"memo"`
	Msg      string           `schema:"msg"`
	Count    int              `schema:"n"`

	hasAmount bool `schema:"-"`
}

func (p Params) amount() *near.YoctoNear {
	if !p.hasAmount {
		return nil
	}
	a := p.Amount
	return &a
}

type CallResponse struct {
	Outcome *chain.Outcome `json:"outcome,omitempty"`
	Result  interface{}    `json:"result,omitempty"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    pool.ErrCode   `json:"code,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Outcome *chain.Outcome `json:"outcome,omitempty"`
}

type callFunc func(ctx *near.CallContext, p Params) (interface{}, error)

type viewFunc func(ctx *near.CallContext, id near.AccountID) (interface{}, error)

type Server struct {
	svc     *service.Service
	decoder *schema.Decoder
}

func NewServer(svc *service.Service) *Server {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	dec.RegisterConverter(near.ZeroYocto, func(s string) reflect.Value {
		v, err := near.ParseYocto(s)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(v)
	})
	dec.RegisterConverter(near.ZeroTokens, func(s string) reflect.Value {
		v, err := near.ParseTokenAmount(s)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(v)
	})
	return &Server{svc: svc, decoder: dec}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	a := r.PathPrefix("/accounts/{account}").Subrouter()
	a.HandleFunc("/balance", s.view(s.balance)).Methods(http.MethodGet)
	a.HandleFunc("/storage_balance", s.view(s.storageBalance)).Methods(http.MethodGet)
	a.HandleFunc("/storage_deposit", s.call(s.storageDeposit)).Methods(http.MethodPost)
	a.HandleFunc("/storage_withdraw", s.call(s.storageWithdraw)).Methods(http.MethodPost)
	a.HandleFunc("/stake", s.call(s.stake)).Methods(http.MethodPost)
	a.HandleFunc("/stake_owner_balance", s.call(s.stakeOwnerBalance)).Methods(http.MethodPost)
	a.HandleFunc("/unstake", s.call(s.unstake)).Methods(http.MethodPost)
	a.HandleFunc("/restake", s.call(s.restake)).Methods(http.MethodPost)
	a.HandleFunc("/withdraw", s.call(s.withdraw)).Methods(http.MethodPost)
	a.HandleFunc("/transfer", s.call(s.transfer)).Methods(http.MethodPost)
	a.HandleFunc("/transfer_call", s.call(s.transferCall)).Methods(http.MethodPost)
	a.HandleFunc("/ops", s.opsCommand).Methods(http.MethodPost)
	a.HandleFunc("/treasury/deposit", s.call(s.treasuryDeposit)).Methods(http.MethodPost)
	a.HandleFunc("/treasury/distribution", s.call(s.treasuryDistribution)).Methods(http.MethodPost)
	a.HandleFunc("/treasury/transfer", s.call(s.treasuryTransfer)).Methods(http.MethodPost)
	a.HandleFunc("/treasury/grant", s.call(s.grantTreasurer)).Methods(http.MethodPost)
	a.HandleFunc("/treasury/revoke", s.call(s.revokeTreasurer)).Methods(http.MethodPost)

	p := r.PathPrefix("/pool").Subrouter()
	p.HandleFunc("/balances", s.view(s.poolBalances)).Methods(http.MethodGet)
	p.HandleFunc("/fees", s.view(func(*near.CallContext, near.AccountID) (interface{}, error) {
		return s.svc.Pool.Fees()
	})).Methods(http.MethodGet)
	p.HandleFunc("/status", s.view(func(*near.CallContext, near.AccountID) (interface{}, error) {
		return s.svc.Pool.Status()
	})).Methods(http.MethodGet)
	p.HandleFunc("/state", s.view(func(*near.CallContext, near.AccountID) (interface{}, error) {
		return s.svc.Pool.State()
	})).Methods(http.MethodGet)
	p.HandleFunc("/token_value", s.view(func(*near.CallContext, near.AccountID) (interface{}, error) {
		return s.svc.Pool.StakeTokenValue()
	})).Methods(http.MethodGet)
	p.HandleFunc("/metadata", s.view(func(*near.CallContext, near.AccountID) (interface{}, error) {
		return s.svc.Token.Metadata()
	})).Methods(http.MethodGet)
	p.HandleFunc("/supply", s.view(func(*near.CallContext, near.AccountID) (interface{}, error) {
		return s.svc.Token.TotalSupply()
	})).Methods(http.MethodGet)

	c := r.PathPrefix("/chain").Subrouter()
	c.HandleFunc("/info", s.chainInfo).Methods(http.MethodGet)
	c.HandleFunc("/{action:epoch|reward|fund|fail_stake|drain}", s.chainAdmin).Methods(http.MethodPost)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s %s", r.Method, r.URL, time.Since(start))
	})
}

func (s *Server) params(r *http.Request) (Params, error) {
	var p Params
	if err := r.ParseForm(); err != nil {
		return p, err
	}
	if err := s.decoder.Decode(&p, r.Form); err != nil {
		return p, errors.Wrap(err, "invalid parameters")
	}
	p.hasAmount = r.Form.Has("amount")
	return p, nil
}

// call runs fn as a contract call signed by the account in the path.
func (s *Server) call(fn callFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.params(r)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err, nil)
			return
		}
		s.exec(w, near.AccountID(mux.Vars(r)["account"]), p, fn)
	}
}

func (s *Server) exec(w http.ResponseWriter, caller near.AccountID, p Params, fn callFunc) {
	var result interface{}
	out, err := s.svc.Chain.Call(caller, p.Deposit, near.Gas(p.TGas)*near.TGas, func(ctx *near.CallContext) (err error) {
		result, err = fn(ctx, p)
		return
	})
	if err != nil {
		s.fail(w, statusOf(err), err, out)
		return
	}
	s.reply(w, CallResponse{Outcome: out, Result: result})
}

func (s *Server) view(fn viewFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var result interface{}
		err := s.svc.Chain.View(func(ctx *near.CallContext) (err error) {
			result, err = fn(ctx, near.AccountID(mux.Vars(r)["account"]))
			return
		})
		if err != nil {
			s.fail(w, statusOf(err), err, nil)
			return
		}
		s.reply(w, result)
	}
}

// reply writes v as json and tags it with its content id.
func (s *Server) reply(w http.ResponseWriter, v interface{}) {
	buf, err := json.Marshal(v)
	if err != nil {
		log.Error(err)
		http.Error(w, fmt.Sprintf("marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	if c, err := resultPrefix.Sum(buf); err == nil {
		w.Header().Set("X-Result-Cid", c.String())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error, out *chain.Outcome) {
	resp := ErrorResponse{
		Error:   err.Error(),
		Code:    pool.CodeOf(err),
		Outcome: out,
	}
	if kind, ok := pool.KindOf(err); ok {
		resp.Kind = kind.String()
	}
	if status >= http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	buf, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf)
}

func statusOf(err error) int {
	if kind, ok := pool.KindOf(err); ok {
		switch kind {
		case pool.KindAuthorization:
			return http.StatusForbidden
		case pool.KindInsufficientFunds, pool.KindIllegalState:
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, account.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, account.ErrInsufficientDeposit),
		errors.Is(err, account.ErrZeroAmount),
		errors.Is(err, ft.ErrZeroAmount),
		errors.Is(err, ft.ErrSelfTransfer):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrInsufficientBalance),
		errors.Is(err, ft.ErrInsufficientBalance),
		errors.Is(err, chain.ErrInsufficientWallet):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) balance(ctx *near.CallContext, id near.AccountID) (interface{}, error) {
	b, err := s.svc.Pool.BalanceOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.Wrap(account.ErrNotRegistered, id.String())
	}
	return b, nil
}

func (s *Server) storageBalance(_ *near.CallContext, id near.AccountID) (interface{}, error) {
	b, err := s.svc.Accounts.StorageBalanceOf(id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.Wrap(account.ErrNotRegistered, id.String())
	}
	return b, nil
}

func (s *Server) poolBalances(ctx *near.CallContext, _ near.AccountID) (interface{}, error) {
	return s.svc.Pool.PoolBalances(ctx)
}

func (s *Server) storageDeposit(ctx *near.CallContext, p Params) (interface{}, error) {
	id := ctx.Caller
	if p.Account != "" {
		id = p.Account
	}
	return s.svc.Accounts.StorageDeposit(ctx, id)
}

func (s *Server) storageWithdraw(ctx *near.CallContext, p Params) (interface{}, error) {
	return s.svc.Accounts.StorageWithdraw(ctx, p.amount())
}

func (s *Server) stake(ctx *near.CallContext, _ Params) (interface{}, error) {
	return s.svc.Pool.Stake(ctx)
}

func (s *Server) stakeOwnerBalance(ctx *near.CallContext, p Params) (interface{}, error) {
	return s.svc.Pool.StakeOwnerBalance(ctx, p.amount())
}

func (s *Server) unstake(ctx *near.CallContext, p Params) (interface{}, error) {
	return s.svc.Pool.Unstake(ctx, p.amount())
}

func (s *Server) restake(ctx *near.CallContext, p Params) (interface{}, error) {
	return s.svc.Pool.Restake(ctx, p.amount())
}

func (s *Server) withdraw(ctx *near.CallContext, p Params) (interface{}, error) {
	return s.svc.Pool.Withdraw(ctx, p.amount())
}

func (s *Server) transfer(ctx *near.CallContext, p Params) (interface{}, error) {
	return nil, s.svc.Pool.Transfer(ctx, p.Receiver, p.Shares, p.Memo)
}

func (s *Server) transferCall(ctx *near.CallContext, p Params) (interface{}, error) {
	_, err := s.svc.Pool.TransferCall(ctx, p.Receiver, p.Shares, p.Memo, p.Msg)
	return nil, err
}

func (s *Server) treasuryDeposit(ctx *near.CallContext, _ Params) (interface{}, error) {
	return nil, s.svc.Pool.TreasuryDeposit(ctx)
}

func (s *Server) treasuryDistribution(ctx *near.CallContext, _ Params) (interface{}, error) {
	return nil, s.svc.Pool.TreasuryDistribution(ctx)
}

func (s *Server) treasuryTransfer(ctx *near.CallContext, p Params) (interface{}, error) {
	return nil, s.svc.Pool.TreasuryTransferToOwner(ctx, p.amount())
}

func (s *Server) grantTreasurer(ctx *near.CallContext, p Params) (interface{}, error) {
	return nil, s.svc.Pool.GrantTreasurer(ctx, p.Account)
}

func (s *Server) revokeTreasurer(ctx *near.CallContext, p Params) (interface{}, error) {
	return nil, s.svc.Pool.RevokeTreasurer(ctx, p.Account)
}

// opsCommand takes the command as json body, e.g. {"command":"StartStaking"}.
func (s *Server) opsCommand(w http.ResponseWriter, r *http.Request) {
	var cmd pool.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.fail(w, http.StatusBadRequest, errors.Wrap(err, "invalid command"), nil)
		return
	}
	r.Body.Close()
	p, err := s.params(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err, nil)
		return
	}
	s.exec(w, near.AccountID(mux.Vars(r)["account"]), p, func(ctx *near.CallContext, _ Params) (interface{}, error) {
		return nil, s.svc.Pool.OpsCommand(ctx, cmd)
	})
}

func (s *Server) chainInfo(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.svc.Chain.Info())
}

// chainAdmin drives the simulated chain.
func (s *Server) chainAdmin(w http.ResponseWriter, r *http.Request) {
	p, err := s.params(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err, nil)
		return
	}
	rt := s.svc.Chain
	var result interface{}
	switch mux.Vars(r)["action"] {
	case "epoch":
		n := p.Count
		if n <= 0 {
			n = 1
		}
		for i := 0; i < n && err == nil; i++ {
			err = rt.AdvanceEpoch()
		}
	case "reward":
		err = rt.Reward(p.Amount)
	case "fund":
		err = rt.Fund(p.Account, p.Amount)
	case "fail_stake":
		rt.FailNextStake(p.Count)
	case "drain":
		result, err = rt.Drain()
	}
	if err != nil {
		s.fail(w, statusOf(err), err, nil)
		return
	}
	if result == nil {
		result = rt.Info()
	}
	s.reply(w, result)
}
