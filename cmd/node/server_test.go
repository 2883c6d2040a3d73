// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/pool"
	"blockwatch.cc/near-stake/pkg/service"
	"blockwatch.cc/near-stake/pkg/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	backend, err := store.NewMem()
	require.NoError(t, err)
	cfg := service.DefaultConfig()
	cfg.Pool.ValidatorKey = "ed25519:validator"
	svc, err := service.New(backend, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	require.NoError(t, svc.Deploy())

	srv := httptest.NewServer(NewServer(svc).Router())
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, srv *httptest.Server, method, path string, body string, v interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestServerStakeFlow(t *testing.T) {
	srv, svc := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/chain/fund?account=alice.near&amount=100000000000000000000000000", "", nil))

	storageMin := svc.Accounts.StorageMin().String()
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/accounts/alice.near/storage_deposit?deposit="+storageMin, "", nil))

	var resp struct {
		Outcome struct {
			Success bool `json:"success"`
		} `json:"outcome"`
		Result pool.AccountBalances `json:"result"`
	}
	status := do(t, srv, http.MethodPost, "/accounts/alice.near/stake?deposit=1000000000000000000000000", "", &resp)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Outcome.Success)
	require.NotNil(t, resp.Result.Staked)
	assert.Equal(t, near.Near(1), resp.Result.Staked.NearValue)

	var bal pool.AccountBalances
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/accounts/alice.near/balance", "", &bal))
	assert.Equal(t, near.TokenAmount(near.Near(1)), bal.Staked.Stake)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/accounts/owner.near/ops", `{"command":"StartStaking"}`, nil))
	var drained []json.RawMessage
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/chain/drain", "", &drained))
	assert.Len(t, drained, 1)

	var st pool.StatusView
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/pool/status", "", &st))
	assert.Equal(t, pool.StatusView{Status: "Online", Online: true}, st)

	var info struct {
		Staked near.YoctoNear `json:"staked"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/chain/info", "", &info))
	assert.Equal(t, near.Near(1), info.Staked)
}

func TestServerErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	var e ErrorResponse
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/accounts/carol.near/balance", "", &e))

	e = ErrorResponse{}
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/accounts/carol.near/ops", `{"command":"StopStaking"}`, &e))
	assert.Equal(t, pool.ErrCode("ERR_NOT_AUTHORIZED"), e.Code)
	assert.Equal(t, "authorization", e.Kind)

	e = ErrorResponse{}
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/accounts/owner.near/ops", `{"command":"UpdateFees","fees":{"staking_fee":0,"earnings_fee":0}}`, &e))
	assert.Equal(t, pool.ErrCode("ERR_ZERO_FEES"), e.Code)
	require.NotNil(t, e.Outcome)
	assert.False(t, e.Outcome.Success)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/accounts/owner.near/stake?deposit=lots", "", nil))
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/accounts/owner.near/stake?deposit=1000000000000000000000000000000", "", nil), "wallet too small")
}

func TestServerZeroAmount(t *testing.T) {
	srv, svc := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/chain/fund?account=alice.near&amount=100000000000000000000000000", "", nil))
	storageMin := svc.Accounts.StorageMin().String()
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/accounts/alice.near/storage_deposit?deposit="+storageMin, "", nil))
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/accounts/alice.near/stake?deposit=1000000000000000000000000", "", nil))

	for _, method := range []string{"unstake", "restake", "withdraw"} {
		var e ErrorResponse
		assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/accounts/alice.near/"+method+"?amount=0", "", &e), method)
		assert.Equal(t, pool.ErrCode("ERR_ZERO_AMOUNT"), e.Code, method)
	}
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/accounts/alice.near/storage_withdraw?amount=0", "", nil))

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/accounts/owner.near/stake_owner_balance?amount=0", "", nil))

	var bal pool.AccountBalances
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/accounts/alice.near/balance", "", &bal))
	require.NotNil(t, bal.Staked)
	assert.Equal(t, near.Near(1), bal.Staked.NearValue, "nothing unstaked")
	assert.Nil(t, bal.Unstaked)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Listen)
	require.NoError(t, cfg.Validate())

	path := t.TempDir() + "/node.yaml"
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
drain_interval: 250ms
service:
  owner: ops.near
  storage_min: "5000"
  pool:
    validator_key: ed25519:abc
    staking_fee: 50
    earnings_fee: 100
    callback_gas: 20000000000000
  chain:
    contract_id: stake.near
    initial_balance: "1000000000000000000000000"
    unlock_epochs: 3
`), 0o600))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, near.AccountID("ops.near"), cfg.Service.Owner)
	assert.Equal(t, near.NewYocto(5000), cfg.Service.StorageMin)
	assert.Equal(t, near.BasisPoints(50), cfg.Service.Pool.StakingFee)
	assert.Equal(t, 20*near.TGas, cfg.Service.Pool.CallbackGas)
	assert.Equal(t, near.Near(1), cfg.Service.Chain.InitialBalance)
	assert.Equal(t, "250ms", cfg.DrainInterval.String())
}
