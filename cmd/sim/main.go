// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/echa/log"
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/pool"
)

var (
	nodeEndpoint  string
	ownerId       string
	accountIds    = []string{"alice.near", "bob.near"}
	stakeString   string
	storageString string
	rewardString  string
	epochs        int
	failStake     bool
	flags         = flag.NewFlagSet("sim", flag.ContinueOnError)
	client        = &http.Client{Timeout: 10 * time.Second}
)

func init() {
	flags.Usage = func() {}
	flags.StringVar(&nodeEndpoint, "node", "http://localhost:8000", "staking pool node endpoint")
	flags.StringVar(&ownerId, "owner", envOr("STAKE_OWNER", "owner.near"), "pool owner account")
	flags.StringVar(&stakeString, "stake", "10", "NEAR staked per account")
	flags.StringVar(&storageString, "storage", "3930000000000000000000", "storage deposit in yocto")
	flags.StringVar(&rewardString, "reward", "1", "NEAR rewarded to the pool")
	flags.IntVar(&epochs, "epochs", pool.UNSTAKE_LOCK_EPOCHS, "epochs to advance before withdrawing")
	flags.BoolVar(&failStake, "fail", false, "fail one stake action")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	err := flags.Parse(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			fmt.Printf("Usage: %s [flags]\n", os.Args[0])
			fmt.Println("\nFlags")
			flags.PrintDefaults()
			return nil
		}
		return err
	}

	stake, err := parseNear(stakeString)
	if err != nil {
		return err
	}
	reward, err := parseNear(rewardString)
	if err != nil {
		return err
	}

	storageMin, err := near.ParseYocto(storageString)
	if err != nil {
		return err
	}

	// fund and register accounts
	for _, id := range accountIds {
		if err := post("/chain/fund", url.Values{"account": {id}, "amount": {stake.Mul(2).String()}}, nil); err != nil {
			return err
		}
		if err := post(accountPath(id, "storage_deposit"), url.Values{"deposit": {storageMin.String()}}, nil); err != nil {
			log.Warnf("register %s: %v", id, err)
		}
	}

	// stake and go online
	for _, id := range accountIds {
		if err := post(accountPath(id, "stake"), url.Values{"deposit": {stake.String()}}, nil); err != nil {
			return err
		}
		log.Infof("%s staked %s", id, stake)
	}
	if err := ops(pool.Command{Kind: pool.CmdStartStaking}); err != nil {
		return err
	}
	if err := drain(); err != nil {
		return err
	}
	if err := showPool(); err != nil {
		return err
	}

	// earn rewards and settle them with the next operation
	if err := post("/chain/reward", url.Values{"amount": {reward.String()}}, nil); err != nil {
		return err
	}
	if err := post("/chain/epoch", nil, nil); err != nil {
		return err
	}
	if err := post(accountPath(accountIds[1], "treasury/distribution"), nil, nil); err != nil {
		return err
	}
	if err := drain(); err != nil {
		return err
	}
	if err := showPool(); err != nil {
		return err
	}

	if failStake {
		if err := post("/chain/fail_stake", url.Values{"n": {"1"}}, nil); err != nil {
			return err
		}
		if err := post(accountPath(accountIds[1], "stake"), url.Values{"deposit": {near.Near(1).String()}}, nil); err != nil {
			return err
		}
		if err := drain(); err != nil {
			return err
		}
		if err := showPool(); err != nil {
			return err
		}
	}

	// unstake, wait for the lock and withdraw
	unstaker := accountIds[0]
	if err := post(accountPath(unstaker, "unstake"), nil, nil); err != nil {
		return err
	}
	if err := drain(); err != nil {
		return err
	}
	if err := post("/chain/epoch", url.Values{"n": {strconv.Itoa(epochs)}}, nil); err != nil {
		return err
	}
	if err := post(accountPath(unstaker, "withdraw"), nil, nil); err != nil {
		return err
	}
	if err := drain(); err != nil {
		return err
	}
	for _, id := range append(accountIds, ownerId) {
		var b pool.AccountBalances
		if err := get(accountPath(id, "balance"), &b); err != nil {
			return err
		}
		buf, _ := json.Marshal(b)
		log.Infof("%s %s", id, string(buf))
	}
	return showPool()
}

func parseNear(s string) (near.YoctoNear, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return near.ZeroYocto, errors.Wrapf(err, "invalid NEAR amount %q", s)
	}
	return near.Near(n), nil
}

func accountPath(id, method string) string {
	return "/accounts/" + id + "/" + method
}

func ops(cmd pool.Command) error {
	buf, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	resp, err := client.Post(nodeEndpoint+accountPath(ownerId, "ops"), "application/json", bytes.NewReader(buf))
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

func drain() error {
	var outs []json.RawMessage
	if err := post("/chain/drain", nil, &outs); err != nil {
		return err
	}
	for _, out := range outs {
		log.Debugf("receipt %s", string(out))
	}
	return nil
}

func showPool() error {
	var b pool.PoolBalances
	if err := get("/pool/balances", &b); err != nil {
		return err
	}
	var s pool.StatusView
	if err := get("/pool/status", &s); err != nil {
		return err
	}
	log.Infof("pool %s staked=%s supply=%s unstaked=%s liquidity=%s treasury=%s",
		s.Status, b.TotalStaked, b.TotalStakeSupply, b.TotalUnstaked, b.UnstakedLiquidity, b.TreasuryBalance)
	return nil
}

func post(path string, args url.Values, v interface{}) error {
	u := nodeEndpoint + path
	if len(args) > 0 {
		u += "?" + args.Encode()
	}
	resp, err := client.Post(u, "application/json", nil)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

func get(path string, v interface{}) error {
	resp, err := client.Get(nodeEndpoint + path)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

func decode(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: %s", resp.Request.URL.Path, string(buf))
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(buf, v)
}
