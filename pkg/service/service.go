// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package service

import (
	logpkg "github.com/echa/log"
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/account"
	"blockwatch.cc/near-stake/pkg/chain"
	"blockwatch.cc/near-stake/pkg/ft"
	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/pool"
	"blockwatch.cc/near-stake/pkg/store"
)

var log logpkg.Logger = logpkg.Log

func UseLogger(logger logpkg.Logger) {
	log = logger
}

type Config struct {
	StorageMin near.YoctoNear `yaml:"storage_min"`
	Owner      near.AccountID `yaml:"owner"`
	Pool       pool.Config    `yaml:"pool"`
	Chain      chain.Config   `yaml:"chain"`
}

func DefaultConfig() Config {
	return Config{
		StorageMin: near.MustParseYocto("3930000000000000000000"), // 0.00393 NEAR
		Owner:      "owner.near",
		Pool:       pool.DefaultConfig(),
		Chain:      chain.DefaultConfig(),
	}
}

// Service wires the pool and its collaborators to one store and a simulated
// runtime.
type Service struct {
	cfg      Config
	db       *store.Stacked
	Accounts *account.Repository
	Token    *ft.Token
	Pool     *pool.Pool
	Chain    *chain.Runtime
}

func New(backend store.Backend, cfg Config) (*Service, error) {
	db := store.NewStacked(backend)
	accounts := account.New(db, cfg.StorageMin)
	token := ft.New(db)
	p := pool.New(db, accounts, token, accounts)
	rt, err := chain.New(db, cfg.Chain, p)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:      cfg,
		db:       db,
		Accounts: accounts,
		Token:    token,
		Pool:     p,
		Chain:    rt,
	}, nil
}

func (s *Service) Close() error {
	return s.db.Backend().Close()
}

func (s *Service) Config() Config {
	return s.cfg
}

// Deploy registers the owner with the storage minimum and initializes the
// pool. It is a no-op for an already deployed pool.
func (s *Service) Deploy() error {
	owner := s.cfg.Owner
	storageMin := s.Accounts.StorageMin()
	if s.Chain.WalletBalance(owner).Lt(storageMin) {
		if err := s.Chain.Fund(owner, storageMin); err != nil {
			return err
		}
	}
	_, err := s.Chain.Call(owner, storageMin, 0, func(ctx *near.CallContext) error {
		if _, err := s.Accounts.StorageDeposit(ctx, owner); err != nil {
			return err
		}
		if err := s.Accounts.SetOwner(owner); err != nil {
			return err
		}
		if err := s.Token.SetMetadata(ft.NewMetadata(ctx.Contract)); err != nil {
			return err
		}
		return s.Pool.Deploy(ctx, s.cfg.Pool)
	})
	if errors.Is(err, pool.ErrAlreadyDeployed) {
		log.Infof("service: pool %s already deployed", s.Chain.ContractID())
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "deploy")
	}
	log.Infof("service: deployed pool %s owned by %s", s.Chain.ContractID(), owner)
	return nil
}

// Register pays the storage deposit from the account's wallet.
func (s *Service) Register(id near.AccountID, deposit near.YoctoNear) (*account.StorageBalance, error) {
	var bal *account.StorageBalance
	_, err := s.Chain.Call(id, deposit, 0, func(ctx *near.CallContext) (err error) {
		bal, err = s.Accounts.StorageDeposit(ctx, id)
		return
	})
	return bal, err
}
