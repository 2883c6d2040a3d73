// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package near

import (
	"github.com/pkg/errors"
)

var (
	ErrViewOnly            = errors.New("state change in view call")
	ErrInsufficientBalance = errors.New("contract balance is insufficient")
)
