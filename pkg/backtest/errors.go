// Copyright 2025 Certen Protocol

package backtest

import "errors"

var errLengthMismatch = errors.New("backtest: close and signal must be the same length")
