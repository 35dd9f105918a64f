// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysled is a container for the system status LED packages.
//
// The LED controller lives in the sysled subpackage; regmap holds the
// register map it is synchronized from; ledtrace and termled help running
// it away from the target board.
package sysled
