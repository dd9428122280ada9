// Copyright (c) 2013-2014 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup

import (
	"github.com/btcfullnode/node/logger"
	"github.com/btcfullnode/node/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.PGRP)
var spawn = panics.GoroutineWrapperFunc(log)
