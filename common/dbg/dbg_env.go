// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package dbg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerwatch/log/v3"
)

const EnvPrefix = "BLOCKSTM_"

func envLookup(envVarName string) (string, bool) {
	if v, ok := os.LookupEnv(EnvPrefix + envVarName); ok {
		log.Warn("[env]", envVarName, v)
		return v, true
	}
	return "", false
}

func EnvBool(envVarName string, defaultVal bool) bool {
	v, _ := envLookup(envVarName)
	if strings.ToLower(v) == "true" {
		return true
	}
	if strings.ToLower(v) == "false" {
		return false
	}
	return defaultVal
}

func EnvInt(envVarName string, defaultVal int) int {
	v, _ := envLookup(envVarName)
	if v != "" {
		return int(MustParseInt(v))
	}
	return defaultVal
}

func EnvDuration(envVarName string, defaultVal time.Duration) time.Duration {
	v, _ := envLookup(envVarName)
	if v != "" {
		val, err := time.ParseDuration(v)
		if err != nil {
			panic(err)
		}
		return val
	}
	return defaultVal
}

func MustParseInt(strNum string) int64 {
	cleanNum := strings.ReplaceAll(strNum, "_", "")
	parsed, err := strconv.ParseInt(cleanNum, 10, 64)
	if err != nil {
		panic(fmt.Errorf("%w, str: %s", err, strNum))
	}
	return parsed
}

var (
	// ExecConcurrency overrides the number of parallel execution workers.
	ExecConcurrency = EnvInt("CONCURRENCY", 0)
	// AllowFallback lets a block that hit an engine invariant in parallel
	// mode be retried sequentially.
	AllowFallback = EnvBool("ALLOW_FALLBACK", true)
	// GroupCacheSize overrides the number of decoded resource groups cached
	// per block.
	GroupCacheSize = EnvInt("GROUP_CACHE_SIZE", 0)
	// ProfileDeps builds the read/write dependency DAG of every block.
	ProfileDeps = EnvBool("PROFILE_DEPS", false)
	// LogEvery is the interval of progress logs for long blocks.
	LogEvery = EnvDuration("LOG_EVERY", 20*time.Second)
	// SlowBlockThreshold logs blocks that take longer to execute.
	SlowBlockThreshold = EnvDuration("SLOW_BLOCK", time.Second)
)
