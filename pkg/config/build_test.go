/*
 *     Copyright 2024 The CNAI Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBuild() *Build {
	b := NewBuild()
	b.Server.DroidKey = "31415926535897932384626433832795"[:32]
	b.Output.Manifests = "/tmp/out/manifests"
	b.Output.Lists = "/tmp/out/lists"
	b.Source.DataPath = "/tmp/src/data"
	b.Source.ScriptsPath = "/tmp/src/scripts"
	b.Source.GatherPath = "/tmp/src/gather"
	return b
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	require.NoError(t, validBuild().Validate())
}

func TestValidateRejectsBadServerType(t *testing.T) {
	b := validBuild()
	b.Server.Type = "xml"
	assert.Error(t, b.Validate())
}

func TestValidateRejectsShortDroidKey(t *testing.T) {
	b := validBuild()
	b.Server.DroidKey = "deadbeef"
	assert.Error(t, b.Validate())
}

func TestValidateRejectsNonHexDroidKey(t *testing.T) {
	b := validBuild()
	b.Server.DroidKey = "zz" + b.Server.DroidKey[2:]
	assert.Error(t, b.Validate())
}

func TestValidateRejectsMissingOutputDirs(t *testing.T) {
	b := validBuild()
	b.Output.Manifests = ""
	assert.Error(t, b.Validate())
}

func TestValidateDefaultsConcurrencyWhenNonPositive(t *testing.T) {
	b := validBuild()
	b.Concurrency = 0
	require.NoError(t, b.Validate())
	assert.Greater(t, b.Concurrency, 0)
}
