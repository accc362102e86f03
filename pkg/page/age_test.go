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

package page

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAge(t *testing.T) {
	src := `# a comment
Page=Default,Finale
SequencePrefix=42

Page=Nexus
`
	age, err := ParseAge(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 42, age.SequencePrefix)
	require.Equal(t, []string{"Default", "Finale", "Nexus", "BuiltIn", "Textures"}, age.Pages)
}

func TestParseAgeImpliesCommonPagesWhenAbsent(t *testing.T) {
	age, err := ParseAge(strings.NewReader("SequencePrefix=1\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"BuiltIn", "Textures"}, age.Pages)
}

func TestParseAgeDedupesExplicitCommonPage(t *testing.T) {
	age, err := ParseAge(strings.NewReader("Page=BuiltIn,Custom\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"BuiltIn", "Custom", "Textures"}, age.Pages)
}

func TestPageFilePath(t *testing.T) {
	require.Equal(t, "dat/Teledahn_District_Nexus.prp", PageFilePath("Teledahn", "Nexus"))
}
