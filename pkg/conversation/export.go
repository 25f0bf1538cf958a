// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/ragcore/pkg/rerrors"
)

func exportJSON(full Full) (string, error) {
	out, err := json.MarshalIndent(full, "", "  ")
	if err != nil {
		return "", rerrors.Internal("conversation.Manager", "marshal session export", err)
	}
	return string(out), nil
}

func exportMarkdown(full Full) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", full.Session.Name)
	fmt.Fprintf(&b, "Status: %s\n\n", full.Session.Status)

	if len(full.Summaries) > 0 {
		b.WriteString("## Summaries\n\n")
		for _, s := range full.Summaries {
			fmt.Fprintf(&b, "> %s\n\n", s.Summary)
		}
	}

	b.WriteString("## Messages\n\n")
	for _, m := range full.Messages {
		fmt.Fprintf(&b, "**%s** (%s): %s\n\n", m.Role, m.Type, m.Content)
	}
	return b.String()
}

func exportText(full Full) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n\n", full.Session.Name, full.Session.Status)
	for _, s := range full.Summaries {
		fmt.Fprintf(&b, "(summary) %s\n", s.Summary)
	}
	for _, m := range full.Messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
