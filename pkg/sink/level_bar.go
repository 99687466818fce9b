// Copyright 2026 LiveKit, Inc.
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
package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const defaultBarWidth = 40

// LevelBar draws the latest audio level as a single terminal line.
type LevelBar struct {
	lock  sync.Mutex
	out   io.Writer
	width int
	label string
}

func NewLevelBar(out io.Writer, label string) *LevelBar {
	return &LevelBar{
		out:   out,
		width: defaultBarWidth,
		label: label,
	}
}

func (b *LevelBar) DrawLevels(levels []float64) {
	if len(levels) == 0 {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	_, _ = fmt.Fprintf(b.out, "\r%s [%s]", b.label, b.render(levels[len(levels)-1]))
}

func (b *LevelBar) render(level float64) string {
	switch {
	case level < 0:
		level = 0
	case level > 1:
		level = 1
	}

	filled := int(level*float64(b.width) + 0.5)
	return strings.Repeat("#", filled) + strings.Repeat(" ", b.width-filled)
}
