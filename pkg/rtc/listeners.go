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
package rtc

import "sync"

// listeners is a set of callbacks that can be removed individually.
type listeners[T any] struct {
	lock   sync.Mutex
	nextID int
	fns    map[int]func(T)
}

func (l *listeners[T]) add(f func(T)) func() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = f

	var once sync.Once
	return func() {
		once.Do(func() {
			l.lock.Lock()
			delete(l.fns, id)
			l.lock.Unlock()
		})
	}
}

func (l *listeners[T]) empty() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	return len(l.fns) == 0
}

func (l *listeners[T]) emit(v T) {
	l.lock.Lock()
	fns := make([]func(T), 0, len(l.fns))
	for _, f := range l.fns {
		fns = append(fns, f)
	}
	l.lock.Unlock()

	for _, f := range fns {
		f(v)
	}
}
