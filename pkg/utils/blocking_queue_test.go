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

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/whxp/pkg/errors"
)

func TestBlockingQueueOrder(t *testing.T) {
	q := NewBlockingQueue[int](4)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.PushBack(i))
	}
	require.Equal(t, 3, q.QueueLength())

	for i := 0; i < 3; i++ {
		v, err := q.PopFront()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	require.Equal(t, 0, q.QueueLength())
}

func TestBlockingQueueClose(t *testing.T) {
	q := NewBlockingQueue[int](1)

	popped := make(chan error, 1)
	go func() {
		_, err := q.PopFront()
		popped <- err
	}()

	q.Close()
	select {
	case err := <-popped:
		require.ErrorIs(t, err, errors.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("PopFront did not return after Close")
	}

	require.ErrorIs(t, q.PushBack(1), errors.ErrQueueClosed)
}

func TestBlockingQueuePushUnblocksOnClose(t *testing.T) {
	q := NewBlockingQueue[int](1)
	require.NoError(t, q.PushBack(1))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.PushBack(2)
	}()

	q.Close()
	select {
	case err := <-pushed:
		require.ErrorIs(t, err, errors.ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("PushBack did not return after Close")
	}
}
