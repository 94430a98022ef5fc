// Package dsync provides synchronization primitives: an upgradable shared
// mutex, which guards task adjacency in the task package, and a counting
// semaphore.
package dsync

import (
	"runtime"
	"sync/atomic"
)

// UpgradableSharedMutex packs reader count, an upgrade-in-progress bit and a
// writer bit into a single word. Readers add 4 per holder so the low two
// bits stay free for Upgraded and Writer.
//
// Bit layout:
//
//	bit 0       Writer
//	bit 1       Upgraded
//	bits 2..31  Reader count (weight 4)
type UpgradableSharedMutex struct {
	state atomic.Uint32
}

const (
	writerBit   uint32 = 1
	upgradedBit uint32 = 2
	readerUnit  uint32 = 4
)

const spinLimit = 1000

// Lock acquires exclusive (writer) access. Pre: no writer, no upgraded.
func (m *UpgradableSharedMutex) Lock() {
	for i := 0; ; i++ {
		if m.state.CompareAndSwap(0, writerBit) {
			return
		}
		backoff(i)
	}
}

// Unlock releases exclusive access, clearing writer and upgraded.
func (m *UpgradableSharedMutex) Unlock() {
	for {
		cur := m.state.Load()
		if m.state.CompareAndSwap(cur, cur&^(writerBit|upgradedBit)) {
			return
		}
	}
}

// RLock acquires shared (reader) access. Pre: no writer, no upgraded.
func (m *UpgradableSharedMutex) RLock() {
	for i := 0; ; i++ {
		prev := m.state.Add(readerUnit)
		if prev&(writerBit|upgradedBit) == 0 {
			return
		}
		m.state.Add(^(readerUnit - 1))
		backoff(i)
	}
}

// RUnlock releases shared access. Pre: caller holds a reader slot.
func (m *UpgradableSharedMutex) RUnlock() {
	m.state.Add(^(readerUnit - 1))
}

// UpgradeLock acquires the upgrade bit, which coexists with readers but not
// with another upgrader or a writer. Pre: no upgraded, no writer.
func (m *UpgradableSharedMutex) UpgradeLock() {
	for i := 0; ; i++ {
		cur := m.state.Load()
		if cur&(upgradedBit|writerBit) == 0 && m.state.CompareAndSwap(cur, cur|upgradedBit) {
			return
		}
		backoff(i)
	}
}

// UpgradeUnlock releases the upgrade bit without acquiring the writer bit.
func (m *UpgradableSharedMutex) UpgradeUnlock() {
	m.state.Add(^(upgradedBit - 1))
}

// UpgradeToWriter transitions an upgrade-holder into the writer, waiting for
// all readers to drain first. Pre: caller holds Upgraded.
func (m *UpgradableSharedMutex) UpgradeToWriter() {
	for i := 0; ; i++ {
		cur := m.state.Load()
		if cur == upgradedBit {
			if m.state.CompareAndSwap(upgradedBit, writerBit) {
				return
			}
		}
		backoff(i)
	}
}

// DowngradeToReader transitions a writer directly into a reader. Pre: caller
// holds Writer.
func (m *UpgradableSharedMutex) DowngradeToReader() {
	for {
		cur := m.state.Load()
		if m.state.CompareAndSwap(cur, (cur+readerUnit)&^(writerBit|upgradedBit)) {
			return
		}
	}
}

// backoff spins briefly then yields the OS thread. Go has no portable
// atomic.wait/notify_all, so this replaces the source's futex-style wait.
func backoff(iteration int) {
	if iteration < spinLimit {
		for i := 0; i < 1<<uint(min(iteration, 10)); i++ {
			// busy spin
		}
		return
	}
	runtime.Gosched()
}
