// internal/lobby/code.go
package lobby

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// codeAlphabet excludes 0, O, 1 and I so codes survive being read over voice.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const mintMaxAttempts = 10

// CodeMint generates invite codes. Random draws are retried a bounded number
// of times against the caller-supplied existence check; after that it falls
// back to encoding a session-monotonic counter, so two fallback codes from the
// same mint can never collide with each other. The registry still owns the
// final uniqueness check under its own lock.
type CodeMint struct {
	mu     sync.Mutex
	length int
	seq    uint64
}

// NewCodeMint returns a mint producing codes of the given length.
func NewCodeMint(length int) *CodeMint {
	if length <= 0 {
		length = 4
	}
	return &CodeMint{
		length: length,
		seq:    uint64(time.Now().UnixNano()),
	}
}

// Mint returns a code that exists(code) reported as free, or a fallback code
// after mintMaxAttempts collisions.
func (m *CodeMint) Mint(exists func(code string) bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < mintMaxAttempts; i++ {
		code := m.randomLocked()
		if exists == nil || !exists(code) {
			return code
		}
	}
	m.seq++
	return m.encodeLocked(m.seq)
}

// ValidCode reports whether s is a well-formed code of the given length over
// the mint alphabet. Input is expected to be upper-cased already.
func ValidCode(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}

func (m *CodeMint) randomLocked() string {
	b := make([]byte, m.length)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// encodeLocked maps n onto the alphabet and keeps the low `length` digits.
func (m *CodeMint) encodeLocked(n uint64) string {
	base := uint64(len(codeAlphabet))
	b := make([]byte, m.length)
	for i := m.length - 1; i >= 0; i-- {
		b[i] = codeAlphabet[n%base]
		n /= base
	}
	return string(b)
}
