// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "math"

// FNV-1a, 64-bit.
const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// keyHasher accumulates cache-key material. Keys must be built from the
// same fields in the same order to be comparable, so all key derivation
// lives next to the cache that consumes it.
type keyHasher struct {
	h uint64
}

func newKeyHasher() keyHasher {
	return keyHasher{h: fnvOffset64}
}

func (k *keyHasher) writeByte(b byte) {
	k.h = (k.h ^ uint64(b)) * fnvPrime64
}

func (k *keyHasher) writeU32(v uint32) {
	k.writeByte(byte(v))
	k.writeByte(byte(v >> 8))
	k.writeByte(byte(v >> 16))
	k.writeByte(byte(v >> 24))
}

func (k *keyHasher) writeU64(v uint64) {
	k.writeU32(uint32(v))
	k.writeU32(uint32(v >> 32))
}

func (k *keyHasher) writeF32(v float32) {
	k.writeU32(math.Float32bits(v))
}

func (k *keyHasher) writeBool(v bool) {
	if v {
		k.writeByte(1)
	} else {
		k.writeByte(0)
	}
}

func (k *keyHasher) writeString(s string) {
	for i := 0; i < len(s); i++ {
		k.writeByte(s[i])
	}
	// Terminator so adjacent strings cannot alias.
	k.writeByte(0)
}

func (k *keyHasher) sum() uint64 {
	return k.h
}
