package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountFormatting(t *testing.T) {
	assert.Equal(t, "10.00", formatAmount(10))
	assert.Equal(t, "19.99", formatAmount(19.99))
	assert.Equal(t, int64(1999), toMinor(19.99))
	assert.Equal(t, int64(1005), toMinor(10.05))
	assert.Equal(t, "10", plainAmount(10))
	assert.Equal(t, "10.5", plainAmount(10.5))
	assert.Equal(t, 12.5, parseAmount(" 12.50 "))
	assert.Zero(t, parseAmount("abc"))
}

func TestEqualSign(t *testing.T) {
	assert.True(t, equalSign("abc", "abc"))
	assert.False(t, equalSign("abc", "abd"))
	assert.False(t, equalSign("", ""))
}

func TestDigests(t *testing.T) {
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", md5Hex("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha256Hex("abc"))
	assert.Equal(t, "qZk+NkcGgWq6PiVxeFDCbJzQ2J0=", sha1Base64("abc"))
}
