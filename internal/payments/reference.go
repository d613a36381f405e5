package payments

import (
	"fmt"
	"time"

	"github.com/speps/go-hashids/v2"
)

// ReferenceGenerator produces short, non-sequential merchant references for
// requests that arrive without an order id.
type ReferenceGenerator struct {
	h      *hashids.HashID
	prefix string
}

func NewReferenceGenerator(salt, prefix string) (*ReferenceGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 10
	hd.Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("init hashids: %w", err)
	}
	return &ReferenceGenerator{h: h, prefix: prefix}, nil
}

// Next encodes the current time in nanoseconds.
func (g *ReferenceGenerator) Next() (string, error) {
	return g.Encode(time.Now().UnixNano())
}

func (g *ReferenceGenerator) Encode(n int64) (string, error) {
	code, err := g.h.EncodeInt64([]int64{n})
	if err != nil {
		return "", fmt.Errorf("encode reference: %w", err)
	}
	return g.prefix + code, nil
}

// Decode returns the number behind a reference produced by Encode.
func (g *ReferenceGenerator) Decode(ref string) (int64, error) {
	if len(ref) < len(g.prefix) || ref[:len(g.prefix)] != g.prefix {
		return 0, fmt.Errorf("reference %q has no %q prefix", ref, g.prefix)
	}
	nums, err := g.h.DecodeInt64WithError(ref[len(g.prefix):])
	if err != nil {
		return 0, fmt.Errorf("decode reference: %w", err)
	}
	if len(nums) != 1 {
		return 0, fmt.Errorf("decode reference: unexpected length %d", len(nums))
	}
	return nums[0], nil
}
