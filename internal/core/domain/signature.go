// internal/core/domain/signature.go
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// SignatureLength is the number of hex characters kept from the digest.
	SignatureLength = 8

	UnknownMaterialName = "unknown material"
	UnknownMaterialType = "UNKNOWN"
)

// CanonicalUsage is the normalized form every signature input is reduced to before hashing.
// Field order here is the serialization order.
type CanonicalUsage struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Quality        *string `json:"quality"`
	DiameterOrSpec *string `json:"diameter_or_spec"`
	BeadsUsed      int     `json:"beads_used"`
	PiecesUsed     int     `json:"pieces_used"`
}

// SignatureInput is implemented by the supported input shapes.
type SignatureInput interface {
	canonical() CanonicalUsage
}

// MaterialSource is a usage whose material attributes are already resolved,
// as stored alongside a SKU's recipe.
type MaterialSource struct {
	MaterialName   string
	MaterialType   MaterialType
	Quality        *QualityGrade
	DiameterOrSpec *decimal.Decimal
	BeadsUsed      int
	PiecesUsed     int
}

func (m MaterialSource) canonical() CanonicalUsage {
	return newCanonicalUsage(m.MaterialName, string(m.MaterialType), m.Quality, m.DiameterOrSpec, m.BeadsUsed, m.PiecesUsed)
}

// PurchaseSource is a usage expressed with the purchase record's fields.
type PurchaseSource struct {
	ProductName   string
	ProductType   MaterialType
	Quality       *QualityGrade
	BeadDiameter  *decimal.Decimal
	Specification *decimal.Decimal
	BeadsUsed     int
	PiecesUsed    int
}

func (p PurchaseSource) canonical() CanonicalUsage {
	size := p.Specification
	if p.ProductType.CountsBeads() {
		size = p.BeadDiameter
	}
	return newCanonicalUsage(p.ProductName, string(p.ProductType), p.Quality, size, p.BeadsUsed, p.PiecesUsed)
}

// PurchaseSourceFor describes a usage of batch b
func PurchaseSourceFor(b *RawMaterialBatch, beads, pieces int) PurchaseSource {
	return PurchaseSource{
		ProductName:   b.Name,
		ProductType:   b.Type,
		Quality:       b.Quality,
		BeadDiameter:  b.BeadDiameter,
		Specification: b.Specification,
		BeadsUsed:     beads,
		PiecesUsed:    pieces,
	}
}

// MaterialSourceFor describes a recipe line of batch b
func MaterialSourceFor(b *RawMaterialBatch, beads, pieces int) MaterialSource {
	return MaterialSource{
		MaterialName:   b.Name,
		MaterialType:   b.Type,
		Quality:        b.Quality,
		DiameterOrSpec: b.DiameterOrSpec(),
		BeadsUsed:      beads,
		PiecesUsed:     pieces,
	}
}

// UsageKey is the canonical encoding of one usage. Two batches with equal keys are
// interchangeable within a recipe.
func UsageKey(in SignatureInput) (string, error) {
	c := in.canonical()
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode usage %s: %w", c.Name, err)
	}
	return string(b), nil
}

func newCanonicalUsage(name, typ string, quality *QualityGrade, size *decimal.Decimal, beads, pieces int) CanonicalUsage {
	c := CanonicalUsage{
		Name:       strings.TrimSpace(name),
		Type:       strings.TrimSpace(typ),
		BeadsUsed:  beads,
		PiecesUsed: pieces,
	}
	if c.Name == "" {
		c.Name = UnknownMaterialName
	}
	if c.Type == "" {
		c.Type = UnknownMaterialType
	}
	if quality != nil && *quality != "" {
		q := string(*quality)
		c.Quality = &q
	}
	if size != nil {
		s := size.String()
		c.DiameterOrSpec = &s
	}
	return c
}

// Signature is the content identity of a recipe
type Signature struct {
	Usages    []CanonicalUsage `json:"usages"`
	Canonical string           `json:"canonical"`
	Hash      string           `json:"hash"`
}

// ComputeSignature normalizes, sorts by material name, serializes and hashes the usages.
// Zero-quantity usages are hashed like any other.
func ComputeSignature(inputs []SignatureInput) (Signature, error) {
	if len(inputs) == 0 {
		return Signature{}, NewValidationError("materials", "at least one material is required")
	}

	usages := make([]CanonicalUsage, 0, len(inputs))
	keys := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if in == nil {
			return Signature{}, NewValidationError("materials", "contains an empty entry")
		}
		c := in.canonical()
		b, err := json.Marshal(c)
		if err != nil {
			return Signature{}, fmt.Errorf("failed to encode usage %s: %w", c.Name, err)
		}
		usages = append(usages, c)
		keys = append(keys, string(b))
	}

	idx := make([]int, len(usages))
	for i := range idx {
		idx[i] = i
	}
	// Equal names fall back to the encoded tuple so the order never depends on the input.
	sort.SliceStable(idx, func(a, b int) bool {
		ua, ub := usages[idx[a]], usages[idx[b]]
		if ua.Name != ub.Name {
			return ua.Name < ub.Name
		}
		return keys[idx[a]] < keys[idx[b]]
	})

	sorted := make([]CanonicalUsage, len(usages))
	parts := make([]string, len(usages))
	for i, j := range idx {
		sorted[i] = usages[j]
		parts[i] = keys[j]
	}
	canonical := "[" + strings.Join(parts, ",") + "]"

	sum := sha256.Sum256([]byte(canonical))
	return Signature{
		Usages:    sorted,
		Canonical: canonical,
		Hash:      hex.EncodeToString(sum[:])[:SignatureLength],
	}, nil
}
