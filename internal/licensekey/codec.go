// Package licensekey mints and verifies Kybernus license keys.
//
// A key looks like KYB-PRO-1A2B-3C4D-5E6F-89ABCDEF: the product namespace, a
// tier prefix, three random hex groups and an 8 character HMAC-SHA256
// signature over everything before it. Keys minted before signing existed
// carry no signature segment and are accepted on format alone.
package licensekey

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingSecret is returned by NewCodec when no signing secret is configured.
var ErrMissingSecret = errors.New("licensekey: signing secret is required")

// ErrMalformed is returned by Parse for identifiers with the wrong shape.
var ErrMalformed = errors.New("licensekey: malformed identifier")

// Prefix is the tier segment of a key
type Prefix string

const (
	PrefixTrial Prefix = "TRIAL"
	PrefixFree  Prefix = "FREE"
	PrefixPro   Prefix = "PRO"
)

// Kind tags an identifier as legacy (unsigned) or signed
type Kind int

const (
	KindInvalid Kind = iota
	KindLegacy
	KindSigned
)

func (k Kind) String() string {
	switch k {
	case KindLegacy:
		return "legacy"
	case KindSigned:
		return "signed"
	default:
		return "invalid"
	}
}

const (
	signatureLen  = 8
	groupBytes    = 2
	groupCount    = 3
	bodySegments  = 1 + groupCount // tier prefix + random groups
	maxIdentifier = 128
)

// Identifier is a parsed license key
type Identifier struct {
	Raw       string
	Kind      Kind
	Base      string // everything covered by the signature
	Segments  []string
	Signature string // empty for legacy identifiers
}

// Verification is the result of Codec.Verify
type Verification struct {
	Valid      bool
	Identifier Identifier
}

// Codec generates and verifies signed license keys
type Codec struct {
	secret  []byte
	product string
	rand    io.Reader
}

// NewCodec returns a codec signing with secret. An empty secret is rejected so
// that no code path can mint unsigned keys.
func NewCodec(secret, product string) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if product == "" {
		product = "KYB"
	}
	return &Codec{
		secret:  []byte(secret),
		product: strings.ToUpper(product),
		rand:    rand.Reader,
	}, nil
}

// Product returns the namespace segment keys are minted under
func (c *Codec) Product() string {
	return c.product
}

// Generate mints a new signed key for the given tier prefix
func (c *Codec) Generate(prefix Prefix) (string, error) {
	buf := make([]byte, groupBytes*groupCount)
	if _, err := io.ReadFull(c.rand, buf); err != nil {
		return "", fmt.Errorf("licensekey: read random: %w", err)
	}

	segments := []string{c.product, string(prefix)}
	for i := 0; i < groupCount; i++ {
		group := buf[i*groupBytes : (i+1)*groupBytes]
		segments = append(segments, strings.ToUpper(hex.EncodeToString(group)))
	}

	base := strings.Join(segments, "-")
	return base + "-" + c.sign(base), nil
}

// Verify checks an identifier. The product namespace is not counted: four
// remaining segments is a legacy key, five is a signed key whose last segment
// must match the HMAC of the rest.
func (c *Codec) Verify(raw string) Verification {
	id, err := c.Parse(raw)
	if err != nil {
		return Verification{Identifier: id}
	}

	switch id.Kind {
	case KindLegacy:
		return Verification{Valid: true, Identifier: id}
	case KindSigned:
		expected := c.sign(id.Base)
		ok := hmac.Equal([]byte(id.Signature), []byte(expected))
		return Verification{Valid: ok, Identifier: id}
	default:
		return Verification{Identifier: id}
	}
}

// Parse splits an identifier into its tagged form without checking the
// signature.
func (c *Codec) Parse(raw string) (Identifier, error) {
	id := Identifier{Raw: raw}
	if raw == "" || len(raw) > maxIdentifier {
		return id, ErrMalformed
	}

	segments := strings.Split(raw, "-")
	body := segments
	namespaced := body[0] == c.product
	if namespaced {
		body = body[1:]
	}
	for _, s := range body {
		if s == "" {
			return id, ErrMalformed
		}
	}

	switch len(body) {
	case bodySegments:
		id.Kind = KindLegacy
		id.Base = raw
	case bodySegments + 1:
		if !namespaced {
			return id, ErrMalformed
		}
		id.Kind = KindSigned
		id.Signature = body[bodySegments]
		id.Base = c.product + "-" + strings.Join(body[:bodySegments], "-")
	default:
		return id, ErrMalformed
	}

	id.Segments = segments
	return id, nil
}

func (c *Codec) sign(base string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(base))
	sum := hex.EncodeToString(mac.Sum(nil))
	return strings.ToUpper(sum[:signatureLen])
}
