////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package mls

import (
	"bytes"
	"io"
	"time"

	"github.com/cloudflare/circl/hpke"
	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/encoding/protowire"
)

// hashRefLabel domain separates key package references.
const hashRefLabel = "MLS 1.0 KeyPackage Reference"

// Wire field numbers of a serialized key package.
const (
	fieldVersion      protowire.Number = 1
	fieldCipherSuite  protowire.Number = 2
	fieldInitKey      protowire.Number = 3
	fieldSignatureKey protowire.Number = 4
	fieldNotBefore    protowire.Number = 5
	fieldNotAfter     protowire.Number = 6
	fieldSignature    protowire.Number = 7
)

// KeyPackage is a one-time package another member uses to add this device to
// an encrypted group.
type KeyPackage struct {
	Version     uint16
	CipherSuite uint16

	// InitKey is the HPKE X25519 public key.
	InitKey []byte

	// SignatureKey is the device's Ed25519 public key.
	SignatureKey []byte

	NotBefore time.Time
	NotAfter  time.Time

	// Signature covers every other field.
	Signature []byte
}

// Bundle is a key package together with the private half of its init key.
type Bundle struct {
	Serialized  []byte    `json:"serialized"`
	HashRef     []byte    `json:"hashRef"`
	InitPrivate []byte    `json:"initPrivate"`
	CreatedAt   time.Time `json:"createdAt"`
}

// newBundle generates a fresh init key pair from rng and signs a key package
// for it with the device key.
func newBundle(rng io.Reader, signer ed25519.PrivateKey, suite uint16,
	lifetime time.Duration, now time.Time) (Bundle, error) {
	scheme := hpke.KEM_X25519_HKDF_SHA256.Scheme()

	seed := make([]byte, scheme.SeedSize())
	if _, err := io.ReadFull(rng, seed); err != nil {
		return Bundle{}, errors.Wrap(err, "failed to read init key seed")
	}
	pub, priv := scheme.DeriveKeyPair(seed)

	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return Bundle{}, errors.Wrap(err, "failed to marshal init key")
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return Bundle{}, errors.Wrap(err, "failed to marshal init private key")
	}

	kp := KeyPackage{
		Version:      keyPackageVersion,
		CipherSuite:  suite,
		InitKey:      pubBytes,
		SignatureKey: signer.Public().(ed25519.PublicKey),
		NotBefore:    now.Truncate(time.Second),
		NotAfter:     now.Add(lifetime).Truncate(time.Second),
	}
	kp.Signature = ed25519.Sign(signer, kp.marshalTBS())

	serialized := kp.Marshal()
	return Bundle{
		Serialized:  serialized,
		HashRef:     HashRef(serialized),
		InitPrivate: privBytes,
		CreatedAt:   now,
	}, nil
}

// HashRef returns the reference the service and peers use to name a
// serialized key package.
func HashRef(serialized []byte) []byte {
	data := make([]byte, 0, len(hashRefLabel)+len(serialized))
	data = append(data, hashRefLabel...)
	data = append(data, serialized...)
	h := blake2b.Sum256(data)
	return h[:]
}

// marshalTBS encodes the signed portion of the package.
func (kp KeyPackage) marshalTBS() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kp.Version))
	b = protowire.AppendTag(b, fieldCipherSuite, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kp.CipherSuite))
	b = protowire.AppendTag(b, fieldInitKey, protowire.BytesType)
	b = protowire.AppendBytes(b, kp.InitKey)
	b = protowire.AppendTag(b, fieldSignatureKey, protowire.BytesType)
	b = protowire.AppendBytes(b, kp.SignatureKey)
	b = protowire.AppendTag(b, fieldNotBefore, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kp.NotBefore.Unix()))
	b = protowire.AppendTag(b, fieldNotAfter, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kp.NotAfter.Unix()))
	return b
}

// Marshal serializes the key package, signature included.
func (kp KeyPackage) Marshal() []byte {
	b := kp.marshalTBS()
	b = protowire.AppendTag(b, fieldSignature, protowire.BytesType)
	return protowire.AppendBytes(b, kp.Signature)
}

// UnmarshalKeyPackage decodes a serialized key package. Unknown fields are
// skipped. The signature is not checked; call Verify.
func UnmarshalKeyPackage(data []byte) (KeyPackage, error) {
	var kp KeyPackage
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return KeyPackage{}, parseError(0, n)
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldVersion ||
			num == fieldCipherSuite || num == fieldNotBefore ||
			num == fieldNotAfter):
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return KeyPackage{}, parseError(num, m)
			}
			data = data[m:]
			switch num {
			case fieldVersion:
				kp.Version = uint16(v)
			case fieldCipherSuite:
				kp.CipherSuite = uint16(v)
			case fieldNotBefore:
				kp.NotBefore = time.Unix(int64(v), 0)
			case fieldNotAfter:
				kp.NotAfter = time.Unix(int64(v), 0)
			}

		case typ == protowire.BytesType && (num == fieldInitKey ||
			num == fieldSignatureKey || num == fieldSignature):
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return KeyPackage{}, parseError(num, m)
			}
			data = data[m:]
			v = append([]byte(nil), v...)
			switch num {
			case fieldInitKey:
				kp.InitKey = v
			case fieldSignatureKey:
				kp.SignatureKey = v
			case fieldSignature:
				kp.Signature = v
			}

		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return KeyPackage{}, parseError(num, m)
			}
			data = data[m:]
		}
	}
	return kp, nil
}

func parseError(num protowire.Number, n int) error {
	return errors.Wrapf(ErrInvalidKeyPackage, "field %d: %v", num,
		protowire.ParseError(n))
}

// Verify checks the package's structure and its signature against its own
// signature key.
func (kp KeyPackage) Verify() error {
	if kp.Version != keyPackageVersion {
		return errors.Wrapf(ErrInvalidKeyPackage, "unsupported version %d",
			kp.Version)
	}
	if len(kp.SignatureKey) != ed25519.PublicKeySize {
		return errors.Wrapf(ErrInvalidKeyPackage,
			"signature key is %d bytes", len(kp.SignatureKey))
	}
	scheme := hpke.KEM_X25519_HKDF_SHA256.Scheme()
	if _, err := scheme.UnmarshalBinaryPublicKey(kp.InitKey); err != nil {
		return errors.Wrapf(ErrInvalidKeyPackage, "init key: %+v", err)
	}
	if !kp.NotAfter.After(kp.NotBefore) {
		return errors.Wrap(ErrInvalidKeyPackage, "empty validity window")
	}
	if !ed25519.Verify(kp.SignatureKey, kp.marshalTBS(), kp.Signature) {
		return errors.Wrap(ErrInvalidKeyPackage, "signature does not verify")
	}
	return nil
}

// matches reports whether the bundle carries the given reference.
func (b Bundle) matches(hashRef []byte) bool {
	return bytes.Equal(b.HashRef, hashRef)
}
