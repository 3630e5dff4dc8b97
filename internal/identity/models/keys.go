package models

import (
	"bytes"

	"smartid/pkg/domain"
)

// KeyProfile holds the identity's published public keys. Both are opaque
// byte strings and independently settable.
type KeyProfile struct {
	SigningPublicKey    []byte `json:"signing_public_key,omitempty"`
	EncryptionPublicKey []byte `json:"encryption_public_key,omitempty"`
}

func (i *Identity) SetSigningPublicKey(caller domain.AccountID, key []byte) (Result, error) {
	if err := i.Authorize(Access{Operation: OpSetSigningKey, Caller: caller}); err != nil {
		return Result{}, err
	}
	i.Keys.SigningPublicKey = bytes.Clone(key)

	res := newResult(OpSetSigningKey)
	res.emit(OpSetSigningKey, StatusUpdated, nil)
	return res, nil
}

func (i *Identity) SetEncryptionPublicKey(caller domain.AccountID, key []byte) (Result, error) {
	if err := i.Authorize(Access{Operation: OpSetEncryptionKey, Caller: caller}); err != nil {
		return Result{}, err
	}
	i.Keys.EncryptionPublicKey = bytes.Clone(key)

	res := newResult(OpSetEncryptionKey)
	res.emit(OpSetEncryptionKey, StatusUpdated, nil)
	return res, nil
}

// GetSigningPublicKey is readable by anyone.
func (i *Identity) GetSigningPublicKey() ([]byte, error) {
	if err := i.Authorize(Access{Operation: OpGetSigningKey}); err != nil {
		return nil, err
	}
	return bytes.Clone(i.Keys.SigningPublicKey), nil
}

// GetEncryptionPublicKey is readable by anyone.
func (i *Identity) GetEncryptionPublicKey() ([]byte, error) {
	if err := i.Authorize(Access{Operation: OpGetEncryptionKey}); err != nil {
		return nil, err
	}
	return bytes.Clone(i.Keys.EncryptionPublicKey), nil
}
