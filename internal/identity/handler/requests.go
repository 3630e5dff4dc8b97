package handler

import (
	"encoding/hex"
	"strings"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
)

type depositRequest struct {
	Amount uint64 `json:"amount"`
}

type accountRequest struct {
	Account string `json:"account"`
}

type attributeRequest struct {
	Hash string `json:"hash"`
}

type updateAttributeRequest struct {
	New string `json:"new"`
}

type endorsementRequest struct {
	Endorsement string `json:"endorsement"`
}

// keyRequest carries a public key as 0x-prefixed hex.
type keyRequest struct {
	Key string `json:"key"`
}

func (r keyRequest) decode() ([]byte, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(r.Key), "0x")
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "key must be 0x-prefixed hex")
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "key must be hex")
	}
	if len(b) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "key must not be empty")
	}
	return b, nil
}

func parseAccount(s string) (domain.AccountID, error) {
	a, err := domain.ParseAccountID(s)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeValidation, "invalid account")
	}
	return a, nil
}

func parseHash(s, field string) (domain.Hash, error) {
	h, err := domain.ParseHash(s)
	if err != nil {
		return domain.Hash{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+field)
	}
	return h, nil
}
