package handler

import (
	"encoding/hex"

	"smartid/internal/identity/models"
	"smartid/pkg/domain"
)

type createResponse struct {
	ID domain.IdentityID `json:"id"`
	models.Result
}

type disposeResponse struct {
	models.Result
	Refund uint64 `json:"refund"`
}

type accountResponse struct {
	Account domain.AccountID `json:"account"`
}

type presenceResponse struct {
	Present bool `json:"present"`
}

type validityResponse struct {
	Valid bool `json:"valid"`
}

type keyResponse struct {
	Key string `json:"key"`
}

type blocklockResponse struct {
	BlocksRemaining uint64 `json:"blocks_remaining"`
}

func toKeyResponse(b []byte) keyResponse {
	if len(b) == 0 {
		return keyResponse{}
	}
	return keyResponse{Key: "0x" + hex.EncodeToString(b)}
}
