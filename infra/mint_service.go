package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cardforge/mint-worker/config"
)

// MintStatusSuccess is the only gateway status the processor treats as a
// definitive success; every other status is a failure for retry purposes.
const MintStatusSuccess = "success"

// MintService talks to the mint gateway, the external collaborator that
// builds, signs and submits the actual blockchain transaction. The worker
// never interprets the returned digest beyond storing it verbatim.
type MintService struct {
	MintServiceURL string `json:"mint_service_url"`
	PrivateKey     string `json:"private_key,omitempty"`

	httpClient *http.Client
}

type MintRequest struct {
	CardType  string `json:"card_type"`
	Level     int    `json:"level"`
	Title     string `json:"title"`
	Recipient string `json:"recipient"`
	Rarity    string `json:"rarity"`
	Rank      int    `json:"rank"`
}

// MintResponse represents the response from the mint gateway
type MintResponse struct {
	Status  string `json:"status"`
	Digest  string `json:"digest"`
	Message string `json:"message"`
}

func InitMintService(cfg *config.EnvConfig) *MintService {
	if cfg.MintService.URL == "" {
		panic("Mint service URL is not configured")
	}

	if cfg.PrivateKey == "" {
		panic("Private key is not configured")
	}

	return &MintService{
		MintServiceURL: cfg.MintService.URL,
		PrivateKey:     cfg.PrivateKey,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *MintService) MintCard(ctx context.Context, request MintRequest) (*MintResponse, error) {
	url := fmt.Sprintf("%s/api/v1/mint", s.MintServiceURL)

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Private-Key", s.PrivateKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit mint transaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mint service returned %d: %s", resp.StatusCode, raw)
	}

	var response MintResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
