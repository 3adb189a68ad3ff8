package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	domainlistings "fleamarket/internal/domain/listings"
)

var (
	ErrQuestionRequired = errors.New("assistant: question is required")
	ErrEmptyReply       = errors.New("assistant: model returned no reply")
)

// Service proxies the product-assistant chatbot to an external
// generative-language API. Failures surface to the caller; there is no
// automatic retry, the UI offers one.
type Service struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Model    string
	Listings domainlistings.Repository
	Logger   *slog.Logger
}

// Answer is the assistant's reply for one question.
type Answer struct {
	Reply string
}

type generateRequest struct {
	Model    string            `json:"model"`
	Messages []generateMessage `json:"messages"`
}

type generateMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateResponse struct {
	Choices []struct {
		Message generateMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask answers a buyer question, optionally grounded in a listing. The listing
// description is injected into the system prompt so the model answers about
// the actual item.
func (s *Service) Ask(ctx context.Context, listingID domainlistings.ListingID, question string) (*Answer, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("assistant: http client not configured")
	}
	if s.Endpoint == "" {
		return nil, errors.New("assistant: endpoint not configured")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}

	prompt := "You are a helpful shopping assistant for a second-hand marketplace. Answer briefly and honestly."
	if listingID != "" && s.Listings != nil {
		listing, err := s.Listings.ByID(ctx, listingID)
		if err == nil && listing != nil {
			prompt = fmt.Sprintf(
				"%s The buyer is asking about this item: %q (category %s, condition %s, price %.2f). Description: %s",
				prompt, listing.Title, listing.Category, listing.Condition,
				float64(listing.PriceCents)/100, listing.Description,
			)
		} else if err != nil && s.Logger != nil {
			s.Logger.Warn("assistant listing lookup failed", "error", err, "listing_id", listingID)
		}
	}

	model := s.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	payload := generateRequest{
		Model: model,
		Messages: []generateMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: question},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if s.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(request)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error("assistant request failed", "error", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("assistant: model API returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("assistant: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, ErrEmptyReply
	}
	reply := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if reply == "" {
		return nil, ErrEmptyReply
	}
	return &Answer{Reply: reply}, nil
}
