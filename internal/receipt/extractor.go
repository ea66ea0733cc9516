package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

var ErrUnsupportedImage = errors.New("unsupported image, expected png or jpeg")

// LineItem is one purchased product read off the receipt.
type LineItem struct {
	Title    string       `json:"title"`
	Price    money.Amount `json:"price"`
	Category string       `json:"category"`
}

// Extraction is the provider's best guess. Nothing in it is trusted for validation; the
// caller may override every field before committing a transaction.
type Extraction struct {
	MerchantName      string       `json:"merchant_name"`
	Amount            money.Amount `json:"amount"`
	Date              *time.Time   `json:"date,omitempty"`
	SuggestedCategory string       `json:"suggested_category"`
	Confidence        float64      `json:"confidence"`
	LineItems         []LineItem   `json:"line_items"`
}

// Extractor turns receipt image bytes into structured data.
type Extractor interface {
	Extract(ctx context.Context, img []byte, categories []string) (*Extraction, error)
}

// ValidateImage checks that img decodes as png or jpeg and returns the format.
func ValidateImage(img []byte) (string, error) {
	if len(img) == 0 {
		return "", ErrUnsupportedImage
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return format, nil
}

// HTTPExtractor posts the image to an extraction service over HTTP.
type HTTPExtractor struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

func NewHTTPExtractor(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPExtractor {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &HTTPExtractor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		log:        log,
	}
}

type extractRequest struct {
	ImageBase64 string   `json:"image_base64"`
	Categories  []string `json:"categories"`
}

type extractResponse struct {
	MerchantName      string  `json:"merchant_name"`
	Amount            float64 `json:"amount"`
	Date              string  `json:"date"`
	SuggestedCategory string  `json:"suggested_category"`
	Confidence        float64 `json:"confidence"`
	LineItems         []struct {
		Title    string  `json:"title"`
		Price    float64 `json:"price"`
		Category string  `json:"category"`
	} `json:"line_items"`
}

func (x *HTTPExtractor) Extract(ctx context.Context, img []byte, categories []string) (*Extraction, error) {
	if x.baseURL == "" {
		return nil, errors.New("receipt extractor is not configured")
	}
	payload, err := json.Marshal(extractRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(img),
		Categories:  categories,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	// tie the provider timeout to the caller's context
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		x.log.Error().Err(err).Msg("receipt extractor connection error")
		return nil, fmt.Errorf("extractor connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("extractor error: %d - %s", resp.StatusCode, string(body))
	}

	var raw extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}
	return raw.toExtraction(), nil
}

func (r extractResponse) toExtraction() *Extraction {
	out := &Extraction{
		MerchantName:      strings.TrimSpace(r.MerchantName),
		Amount:            money.FromFloat(r.Amount),
		SuggestedCategory: strings.TrimSpace(r.SuggestedCategory),
		Confidence:        r.Confidence,
	}
	if out.Amount < 0 {
		out.Amount = 0
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		out.Confidence = 0
	}
	if d, err := util.ParseDate(r.Date); err == nil {
		out.Date = &d
	}
	for _, it := range r.LineItems {
		out.LineItems = append(out.LineItems, LineItem{
			Title:    strings.TrimSpace(it.Title),
			Price:    money.FromFloat(it.Price),
			Category: it.Category,
		})
	}
	return out
}
