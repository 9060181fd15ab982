package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/receipt.jpg":
			w.Header().Set("Content-Type", "image/jpeg; charset=binary")
			w.Write([]byte("jpeg-bytes"))
		case "/noheader.png":
			w.Header()["Content-Type"] = nil
			w.Write([]byte("png-bytes"))
		case "/document.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF"))
		case "/empty.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/missing.jpg":
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDownloader(5 * time.Second)
	ctx := context.Background()

	content, mime, err := d.Download(ctx, srv.URL+"/receipt.jpg")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(content) != "jpeg-bytes" || mime != "image/jpeg" {
		t.Errorf("Download() = (%q, %q)", content, mime)
	}

	_, mime, err = d.Download(ctx, srv.URL+"/noheader.png")
	if err != nil {
		t.Fatalf("Download() without header error = %v", err)
	}
	if mime != "image/png" {
		t.Errorf("guessed mime = %q, want image/png", mime)
	}

	if _, _, err := d.Download(ctx, srv.URL+"/document.pdf"); err == nil {
		t.Error("Download() accepted a non-image content type")
	}
	if _, _, err := d.Download(ctx, srv.URL+"/empty.jpg"); err == nil {
		t.Error("Download() accepted an empty body")
	}
	if _, _, err := d.Download(ctx, srv.URL+"/missing.jpg"); err == nil {
		t.Error("Download() accepted a 404")
	}
}

func TestExtract_Receipt(t *testing.T) {
	verdict := `{"document_type":"receipt","receipt":{"merchant":"La Parrilla","date":"2026-08-21","total_amount":45000,"tip":4500,"items":[{"description":"Bife de chorizo","amount":18000,"count":2},{"description":"Vino de la casa","amount":9000,"count":1}]}}`

	var gotReq visionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, verdict)
	}))
	defer srv.Close()

	e := NewOpenAIExtractor(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	extraction, err := e.Extract(context.Background(), []byte("fake-image"), "image/jpeg")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if extraction.DocumentType != DocumentReceipt {
		t.Fatalf("DocumentType = %s, want receipt", extraction.DocumentType)
	}
	r := extraction.Receipt
	if r.Merchant != "La Parrilla" || r.TotalAmount != 45000 || len(r.Items) != 2 {
		t.Errorf("receipt = %+v", r)
	}
	if got := r.TipRatio(); got != 0.1 {
		t.Errorf("TipRatio() = %v, want 0.1", got)
	}

	// The image must travel inline as a data URL.
	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Content) != 2 {
		t.Fatalf("request content = %+v", gotReq.Messages)
	}
	imgPart := gotReq.Messages[0].Content[1]
	if imgPart.ImageURL == nil || !strings.HasPrefix(imgPart.ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("image part = %+v, want base64 data URL", imgPart)
	}
}

func TestExtract_Transfer(t *testing.T) {
	verdict := `{"document_type":"transfer","transfer":{"recipient":"Beto Gomez","amount":15000,"description":"mitad cena"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, verdict)
	}))
	defer srv.Close()

	e := NewOpenAIExtractor(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL})
	extraction, err := e.Extract(context.Background(), []byte("fake-image"), "image/png")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if extraction.DocumentType != DocumentTransfer || extraction.Transfer.Recipient != "Beto Gomez" {
		t.Errorf("extraction = %+v", extraction)
	}
}

func TestParseExtraction_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"prose", "no pude leer la imagen"},
		{"unknown type", `{"document_type":"selfie"}`},
		{"receipt without data", `{"document_type":"receipt"}`},
		{"transfer without data", `{"document_type":"transfer"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseExtraction(tc.content); err == nil {
				t.Errorf("parseExtraction(%q) error = nil, want failure", tc.content)
			}
		})
	}
}

func TestParseExtraction_Fenced(t *testing.T) {
	content := "```json\n{\"document_type\":\"transfer\",\"transfer\":{\"recipient\":\"Ana\",\"amount\":1}}\n```"
	extraction, err := parseExtraction(content)
	if err != nil {
		t.Fatalf("parseExtraction() error = %v", err)
	}
	if extraction.Transfer.Recipient != "Ana" {
		t.Errorf("extraction = %+v", extraction)
	}
}

func TestTipRatio_ZeroTotal(t *testing.T) {
	r := &Receipt{Tip: 100}
	if got := r.TipRatio(); got != 0 {
		t.Errorf("TipRatio() = %v, want 0", got)
	}
}
