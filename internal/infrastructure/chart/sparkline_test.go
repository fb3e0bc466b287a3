package chart

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/coinwallet/internal/domain"
)

func market(points ...int64) *domain.MarketData {
	md := &domain.MarketData{ID: "bitcoin", Symbol: "BTC"}
	for _, p := range points {
		md.Sparkline = append(md.Sparkline, decimal.NewFromInt(p))
	}
	return md
}

func TestRenderSparklineSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSparkline(&buf, market(100, 120, 90, 130), FormatSVG, Options{}); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<svg") {
		t.Fatalf("expected svg document, got %q", out[:min(len(out), 80)])
	}
	if !strings.Contains(out, `width="240"`) {
		t.Fatalf("expected default width, got %q", out[:min(len(out), 200)])
	}
}

func TestRenderSparklinePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSparkline(&buf, market(130, 120), FormatPNG, Options{Width: 100, Height: 40}); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("expected png signature")
	}
}

func TestRenderSparklineFlatSeries(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSparkline(&buf, market(1, 1, 1), FormatSVG, Options{}); err != nil {
		t.Fatalf("flat series should render, got %v", err)
	}
}

func TestRenderSparklineNeedsTwoPoints(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSparkline(&buf, market(1), FormatSVG, Options{}); !errors.Is(err, ErrNotEnoughPoints) {
		t.Fatalf("expected ErrNotEnoughPoints, got %v", err)
	}
}

func TestFormatContentType(t *testing.T) {
	if FormatPNG.ContentType() != "image/png" || FormatSVG.ContentType() != "image/svg+xml" {
		t.Fatal("unexpected content types")
	}
}
