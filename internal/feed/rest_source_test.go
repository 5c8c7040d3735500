package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeMidpointClient struct {
	prices map[string]float64
	err    error
	asked  []string
}

func (f *fakeMidpointClient) GetMidpoints(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	f.asked = tokenIDs
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

func TestRESTSourceReturnsMidpoints(t *testing.T) {
	clob := &fakeMidpointClient{prices: map[string]float64{"a": 0.42, "b": 0.58}}
	src := NewRESTSource(clob)

	prices, err := src.GetPrices(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}
	if len(prices) != 2 {
		t.Errorf("Expected 2 quotes, got %d", len(prices))
	}
	if prices["a"] != 0.42 {
		t.Errorf("Expected 0.42 for a, got %f", prices["a"])
	}
	if len(clob.asked) != 3 {
		t.Errorf("Expected 3 assets requested, got %v", clob.asked)
	}
}

func TestRESTSourceWrapsError(t *testing.T) {
	clob := &fakeMidpointClient{err: errors.New("503 service unavailable")}
	src := NewRESTSource(clob)

	_, err := src.GetPrices(context.Background(), []string{"a"})
	if err == nil {
		t.Fatal("Expected error from failing client")
	}
	if !strings.Contains(err.Error(), "fetch midpoints") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}
