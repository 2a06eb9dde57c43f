package preretrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/autoversio/ragcore/config"
	"github.com/autoversio/ragcore/llm"
)

type stubLLM struct {
	reply string
	err   error
	temp  *float64
}

func (s *stubLLM) Complete(_ context.Context, _ []llm.Message, opts llm.Options) (string, error) {
	s.temp = opts.Temperature
	return s.reply, s.err
}

func (s *stubLLM) Stream(context.Context, []llm.Message, llm.Options, func(string) error) error {
	return errors.New("not used")
}

func TestExpander_AddsVariants(t *testing.T) {
	p := &stubLLM{reply: "how to configure retries\nretry configuration guide\n"}
	e := NewExpander(p, config.ExpansionConfig{MaxVariants: 2}, nil)
	res := e.Expand(context.Background(), "configure retries")
	if !res.Applied {
		t.Fatalf("expected applied, got reason %q", res.Reason)
	}
	if len(res.Value) != 3 || res.Value[0] != "configure retries" {
		t.Fatalf("original query must come first: %+v", res.Value)
	}
	if p.temp == nil || *p.temp != 0 {
		t.Fatalf("expansion must run at temperature 0")
	}
}

func TestExpander_StripsListMarkers(t *testing.T) {
	p := &stubLLM{reply: "1. first variant\n- second variant"}
	e := NewExpander(p, config.ExpansionConfig{MaxVariants: 2}, nil)
	res := e.Expand(context.Background(), "q")
	if len(res.Value) != 3 || res.Value[1] != "first variant" || res.Value[2] != "second variant" {
		t.Fatalf("markers not stripped: %+v", res.Value)
	}
}

func TestExpander_KeepsLeadingDigits(t *testing.T) {
	p := &stubLLM{reply: "2024 revenue forecast\n1) quarterly revenue outlook"}
	e := NewExpander(p, config.ExpansionConfig{MaxVariants: 2}, nil)
	res := e.Expand(context.Background(), "q")
	if len(res.Value) != 3 || res.Value[1] != "2024 revenue forecast" {
		t.Fatalf("leading digits stripped from a real variant: %+v", res.Value)
	}
	if res.Value[2] != "quarterly revenue outlook" {
		t.Fatalf("enumeration marker not stripped: %+v", res.Value)
	}
}

func TestExpander_ModelFailureIsSoft(t *testing.T) {
	p := &stubLLM{err: errors.New("model unavailable")}
	e := NewExpander(p, config.ExpansionConfig{}, nil)
	res := e.Expand(context.Background(), "original")
	if res.Applied {
		t.Fatalf("failed expansion must be skipped")
	}
	if len(res.Value) != 1 || res.Value[0] != "original" {
		t.Fatalf("original query must survive: %+v", res.Value)
	}
	if res.Reason == "" {
		t.Fatalf("skip reason missing")
	}
}

func TestExpander_EmptyReplySkipped(t *testing.T) {
	p := &stubLLM{reply: "\n\n  \n"}
	e := NewExpander(p, config.ExpansionConfig{}, nil)
	res := e.Expand(context.Background(), "q")
	if res.Applied || len(res.Value) != 1 {
		t.Fatalf("empty reply should skip: %+v", res)
	}
}

func TestExpander_CapsVariantCount(t *testing.T) {
	p := &stubLLM{reply: "a\nb\nc\nd\ne"}
	e := NewExpander(p, config.ExpansionConfig{MaxVariants: 2}, nil)
	res := e.Expand(context.Background(), "q")
	if len(res.Value) != 3 {
		t.Fatalf("variant cap not applied: %+v", res.Value)
	}
}
