package usecase

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
)

func TestEvaluateRun(t *testing.T) {
	retriever := &retrieverFake{result: &domain.RetrievalResult{Chunks: sampleChunks(), Confidence: 0.8}}
	uc := NewEvaluateUseCase(&embedderFake{vector: []float32{1, 0}}, retriever, nil, AdviseSettings{})

	report, err := uc.Run(context.Background(), []domain.GroundTruthCase{
		{Question: "Do I file Form 8843?", ExpectedKeywords: []string{"8843", "NONRESIDENT"}},
		{Question: "Is there a treaty?", ExpectedKeywords: []string{"treaty", "article 21"}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.HitRate != 0.5 {
		t.Fatalf("expected hit rate 0.5, got %v", report.HitRate)
	}
	if report.AvgContextRelevance != 1 {
		t.Fatalf("identical vectors must score 1, got %v", report.AvgContextRelevance)
	}
	if !reflect.DeepEqual(report.Cases[1].MissingKeywords, []string{"article 21"}) {
		t.Fatalf("unexpected missing keywords: %v", report.Cases[1].MissingKeywords)
	}
	if report.AvgAnswerRelevance != nil || report.Cases[0].Faithfulness != nil {
		t.Fatalf("answer metrics must be absent without a generator")
	}
	if retriever.query.Text != "Is there a treaty?" {
		t.Fatalf("evaluation retrieves with the raw question, got %q", retriever.query.Text)
	}
}

func TestEvaluateRunWithGenerator(t *testing.T) {
	retriever := &retrieverFake{result: &domain.RetrievalResult{Chunks: sampleChunks(), Confidence: 0.8}}
	uc := NewEvaluateUseCase(&embedderFake{vector: []float32{0, 1}}, retriever, &generatorFake{text: "answer"}, AdviseSettings{TopK: 3})

	report, err := uc.Run(context.Background(), []domain.GroundTruthCase{{Question: "Form 8843?", ExpectedKeywords: []string{"8843"}}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.AvgAnswerRelevance == nil || *report.AvgAnswerRelevance != 1 {
		t.Fatalf("unexpected answer relevance: %v", report.AvgAnswerRelevance)
	}
	if report.AvgFaithfulness == nil || *report.AvgFaithfulness != 1 {
		t.Fatalf("unexpected faithfulness: %v", report.AvgFaithfulness)
	}
}

func TestEvaluateRunErrors(t *testing.T) {
	uc := NewEvaluateUseCase(&embedderFake{}, &retrieverFake{result: &domain.RetrievalResult{}}, nil, AdviseSettings{})
	if _, err := uc.Run(context.Background(), nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	uc = NewEvaluateUseCase(&embedderFake{}, &retrieverFake{err: domain.ErrRetrievalUnavailable}, nil, AdviseSettings{})
	if _, err := uc.Run(context.Background(), []domain.GroundTruthCase{{Question: "q"}}); !errors.Is(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 1}, []float32{2, 2}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("parallel vectors: got %v", got)
	}
	if got := CosineSimilarity(nil, []float32{1}); got != 0 {
		t.Fatalf("empty vector: got %v", got)
	}
}
