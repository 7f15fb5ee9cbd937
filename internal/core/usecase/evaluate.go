package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

// EvaluateUseCase scores retrieval against ground-truth keyword sets. When a
// generator is supplied it also scores generated answers.
type EvaluateUseCase struct {
	embedder  ports.Embedder
	retriever ports.Retriever
	generator ports.AnswerGenerator
	settings  AdviseSettings
}

func NewEvaluateUseCase(
	embedder ports.Embedder,
	retriever ports.Retriever,
	generator ports.AnswerGenerator,
	settings AdviseSettings,
) *EvaluateUseCase {
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if settings.CandidateK <= 0 {
		settings.CandidateK = 20
	}
	if settings.CandidateK < settings.TopK {
		settings.CandidateK = settings.TopK
	}
	return &EvaluateUseCase{
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		settings:  settings,
	}
}

func (uc *EvaluateUseCase) Run(ctx context.Context, cases []domain.GroundTruthCase) (*domain.EvalReport, error) {
	if len(cases) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", errors.New("no ground truth cases"))
	}

	report := &domain.EvalReport{Cases: make([]domain.EvalCaseResult, 0, len(cases))}
	var hits, ctxRel, ansRel, faith float64
	for i, tc := range cases {
		res, err := uc.evaluateCase(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i+1, err)
		}
		if res.Hit {
			hits++
		}
		ctxRel += res.ContextRelevance
		if res.AnswerRelevance != nil {
			ansRel += *res.AnswerRelevance
		}
		if res.Faithfulness != nil {
			faith += *res.Faithfulness
		}
		report.Cases = append(report.Cases, res)
	}

	n := float64(len(cases))
	report.HitRate = round4(hits / n)
	report.AvgContextRelevance = round4(ctxRel / n)
	if uc.generator != nil {
		a, f := round4(ansRel/n), round4(faith/n)
		report.AvgAnswerRelevance = &a
		report.AvgFaithfulness = &f
	}
	return report, nil
}

func (uc *EvaluateUseCase) evaluateCase(ctx context.Context, tc domain.GroundTruthCase) (domain.EvalCaseResult, error) {
	question := strings.TrimSpace(tc.Question)
	if question == "" {
		return domain.EvalCaseResult{}, domain.WrapError(domain.ErrInvalidInput, "evaluate case", errors.New("question is empty"))
	}

	qVec, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return domain.EvalCaseResult{}, domain.WrapError(domain.ErrRetrievalUnavailable, "embed question", err)
	}
	result, err := uc.retriever.Retrieve(ctx, domain.Query{Text: question, Embedding: qVec}, uc.settings.TopK, uc.settings.CandidateK)
	if err != nil {
		return domain.EvalCaseResult{}, fmt.Errorf("retrieve: %w", err)
	}

	texts := make([]string, len(result.Chunks))
	ids := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}
	missing := MissingKeywords(texts, tc.ExpectedKeywords)

	out := domain.EvalCaseResult{
		Question:        question,
		Hit:             len(missing) == 0,
		Confidence:      result.Confidence,
		RetrievedIDs:    ids,
		MissingKeywords: missing,
	}
	if len(texts) == 0 {
		return out, nil
	}

	chunkVecs, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.EvalCaseResult{}, fmt.Errorf("embed retrieved chunks: %w", err)
	}
	scores := make([]float64, len(chunkVecs))
	for i, v := range chunkVecs {
		scores[i] = CosineSimilarity(qVec, v)
	}
	out.ContextRelevance = round4(mean(scores))

	if uc.generator == nil {
		return out, nil
	}
	answer, err := uc.generator.GenerateAnswer(ctx, domain.AnswerRequest{
		Question: question,
		Profile:  domain.DefaultProfile(),
		Chunks:   result.Chunks,
	})
	if err != nil {
		return domain.EvalCaseResult{}, domain.WrapError(domain.ErrGenerationFailed, "generate answer", err)
	}
	aVec, err := uc.embedder.EmbedQuery(ctx, answer)
	if err != nil {
		return domain.EvalCaseResult{}, fmt.Errorf("embed answer: %w", err)
	}
	ar := round4(CosineSimilarity(qVec, aVec))
	fa := round4(CosineSimilarity(aVec, centroid(chunkVecs)))
	out.AnswerRelevance = &ar
	out.Faithfulness = &fa
	return out, nil
}

// MissingKeywords returns expected keywords absent from the joined texts,
// compared case-insensitively.
func MissingKeywords(texts []string, expected []string) []string {
	joined := strings.ToLower(strings.Join(texts, " "))
	var missing []string
	for _, kw := range expected {
		if !strings.Contains(joined, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	return missing
}

func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := 0; i < len(out) && i < len(v); i++ {
			out[i] += v[i]
		}
	}
	for i := range out {
		out[i] /= float32(len(vectors))
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
