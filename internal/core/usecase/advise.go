package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

const (
	offTopicMessage = "I can only help with U.S. tax questions for international students " +
		"(filing requirements, forms, treaties, residency status, income types). " +
		"Please rephrase your question around your tax situation."
	lowConfidenceMessage = "I couldn't find reference material that clearly covers this question " +
		"(retrieval confidence %.2f, required %.2f). Please rephrase it or consult a tax professional " +
		"or your school's international student office."
	fallbackHeader = "The answer generator is unavailable right now. " +
		"These are the most relevant passages from the reference documents:"
	guidanceDisclaimer = "This is general guidance, not professional tax advice."

	fallbackChunks = 2
)

// AdviceRecorder receives per-query measurements. Implemented by the metrics package.
type AdviceRecorder interface {
	RecordRetrieval(duration time.Duration, confidence float64)
	RecordRefusal(reason domain.AnswerOutcome)
	RecordGenerationFallback()
	RecordRetrievalFailure()
}

type AdviseSettings struct {
	TopK       int
	CandidateK int
}

type AdviseUseCase struct {
	embedder     ports.Embedder
	retriever    ports.Retriever
	generator    ports.AnswerGenerator
	gate         *ConfidenceGate
	interactions ports.InteractionLog
	recorder     AdviceRecorder
	settings     AdviseSettings
	logger       *slog.Logger
	now          func() time.Time
}

func NewAdviseUseCase(
	embedder ports.Embedder,
	retriever ports.Retriever,
	generator ports.AnswerGenerator,
	gate *ConfidenceGate,
	interactions ports.InteractionLog,
	recorder AdviceRecorder,
	settings AdviseSettings,
) *AdviseUseCase {
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if settings.CandidateK <= 0 {
		settings.CandidateK = 20
	}
	if settings.CandidateK < settings.TopK {
		settings.CandidateK = settings.TopK
	}
	if gate == nil {
		gate = NewConfidenceGate(nil, DefaultConfidenceThreshold)
	}

	return &AdviseUseCase{
		embedder:     embedder,
		retriever:    retriever,
		generator:    generator,
		gate:         gate,
		interactions: interactions,
		recorder:     recorder,
		settings:     settings,
		logger:       slog.Default(),
		now:          time.Now,
	}
}

// Ask answers question for profile. Off-topic and low-confidence questions
// come back as refusals in Answer.Outcome; only infrastructure failures and
// invalid input return an error.
func (uc *AdviseUseCase) Ask(ctx context.Context, profile domain.StudentProfile, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("question is required"))
	}
	profile = profile.WithDefaults()
	start := uc.now()

	if err := uc.gate.CheckDomain(question); err != nil {
		answer := &domain.Answer{Outcome: domain.OutcomeOffTopic, Text: offTopicMessage}
		answer.Latency.Total = uc.now().Sub(start)
		uc.refuse(ctx, question, answer)
		return answer, nil
	}

	result, err := uc.retrieve(ctx, profile, question, uc.settings.TopK)
	retrievalDone := uc.now()
	if err != nil {
		if uc.recorder != nil && domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			uc.recorder.RecordRetrievalFailure()
		}
		return nil, err
	}
	retrievalLatency := retrievalDone.Sub(start)
	if uc.recorder != nil {
		uc.recorder.RecordRetrieval(retrievalLatency, result.Confidence)
	}

	if err := uc.gate.CheckConfidence(result); err != nil {
		var low *domain.LowConfidenceError
		if !errors.As(err, &low) {
			return nil, err
		}
		answer := &domain.Answer{
			Outcome:    domain.OutcomeLowConfidence,
			Text:       fmt.Sprintf(lowConfidenceMessage, low.Confidence, low.Threshold),
			Confidence: result.Confidence,
		}
		answer.Latency.Retrieval = retrievalLatency
		answer.Latency.Total = uc.now().Sub(start)
		uc.refuse(ctx, question, answer)
		return answer, nil
	}

	text, usedFallback, err := uc.generate(ctx, profile, question, result.Chunks)
	if err != nil {
		return nil, err
	}
	end := uc.now()

	answer := &domain.Answer{
		Outcome:      domain.OutcomeAnswered,
		Text:         text,
		Sources:      result.Chunks,
		Confidence:   result.Confidence,
		UsedFallback: usedFallback,
		Latency: domain.Latency{
			Retrieval:  retrievalLatency,
			Generation: end.Sub(retrievalDone),
			Total:      end.Sub(start),
		},
		TokenEstimate: domain.TokenEstimate{
			Prompt:     domain.EstimateTokens(question + contextText(result.Chunks)),
			Completion: domain.EstimateTokens(text),
		},
	}
	uc.record(ctx, question, answer)
	return answer, nil
}

// Search runs the domain filter and hybrid retrieval without generation.
// The confidence floor is left to the caller.
func (uc *AdviseUseCase) Search(ctx context.Context, profile domain.StudentProfile, question string, topK int) (*domain.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("question is required"))
	}
	if topK <= 0 {
		topK = uc.settings.TopK
	}
	if err := uc.gate.CheckDomain(question); err != nil {
		return nil, err
	}
	return uc.retrieve(ctx, profile.WithDefaults(), question, topK)
}

func (uc *AdviseUseCase) retrieve(ctx context.Context, profile domain.StudentProfile, question string, topK int) (*domain.RetrievalResult, error) {
	enriched := profile.EnrichQuery(question)

	embedding, err := uc.embedder.EmbedQuery(ctx, enriched)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "embed query", err)
	}

	candidateK := uc.settings.CandidateK
	if candidateK < topK {
		candidateK = topK
	}
	result, err := uc.retriever.Retrieve(ctx, domain.Query{Text: enriched, Embedding: embedding}, topK, candidateK)
	if err != nil {
		return nil, fmt.Errorf("hybrid retrieve: %w", err)
	}
	return result, nil
}

func (uc *AdviseUseCase) generate(ctx context.Context, profile domain.StudentProfile, question string, chunks []domain.Chunk) (string, bool, error) {
	text, err := uc.generator.GenerateAnswer(ctx, domain.AnswerRequest{
		Question: question,
		Profile:  profile,
		Chunks:   chunks,
	})
	if err == nil && strings.TrimSpace(text) != "" {
		return text, false, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", false, ctxErr
	}
	if err == nil {
		err = errors.New("empty completion")
	}
	if len(chunks) == 0 {
		return "", false, domain.WrapError(domain.ErrGenerationFailed, "generate answer", err)
	}

	uc.logger.Warn("generation_fallback", "error", err, "chunks", len(chunks))
	if uc.recorder != nil {
		uc.recorder.RecordGenerationFallback()
	}
	return ExtractiveFallback(chunks), true, nil
}

// ExtractiveFallback answers with the raw text of the top chunks and their citations.
func ExtractiveFallback(chunks []domain.Chunk) string {
	var b strings.Builder
	b.WriteString(fallbackHeader)
	for i, c := range chunks {
		if i == fallbackChunks {
			break
		}
		b.WriteString("\n\n")
		b.WriteString(c.Citation())
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(c.Text))
	}
	b.WriteString("\n\n")
	b.WriteString(guidanceDisclaimer)
	return b.String()
}

func (uc *AdviseUseCase) refuse(ctx context.Context, question string, answer *domain.Answer) {
	uc.logger.Info("query_refused",
		"outcome", string(answer.Outcome),
		"confidence", answer.Confidence,
	)
	if uc.recorder != nil {
		uc.recorder.RecordRefusal(answer.Outcome)
	}
	uc.record(ctx, question, answer)
}

func (uc *AdviseUseCase) record(ctx context.Context, question string, answer *domain.Answer) {
	if uc.interactions == nil {
		return
	}
	ids := make([]string, len(answer.Sources))
	for i, c := range answer.Sources {
		ids[i] = c.ID
	}
	rec := domain.QueryLogRecord{
		Timestamp:        uc.now().UTC(),
		Question:         question,
		Outcome:          answer.Outcome,
		Confidence:       answer.Confidence,
		RetrievalMS:      durationMS(answer.Latency.Retrieval),
		GenerationMS:     durationMS(answer.Latency.Generation),
		TotalMS:          durationMS(answer.Latency.Total),
		PromptTokens:     answer.TokenEstimate.Prompt,
		CompletionTokens: answer.TokenEstimate.Completion,
		SourceIDs:        ids,
		UsedFallback:     answer.UsedFallback,
	}
	if err := uc.interactions.RecordQuery(ctx, rec); err != nil {
		uc.logger.Warn("query_log_failed", "error", err)
	}
}

func contextText(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
