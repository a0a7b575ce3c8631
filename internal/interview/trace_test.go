package interview_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/skillprobe/pkg/audio"
)

// Not parallel: swaps the global tracer provider.
func TestAnswerSpan_Attributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	m := newManager(t,
		sttByAudio(map[string]string{"fork": "I operated forklifts for three years."}),
		detectorLLM(map[string]string{"three years": `["Forklift Operation"]`}),
	)
	ctx := context.Background()
	id, err := m.Create(ctx, forkliftSkills, forkliftQuestions)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.SubmitAnswer(ctx, id, 0, wav("fork")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := m.Ingest(ctx, id, audio.Chunk{Samples: []float32{0.2, -0.2}, SampleRate: 16000}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	type want struct{ index, source string }
	var got []want
	for _, s := range rec.Ended() {
		if s.Name() != "interview.answer" {
			continue
		}
		attrs := map[string]string{}
		for _, kv := range s.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		if attrs["session_id"] != id {
			continue
		}
		got = append(got, want{attrs["question_index"], attrs["source"]})
	}
	if len(got) != 2 {
		t.Fatalf("interview.answer spans for session = %+v, want 2", got)
	}
	if got[0] != (want{"0", "rest"}) || got[1] != (want{"1", "live"}) {
		t.Errorf("spans = %+v, want question 0 over rest then question 1 over live", got)
	}
}
