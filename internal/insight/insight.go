// Package insight turns a participant's or district's records into a prompt
// and asks the configured generator for a narrative summary.
package insight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adam5647/BaselineAnalysis/internal/analysis"
	"github.com/Adam5647/BaselineAnalysis/internal/llm"
	"github.com/Adam5647/BaselineAnalysis/internal/llm/prompts"
	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

// Cache stores generated texts by prompt hash.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// History records every freshly generated insight.
type History interface {
	InsertInsight(in model.Insight) (int64, error)
}

// Preview is the data block and the full prompt for one subject, shown
// before anything is sent to the generator.
type Preview struct {
	Kind    model.InsightKind `json:"kind"`
	Subject string            `json:"subject"`
	Block   string            `json:"block"`
	Prompt  string            `json:"prompt"`
}

// Service builds prompts and generates insights. Cache and History are
// optional.
type Service struct {
	gen       llm.Generator
	templates *prompts.Templates
	builder   *prompts.Builder
	cache     Cache
	history   History
	sf        singleflight.Group
}

// New creates a Service. cache and history may be nil.
func New(gen llm.Generator, templates *prompts.Templates, builder *prompts.Builder, cache Cache, history History) *Service {
	if builder == nil {
		builder = &prompts.Builder{}
	}
	return &Service{
		gen:       gen,
		templates: templates,
		builder:   builder,
		cache:     cache,
		history:   history,
	}
}

// Model names the generator's model.
func (s *Service) Model() string { return s.gen.Model() }

// ParticipantPreview renders the prompt for a participant key
// ("District - Name").
func (s *Service) ParticipantPreview(records []model.ResponseRecord, participant string) (Preview, error) {
	rows := analysis.ForParticipant(records, participant)
	if len(rows) == 0 {
		return Preview{}, fmt.Errorf("%w: %q", model.ErrParticipantNotFound, participant)
	}
	block := s.builder.ParticipantBlock(rows)
	prompt, err := s.templates.Participant(prompts.ParticipantData{Participant: participant, Block: block})
	if err != nil {
		return Preview{}, err
	}
	return Preview{Kind: model.InsightParticipant, Subject: participant, Block: block, Prompt: prompt}, nil
}

// DistrictPreview renders the prompt for a district.
func (s *Service) DistrictPreview(records []model.ResponseRecord, district string) (Preview, error) {
	rows := analysis.Apply(records, model.Filter{Districts: []string{district}})
	if len(rows) == 0 {
		return Preview{}, fmt.Errorf("%w: %q", model.ErrDistrictNotFound, district)
	}
	stats := analysis.DistrictStats(rows, district)
	top := analysis.TopPerQuestion(rows, s.builder.ResponsesPerQuestion())
	block := s.builder.DistrictBlock(stats, top)
	prompt, err := s.templates.District(prompts.DistrictData{District: district, Block: block})
	if err != nil {
		return Preview{}, err
	}
	return Preview{Kind: model.InsightDistrict, Subject: district, Block: block, Prompt: prompt}, nil
}

// Participant generates an insight for a participant key.
func (s *Service) Participant(ctx context.Context, records []model.ResponseRecord, participant string) (*model.Insight, error) {
	p, err := s.ParticipantPreview(records, participant)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, p)
}

// District generates an insight for a district.
func (s *Service) District(ctx context.Context, records []model.ResponseRecord, district string) (*model.Insight, error) {
	p, err := s.DistrictPreview(records, district)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, p)
}

// Generate returns the cached insight for p's prompt or asks the generator
// for a new one. Concurrent calls for the same prompt share one request.
// Generator errors are returned unchanged and never cached.
func (s *Service) Generate(ctx context.Context, p Preview) (*model.Insight, error) {
	key := PromptHash(s.gen.Model(), p.Prompt)
	in := model.Insight{
		Kind:       p.Kind,
		Subject:    p.Subject,
		PromptHash: key,
		Model:      s.gen.Model(),
		Prompt:     p.Prompt,
	}

	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("insight cache lookup failed", "error", err)
		} else if ok {
			in.Response = text
			in.Cached = true
			in.CreatedAt = time.Now().UTC()
			return &in, nil
		}
	}

	// The shared call outlives any one caller; the generator's timeout
	// bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (any, error) {
		start := time.Now()
		text, err := s.gen.Generate(shared, p.Prompt)
		if err != nil {
			slog.Error("insight generation failed", "kind", p.Kind, "subject", p.Subject, "error", err)
			return nil, err
		}
		slog.Info("insight generated", "kind", p.Kind, "subject", p.Subject,
			"model", s.gen.Model(), "elapsed", time.Since(start))

		out := in
		out.Response = text
		out.CreatedAt = time.Now().UTC()

		if s.cache != nil {
			if err := s.cache.Set(shared, key, text); err != nil {
				slog.Warn("insight cache store failed", "error", err)
			}
		}
		if s.history != nil {
			id, err := s.history.InsertInsight(out)
			if err != nil {
				slog.Warn("record insight failed", "error", err)
			}
			out.ID = id
		}
		return &out, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*model.Insight)
		return &res, nil
	}
}

// PromptHash keys a prompt for caching: hex SHA-256 of model and prompt.
func PromptHash(modelName, prompt string) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
