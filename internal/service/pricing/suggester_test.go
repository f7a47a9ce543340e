package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func newTestService(gen *fakeGenerator) *Service {
	return NewService(gen, nil, logger.NewNop(), Config{
		MinSuggestion: decimal.NewFromInt(1),
		MaxSuggestion: decimal.NewFromInt(500),
	})
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"bare number", "18", "18", true},
		{"with currency", "About $22.50 per seat", "22.5", true},
		{"first number wins", "Between 15 and 20 dollars", "15", true},
		{"rounded to cents", "12.345", "12.35", true},
		{"no number", "I cannot say", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPrice(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSuggestPrice(t *testing.T) {
	gen := &fakeGenerator{reply: "A fair price is $17 per seat."}
	svc := newTestService(gen)

	price, err := svc.SuggestPrice(context.Background(), "Toronto", "Ottawa", time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "17", price.String())
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Toronto")
	assert.Contains(t, gen.prompts[0], "Ottawa")
}

func TestSuggestPrice_FailuresDegradeToSuggestionError(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"generator error", &fakeGenerator{err: errors.New("timeout")}},
		{"no number", &fakeGenerator{reply: "It depends on traffic"}},
		{"out of range", &fakeGenerator{reply: "9000"}},
		{"zero", &fakeGenerator{reply: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService(tt.gen).SuggestPrice(context.Background(), "Toronto", "Ottawa", time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrSuggestionFailed)
			assert.True(t, apperrors.IsKind(err, apperrors.CodeExternalService))
		})
	}
}

func TestSuggestPrice_RequiresEndpoints(t *testing.T) {
	gen := &fakeGenerator{reply: "10"}
	_, err := newTestService(gen).SuggestPrice(context.Background(), " ", "", time.Now())
	require.Error(t, err)
	appErr := apperrors.GetAppError(err)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	assert.Equal(t, []string{"from", "to"}, appErr.Fields)
	assert.Empty(t, gen.prompts)
}

func TestSuggestRefinement_PassesTextThrough(t *testing.T) {
	gen := &fakeGenerator{reply: "Leaving Union Station at 8am sharp, two seats left!"}
	got, err := newTestService(gen).SuggestRefinement(context.Background(), "leaving union 8am 2 seats")
	require.NoError(t, err)
	assert.Equal(t, gen.reply, got)

	_, err = newTestService(&fakeGenerator{err: errors.New("down")}).SuggestRefinement(context.Background(), "x")
	assert.ErrorIs(t, err, apperrors.ErrSuggestionFailed)
}
