package pricing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/pkg/cache"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/textgen"
)

// numberPattern matches the first price-like token: digits with an optional
// decimal part. Thousands separators are not supported.
var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Service suggests seat prices and text refinements through a text
// generation model
type Service struct {
	gen    textgen.Generator
	redis  *redis.Client
	logger *logger.Logger
	config Config
}

// Config holds pricing configuration
type Config struct {
	MinSuggestion decimal.Decimal
	MaxSuggestion decimal.Decimal
	CacheTTL      time.Duration
}

// NewService creates a new pricing service. redisClient may be nil, in which
// case suggestions are not cached.
func NewService(gen textgen.Generator, redisClient *redis.Client, log *logger.Logger, config Config) *Service {
	return &Service{
		gen:    gen,
		redis:  redisClient,
		logger: log,
		config: config,
	}
}

// SuggestPrice asks the model for a per-seat price and returns the first
// number of its answer. Any failure comes back as the "could not get
// suggestion" external service error.
func (s *Service) SuggestPrice(ctx context.Context, from, to string, at time.Time) (decimal.Decimal, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		var missing []string
		if from == "" {
			missing = append(missing, "from")
		}
		if to == "" {
			missing = append(missing, "to")
		}
		return decimal.Zero, apperrors.Validation("From and to are required for a price suggestion", missing...)
	}

	key := cacheKey(from, to, at)
	if s.redis != nil {
		if cached, err := cache.Get(ctx, s.redis, key); err == nil {
			if price, err := decimal.NewFromString(cached); err == nil {
				return price, nil
			}
		}
	}

	completion, err := s.gen.Generate(ctx, pricePrompt(from, to, at))
	if err != nil {
		s.logger.Warn("Price suggestion failed",
			logger.String("from", from),
			logger.String("to", to),
			logger.Err(err),
		)
		return decimal.Zero, apperrors.ExternalService(apperrors.ErrSuggestionFailed.Message, err)
	}

	price, ok := ExtractPrice(completion)
	if !ok || !s.inRange(price) {
		s.logger.Warn("Price suggestion unusable",
			logger.String("completion", completion),
		)
		return decimal.Zero, apperrors.ExternalService(apperrors.ErrSuggestionFailed.Message, fmt.Errorf("no usable price in %q", completion))
	}

	if s.redis != nil && s.config.CacheTTL > 0 {
		if err := cache.SetWithExpiry(ctx, s.redis, key, price.String(), s.config.CacheTTL); err != nil {
			s.logger.Warn("Failed to cache price suggestion", logger.Err(err))
		}
	}

	s.logger.Info("Price suggested",
		logger.String("from", from),
		logger.String("to", to),
		logger.Decimal("price", price),
	)
	return price, nil
}

// SuggestRefinement passes the model's rewrite of text through unchanged
func (s *Service) SuggestRefinement(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.Validation("Text is required", "text")
	}
	completion, err := s.gen.Generate(ctx, refinePrompt(text))
	if err != nil {
		s.logger.Warn("Refinement suggestion failed", logger.Err(err))
		return "", apperrors.ExternalService(apperrors.ErrSuggestionFailed.Message, err)
	}
	return completion, nil
}

// ExtractPrice returns the first numeric token of text
func ExtractPrice(text string) (decimal.Decimal, bool) {
	token := numberPattern.FindString(text)
	if token == "" {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, false
	}
	return price.Round(2), true
}

func (s *Service) inRange(price decimal.Decimal) bool {
	if !price.IsPositive() {
		return false
	}
	if !s.config.MinSuggestion.IsZero() && price.LessThan(s.config.MinSuggestion) {
		return false
	}
	if !s.config.MaxSuggestion.IsZero() && price.GreaterThan(s.config.MaxSuggestion) {
		return false
	}
	return true
}

func cacheKey(from, to string, at time.Time) string {
	return fmt.Sprintf("price_suggestion:%s:%s:%s",
		strings.ToLower(from), strings.ToLower(to), at.UTC().Format("2006-01-02T15"))
}

func pricePrompt(from, to string, at time.Time) string {
	return fmt.Sprintf(
		"Suggest a fair carpool price per seat in Canadian dollars for a ride from %s to %s departing %s. "+
			"Answer with a single number.",
		from, to, at.Format("Monday 15:04"))
}

func refinePrompt(text string) string {
	return "Rewrite this carpool ride note so it is clear and friendly. Keep it short:\n\n" + text
}
