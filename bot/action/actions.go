package action

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	contractx "github.com/witbridge/nestbot/bot/contract"
	statex "github.com/witbridge/nestbot/bot/state"
)

const (
	NameSend               = "send"
	NameGetForecast        = "getForecast"
	NameGetNextTopNews     = "getNextTopNews"
	NameGetNextTopNewsHN = "getNextTopNewsOnlyFromHackerNews"
)

const forecastHelpPrompt = "Please ask something like, 'How's weather in Chicago?' or Weather in chicago? We currently get forecast only for present day."

// missingLocation is an engine control key cleared once a forecast succeeds.
const missingLocationKey = "missingLocation"

// Set bundles the four bot actions with their collaborators.
type Set struct {
	store     statex.Store
	responder contractx.Responder
	weather   contractx.WeatherProvider
	headlines contractx.HeadlineFeed
	news      contractx.NewsProvider

	randInt func(min, max int) int
}

func NewSet(
	store statex.Store,
	responder contractx.Responder,
	weather contractx.WeatherProvider,
	headlines contractx.HeadlineFeed,
	news contractx.NewsProvider,
) (*Set, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	if weather == nil {
		return nil, errors.New("weather provider is required")
	}
	if headlines == nil {
		return nil, errors.New("headline feed is required")
	}
	if news == nil {
		return nil, errors.New("news provider is required")
	}

	return &Set{
		store:     store,
		responder: responder,
		weather:   weather,
		headlines: headlines,
		news:      news,
		randInt: func(min, max int) int {
			return rand.IntN(max-min+1) + min
		},
	}, nil
}

// Register installs every action into the registry.
func (s *Set) Register(r *Registry) error {
	for name, h := range map[string]Handler{
		NameSend:               s.send,
		NameGetForecast:        s.getForecast,
		NameGetNextTopNews:     s.getNextTopNews,
		NameGetNextTopNewsHN: s.getNextTopNewsOnlyFromHackerNews,
	} {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

// send is the terminal, fire-and-forget leaf of every turn: delivery problems
// are logged, never raised back to the engine.
func (s *Set) send(ctx context.Context, req Request) (*statex.Context, error) {
	sess, err := s.store.Get(ctx, req.SessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).
			Msg("could not find user for session")
		return req.Context, nil
	}
	if sess.UserID == "" {
		log.Error().Str("session_id", req.SessionID).
			Msg("session has no recipient")
		return req.Context, nil
	}

	if err := s.responder.Send(ctx, sess.UserID, req.Message); err != nil {
		log.Error().Err(err).Str("recipient_id", sess.UserID).
			Msg("failed to forward reply to recipient")
	}
	return req.Context, nil
}

func (s *Set) getForecast(ctx context.Context, req Request) (*statex.Context, error) {
	sc := req.Context

	location := FirstEntityValue(req.Entities, "location")
	if location == nil {
		sc.Forecast = forecastHelpPrompt
		return sc, nil
	}

	city := fmt.Sprint(location)
	description, err := s.weather.CurrentConditions(ctx, city)
	if err != nil {
		return nil, err
	}

	sc.Forecast = description + " in " + city
	sc.ClearExtra(missingLocationKey)
	return sc, nil
}

func (s *Set) getNextTopNewsOnlyFromHackerNews(ctx context.Context, req Request) (*statex.Context, error) {
	sc := req.Context

	counter := sc.Count
	story, err := s.headlines.StoryAt(ctx, counter)
	if err != nil {
		return nil, err
	}

	sc.Count = counter + 1
	sc.Story = story
	return sc, nil
}

func (s *Set) getNextTopNews(ctx context.Context, req Request) (*statex.Context, error) {
	sc := req.Context

	sourceIDs, err := s.news.SourceIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(sourceIDs) == 0 {
		return nil, errors.New("no news sources available")
	}

	// The randomized cursor lands in [1, len]; wrap the one-past-the-end case.
	counter := sc.Count
	if counter < 0 || counter >= len(sourceIDs) {
		counter %= len(sourceIDs)
		if counter < 0 {
			counter = 0
		}
	}

	story, err := s.news.TopStory(ctx, sourceIDs[counter])
	if err != nil {
		return nil, err
	}

	// Re-randomize rather than increment so repeated "next" requests hop
	// between sources.
	sc.Count = s.randInt(1, len(sourceIDs))
	sc.Story = story
	return sc, nil
}
