package contract

import (
	"context"

	statex "github.com/witbridge/nestbot/bot/state"
)

// Engine runs one full conversation turn: it repeatedly asks the external
// dialogue engine what to do next, dispatches the named action, and feeds the
// updated context back in until the engine has nothing left to do.
type Engine interface {
	RunActions(ctx context.Context, sessionID, message string, sc *statex.Context) (*statex.Context, error)
}

// Responder delivers a text reply to a specific end user.
type Responder interface {
	Send(ctx context.Context, recipientID, text string) error
}

// WeatherProvider returns a one-line description of current conditions.
type WeatherProvider interface {
	CurrentConditions(ctx context.Context, city string) (string, error)
}

// HeadlineFeed exposes a rotating ranked feed of headlines. StoryAt returns
// ErrFeedExhausted once rank runs past the end of the feed.
type HeadlineFeed interface {
	StoryAt(ctx context.Context, rank int) (string, error)
}

// NewsProvider lists available source ids and summarizes one top story per
// source.
type NewsProvider interface {
	SourceIDs(ctx context.Context) ([]string, error)
	TopStory(ctx context.Context, sourceID string) (string, error)
}
