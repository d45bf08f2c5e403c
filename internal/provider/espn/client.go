package espn

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Provider is the provider name used in errors and metrics.
const Provider = "espn"

// Getter is the transport the client needs; *upstream.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, url string, out any) error
}

// Client talks to the athlete splits and scoreboard endpoints.
type Client struct {
	getter        Getter
	splitsURL     string
	scoreboardURL string
	season        int
	logger        *zap.Logger
}

// NewClient creates a Client. A season of 0 lets the provider pick the current one.
func NewClient(getter Getter, splitsURL, scoreboardURL string, season int, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		getter:        getter,
		splitsURL:     strings.TrimRight(splitsURL, "/"),
		scoreboardURL: scoreboardURL,
		season:        season,
		logger:        logger.Named(Provider),
	}
}

// SplitsURL returns the splits endpoint for an athlete.
func (c *Client) SplitsURL(athleteID string) string {
	return fmt.Sprintf("%s/%s/splits", c.splitsURL, url.PathEscape(athleteID))
}

// ScoreboardURL returns the regular season scoreboard endpoint for week.
func (c *Client) ScoreboardURL(week int) string {
	q := url.Values{}
	q.Set("week", strconv.Itoa(week))
	q.Set("seasontype", "2")
	if c.season > 0 {
		q.Set("dates", strconv.Itoa(c.season))
	}
	sep := "?"
	if strings.Contains(c.scoreboardURL, "?") {
		sep = "&"
	}
	return c.scoreboardURL + sep + q.Encode()
}

// FetchSplits downloads the splits document for an athlete.
func (c *Client) FetchSplits(ctx context.Context, athleteID string) (*SplitsPayload, error) {
	var payload SplitsPayload
	if err := c.getter.GetJSON(ctx, c.SplitsURL(athleteID), &payload); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched splits",
		zap.String("athlete_id", athleteID),
		zap.Int("names", len(payload.Names)),
		zap.Int("categories", len(payload.SplitCategories)))
	return &payload, nil
}

// FetchScoreboard downloads one week of regular season events.
func (c *Client) FetchScoreboard(ctx context.Context, week int) (*ScoreboardPayload, error) {
	var payload ScoreboardPayload
	if err := c.getter.GetJSON(ctx, c.ScoreboardURL(week), &payload); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched scoreboard", zap.Int("week", week), zap.Int("events", len(payload.Events)))
	return &payload, nil
}
