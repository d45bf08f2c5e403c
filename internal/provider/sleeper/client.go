package sleeper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"goflare.io/pace/internal/models"
)

// Provider is the provider name used in errors and metrics.
const Provider = "sleeper"

// Getter is the transport the client needs; *upstream.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
	GetJSON(ctx context.Context, url string, out any) error
}

// Client reads the bulk roster and the season clock.
type Client struct {
	getter  Getter
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a Client rooted at baseURL, e.g. https://api.sleeper.app/v1.
func NewClient(getter Getter, baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		getter:  getter,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named(Provider),
	}
}

// Players returns the bulk player mapping unmodified.
func (c *Client) Players(ctx context.Context) (json.RawMessage, error) {
	body, err := c.getter.Get(ctx, c.baseURL+"/players/nfl")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &models.UpstreamError{
			Provider: Provider,
			URL:      c.baseURL + "/players/nfl",
			Err:      models.DecodeError(fmt.Errorf("roster body is not valid JSON")),
		}
	}
	c.logger.Debug("Fetched roster", zap.Int("bytes", len(body)))
	return json.RawMessage(body), nil
}

type statePayload struct {
	Season      string `json:"season"`
	SeasonType  string `json:"season_type"`
	Week        int    `json:"week"`
	DisplayWeek int    `json:"display_week"`
}

// State returns the current season and week.
func (c *Client) State(ctx context.Context) (models.NFLState, error) {
	var p statePayload
	if err := c.getter.GetJSON(ctx, c.baseURL+"/state/nfl", &p); err != nil {
		return models.NFLState{}, err
	}
	return models.NFLState{
		Season:      p.Season,
		SeasonType:  p.SeasonType,
		Week:        p.Week,
		DisplayWeek: p.DisplayWeek,
	}, nil
}

type rosterPlayer struct {
	PlayerID  string `json:"player_id"`
	FullName  string `json:"full_name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	Team      string `json:"team"`
	ESPNID    any    `json:"espn_id"`
	Metadata  struct {
		Headshot string `json:"headshot"`
	} `json:"metadata"`
}

// HeadshotURL returns the ESPN headshot for an ESPN athlete id.
func HeadshotURL(espnID string) string {
	if espnID == "" {
		return ""
	}
	return "https://a.espncdn.com/i/headshots/nfl/players/full/" + espnID + ".png"
}

// BuildIndex flattens the bulk roster into searchable players sorted by
// name. Entries without an id or a name are dropped.
func BuildIndex(raw json.RawMessage) ([]models.Player, error) {
	var roster map[string]rosterPlayer
	if err := json.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	players := make([]models.Player, 0, len(roster))
	for key, p := range roster {
		id := p.PlayerID
		if id == "" {
			id = key
		}
		name := p.FullName
		if name == "" {
			name = strings.TrimSpace(p.FirstName + " " + p.LastName)
		}
		if id == "" || name == "" {
			continue
		}
		espnID := idString(p.ESPNID)
		headshot := p.Metadata.Headshot
		if headshot == "" {
			headshot = HeadshotURL(espnID)
		}
		players = append(players, models.Player{
			ID:          id,
			FullName:    name,
			Position:    p.Position,
			Team:        p.Team,
			ESPNID:      espnID,
			HeadshotURL: headshot,
		})
	}

	sort.Slice(players, func(i, j int) bool {
		if players[i].FullName != players[j].FullName {
			return players[i].FullName < players[j].FullName
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

// Search returns up to limit players whose name contains query, ignoring case.
func Search(players []models.Player, query string, limit int) []models.Player {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var out []models.Player
	for _, p := range players {
		if strings.Contains(strings.ToLower(p.FullName), query) {
			out = append(out, p)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// espn_id arrives as a number or a string depending on the player.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}
