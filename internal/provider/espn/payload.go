package espn

// SplitsPayload is the athlete splits document.
type SplitsPayload struct {
	Names           []string        `json:"names"`
	SplitCategories []SplitCategory `json:"splitCategories"`
}

// SplitCategory groups splits, e.g. "split" or "byOpponent".
type SplitCategory struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Splits      []Split `json:"splits"`
}

// Split holds one row of values aligned with SplitsPayload.Names. Values
// arrive as numbers or display strings such as "1,234".
type Split struct {
	DisplayName string `json:"displayName"`
	Stats       []any  `json:"stats"`
}

// ScoreboardPayload is one week of events.
type ScoreboardPayload struct {
	Week   *WeekRef `json:"week,omitempty"`
	Events []Event  `json:"events"`
}

// WeekRef echoes the requested week.
type WeekRef struct {
	Number int `json:"number"`
}

// Event is a single game.
type Event struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       *Status       `json:"status,omitempty"`
	Competitions []Competition `json:"competitions"`
}

// Competition carries the competitors and, sometimes, the game status.
type Competition struct {
	Status      *Status      `json:"status,omitempty"`
	Competitors []Competitor `json:"competitors"`
}

// Competitor is one side of a game.
type Competitor struct {
	HomeAway string `json:"homeAway"`
	Team     Team   `json:"team"`
}

// Team identifies a franchise.
type Team struct {
	ID           string `json:"id"`
	Abbreviation string `json:"abbreviation"`
}

// Status wraps the game state.
type Status struct {
	Type StatusType `json:"type"`
}

// StatusType names the game state; "STATUS_FINAL" marks a completed game.
type StatusType struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Completed bool   `json:"completed"`
}

// StatusFinal is the status name of a completed game.
const StatusFinal = "STATUS_FINAL"

// GameStatus returns the event status, falling back to the first
// competition's status when the event carries none.
func (e Event) GameStatus() string {
	if e.Status != nil && e.Status.Type.Name != "" {
		return e.Status.Type.Name
	}
	if len(e.Competitions) > 0 && e.Competitions[0].Status != nil {
		return e.Competitions[0].Status.Type.Name
	}
	return ""
}

// Final reports whether the game has finished.
func (e Event) Final() bool {
	return e.GameStatus() == StatusFinal
}

// Competitors returns the competitors of the first competition.
func (e Event) Competitors() []Competitor {
	if len(e.Competitions) == 0 {
		return nil
	}
	return e.Competitions[0].Competitors
}
