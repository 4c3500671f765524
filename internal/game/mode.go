package game

// Mode fixes the structural parameters of a game before it starts.
type Mode struct {
	Name           string
	DeckSize       int
	StartingHealth int
	HandLimit      int
	StartingHand   int
	MaxDeckLevel   int
}

// MatrixMode is the standard two-player mode.
func MatrixMode() Mode {
	return Mode{
		Name:           "matrix",
		DeckSize:       50,
		StartingHealth: 20,
		HandLimit:      6,
		StartingHand:   7,
		MaxDeckLevel:   0,
	}
}

// DisconnectPolicy selects what happens when a player stops responding.
type DisconnectPolicy string

const (
	// PolicyAutoPass passes priority and declines choices on the player's
	// behalf for the rest of the session.
	PolicyAutoPass DisconnectPolicy = "auto_pass"
	// PolicyForfeit concedes the game for the unresponsive player.
	PolicyForfeit DisconnectPolicy = "forfeit"
)

// State identifies where a session is in its lifecycle.
type State string

const (
	// StateCreated means the session exists but has not been started.
	StateCreated State = "CREATED"
	// StateAwaitingFirstSetup means setup (deck checks, initial draw) is
	// in progress.
	StateAwaitingFirstSetup State = "AWAITING_FIRST_SETUP"
	// StateMulligan means the keep/redraw loop is running.
	StateMulligan State = "MULLIGAN"
	// StateNormal means the turn loop is running.
	StateNormal State = "NORMAL"
	// StateFinished means the game has a result and accepts no input.
	StateFinished State = "FINISHED"
)

// Config describes one game to be created.
type Config struct {
	Mode         Mode
	Players      []PlayerSetup
	Seed         int64
	Disconnect   DisconnectPolicy
	RecordReplay bool
}

// PlayerSetup binds a player ID to the deck they bring.
type PlayerSetup struct {
	PlayerID string
	Name     string
	DeckName string
	Cards    []string
}
