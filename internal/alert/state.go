package alert

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"MarketSync/internal/model"
)

// State is the last zone seen per series, persisted so restarts do not
// resend alerts.
type State struct {
	Zones     map[string]model.RSIZone `json:"zones"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func stateKey(ticker string, g model.Granularity) string {
	return ticker + "_" + g.Suffix()
}

// LoadState reads the alert state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	state := &State{Zones: make(map[string]model.RSIZone)}
	if filePath == "" {
		return state, nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Zones == nil {
		state.Zones = make(map[string]model.RSIZone)
	}
	return state, nil
}

// SaveState writes the alert state to a JSON file.
func SaveState(filePath string, state *State) error {
	if filePath == "" {
		return nil
	}
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
