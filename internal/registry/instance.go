// SPDX-License-Identifier: MIT
package registry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"audioviz/internal/visual"
)

// Instance is one registered visualizer with its identity and state.
type Instance struct {
	id          string
	typeName    string
	number      int
	displayName string
	created     uint64
	enabled     bool
	errMsg      string
	vis         visual.Visualizer
}

// envelope is the persisted form of an instance config.
type envelope struct {
	DisplayName string          `json:"displayName"`
	Settings    json.RawMessage `json:"settings"`
}

// NewInstance wraps vis as instance number n of its type. It starts
// enabled with the display name "{Type} {n}".
func NewInstance(vis visual.Visualizer, n int) *Instance {
	t := vis.Type()
	return &Instance{
		id:          InstanceID(t, n),
		typeName:    t,
		number:      n,
		displayName: fmt.Sprintf("%s %d", t, n),
		enabled:     true,
		vis:         vis,
	}
}

// InstanceID formats "{Type}_{N}".
func InstanceID(typeName string, n int) string {
	return typeName + "_" + strconv.Itoa(n)
}

// ParseInstanceID splits an id into type and number.
func ParseInstanceID(id string) (string, int, bool) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return id[:i], n, true
}

func (i *Instance) ID() string                    { return i.id }
func (i *Instance) Type() string                  { return i.typeName }
func (i *Instance) Number() int                   { return i.number }
func (i *Instance) DisplayName() string           { return i.displayName }
func (i *Instance) Enabled() bool                 { return i.enabled }
func (i *Instance) Visualizer() visual.Visualizer { return i.vis }

// Err returns the message of the current error state, or "".
func (i *Instance) Err() string { return i.errMsg }

// Save encodes the instance as {"displayName", "settings"}.
func (i *Instance) Save() ([]byte, error) {
	settings, err := i.vis.SaveConfig()
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{DisplayName: i.displayName, Settings: settings})
}

// Load applies a saved blob and re-initializes. Decode failures leave the
// previous config and display name in place and are returned for logging.
func (i *Instance) Load(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse %s config: %w", i.id, err)
	}
	if len(env.Settings) > 0 && string(env.Settings) != "null" {
		if err := i.vis.LoadConfig(env.Settings); err != nil {
			return fmt.Errorf("failed to apply %s config: %w", i.id, err)
		}
	}
	if env.DisplayName != "" {
		i.displayName = env.DisplayName
	}
	i.initialize()
	return nil
}

// initialize runs Initialize and records or clears the error state.
func (i *Instance) initialize() {
	if err := i.vis.Initialize(); err != nil {
		i.errMsg = err.Error()
		return
	}
	i.errMsg = ""
}
