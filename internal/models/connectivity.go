package models

// MachineProbe captures the outcome of a reachability probe against one machine.
type MachineProbe struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	Method  string `json:"method"`
	Result  bool   `json:"result"`
}

// MaxPort is the largest valid probe port.
const MaxPort = 65535
