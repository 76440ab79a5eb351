package config

// Embedded per-board documents. Keys are the board names accepted on the
// daemon's command line; each document's top-level keys name services.

const cfgStandard = `{
  "audio": {
    "variant": "standard",
    "aif_mode": 0,
    "voice": {"mode": "normal", "delivery": "seamless"}
  },
  "heartbeat": {"interval": 10}
}`

const cfgDualMic = `{
  "audio": {
    "variant": "dual-mic",
    "aif_mode": 1,
    "voice": {"mode": "normal", "delivery": "non-seamless"},
    "pins": {"main_bias": "GPIO17", "sub_bias": "GPIO27"}
  },
  "heartbeat": {"interval": 10}
}`

const cfgAmpCompanion = `{
  "audio": {
    "variant": "amp-companion",
    "voice": {"mode": "lpsd", "delivery": "seamless"},
    "gain": {"shift": 4}
  },
  "heartbeat": {"interval": 30}
}`

var embeddedConfigs = map[string][]byte{
	"standard":      []byte(cfgStandard),
	"dual-mic":      []byte(cfgDualMic),
	"amp-companion": []byte(cfgAmpCompanion),
}
