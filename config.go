package wsa

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DialConfig describes how to reach one instrument: the host and its
// two ports, plus the timeouts applied to each socket. It is usable
// standalone by a caller that wants to store connection profiles
// (A.2), following the teacher's yaml-tagged-struct-with-defaults
// pattern (config.go's LoadConfig).
type DialConfig struct {
	Host           string        `yaml:"host"`
	ControlPort    int           `yaml:"control_port"`
	DataPort       int           `yaml:"data_port"`
	ControlTimeout time.Duration `yaml:"control_timeout"`
	DataTimeout    time.Duration `yaml:"data_timeout"`
}

// DefaultDialConfig returns a DialConfig with the default ports and
// timeouts applied, mirroring the teacher's post-unmarshal
// "set defaults if not specified" fixups in LoadConfig.
func DefaultDialConfig(host string) DialConfig {
	return DialConfig{
		Host:           host,
		ControlPort:    DefaultControlPort,
		DataPort:       DefaultDataPort,
		ControlTimeout: defaultControlTimeout,
		DataTimeout:    defaultDataTimeout,
	}
}

func (c *DialConfig) applyDefaults() {
	if c.ControlPort == 0 {
		c.ControlPort = DefaultControlPort
	}
	if c.DataPort == 0 {
		c.DataPort = DefaultDataPort
	}
	if c.ControlTimeout == 0 {
		c.ControlTimeout = defaultControlTimeout
	}
	if c.DataTimeout == 0 {
		c.DataTimeout = defaultDataTimeout
	}
}

// ParseDialString parses the wire contract's connect string
// "TCPIP::<host>[::<ctrl,data>]" (§6) into a DialConfig with defaults
// applied for any unspecified port.
func ParseDialString(s string) (DialConfig, error) {
	parts := strings.Split(s, "::")
	if len(parts) < 2 || !strings.EqualFold(parts[0], "TCPIP") {
		return DialConfig{}, newErr(KindValidation, CodeInvDialString, "ParseDialString", "expected TCPIP::<host>[::<ctrl,data>], got "+s)
	}
	cfg := DialConfig{Host: parts[1]}
	if len(parts) >= 3 {
		ports := strings.Split(parts[2], ",")
		if len(ports) != 2 {
			return DialConfig{}, newErr(KindValidation, CodeInvDialString, "ParseDialString", "port pair must be <ctrl,data>, got "+parts[2])
		}
		ctrlPort, err := strconv.Atoi(strings.TrimSpace(ports[0]))
		if err != nil {
			return DialConfig{}, newErr(KindValidation, CodeInvDialString, "ParseDialString", "invalid control port: "+ports[0])
		}
		dataPort, err := strconv.Atoi(strings.TrimSpace(ports[1]))
		if err != nil {
			return DialConfig{}, newErr(KindValidation, CodeInvDialString, "ParseDialString", "invalid data port: "+ports[1])
		}
		cfg.ControlPort = ctrlPort
		cfg.DataPort = dataPort
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ProfileFile stores a named set of DialConfig connection profiles,
// following the teacher's YAML-tagged-struct-of-structs shape
// (config.go's top-level Config).
type ProfileFile struct {
	Profiles map[string]DialConfig `yaml:"profiles"`
}

// LoadProfiles reads a YAML file of named DialConfig profiles and
// applies defaults to each, the way LoadConfig does for the
// teacher's top-level Config.
func LoadProfiles(filename string) (*ProfileFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	for name, dc := range pf.Profiles {
		dc.applyDefaults()
		pf.Profiles[name] = dc
	}
	return &pf, nil
}

// Save writes pf back out as YAML.
func (pf *ProfileFile) Save(filename string) error {
	data, err := yaml.Marshal(pf)
	if err != nil {
		return fmt.Errorf("failed to marshal profile file: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile file: %w", err)
	}
	return nil
}

// OpenDial connects to the instrument described by c. c's timeouts
// bound every socket read and write once Open has returned; the dial
// and Open's own startup queries use the default timeouts.
func OpenDial(c DialConfig, log *Logger) (*Device, error) {
	c.applyDefaults()
	dev, err := Open(c.Host, c.ControlPort, c.DataPort, log)
	if err != nil {
		return nil, err
	}
	dev.control.timeout = c.ControlTimeout
	dev.data.timeout = c.DataTimeout
	return dev, nil
}
