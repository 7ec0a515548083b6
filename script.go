package stagehand

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseScript decodes a JSON or YAML command script. The document is either
// a list of commands or a mapping with a "commands" list:
//
//	commands:
//	  - command: load
//	    where: "#scene"
//	    nodes:
//	      - {type: ambient_light, intensity: 0.5}
func ParseScript(data []byte) ([]Command, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		l, ok := v["commands"].([]any)
		if !ok {
			return nil, fmt.Errorf("parse script: %w", configErrorf("no commands list"))
		}
		list = l
	case nil:
		return nil, fmt.Errorf("parse script: %w", configErrorf("empty document"))
	default:
		return nil, fmt.Errorf("parse script: %w", configErrorf("unexpected top-level %T", raw))
	}
	cmds, err := DecodeCommands(list)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return cmds, nil
}

// Validate checks the command kind and that the payload the kind requires
// is present. It does not resolve queries or touch assets.
func (c *Command) Validate() error {
	switch c.Kind {
	case CommandSetup:
		if len(c.Renderer) == 0 && c.Camera == nil {
			return configErrorf("setup: neither renderer nor camera")
		}
	case CommandLoad, CommandUnload:
		if c.Nodes == nil {
			return configErrorf("%s: no nodes", c.Kind)
		}
		if c.Kind == CommandLoad && c.Where.IsZero() {
			return configErrorf("load: no where")
		}
		for i := range c.Nodes {
			if c.Kind == CommandUnload && c.Nodes[i].Where.IsZero() {
				return configErrorf("unload: node %d has no where", i)
			}
			if c.Nodes[i].Type == "model" && c.Nodes[i].Src == "" {
				return configErrorf("load: model node %d has no src", i)
			}
		}
	case CommandControl:
		if c.Controllers == nil {
			return configErrorf("control: no controllers")
		}
		for i, s := range c.Controllers {
			if s.Type == "" {
				return configErrorf("control: controller %d has no type", i)
			}
		}
	case CommandAdd, CommandAnimate:
		if c.What == nil {
			return configErrorf("%s: no what", c.Kind)
		}
		if c.What.Src == "" {
			return configErrorf("%s: no src", c.Kind)
		}
	default:
		return configErrorf("unknown command %q", c.Kind)
	}
	return nil
}

// ValidateScript validates every command and joins the failures.
func ValidateScript(cmds []Command) error {
	var errs []error
	for i := range cmds {
		if err := cmds[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("command %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
