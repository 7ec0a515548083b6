package stagehand

import (
	"errors"
	"strings"
	"testing"
)

func TestParseScriptList(t *testing.T) {
	cmds, err := ParseScript([]byte(`
- command: setup
  renderer: [{type: headless}]
- command: load
  enabled: false
  where: "#scene"
  nodes: [{type: group}]
`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("commands = %d, want 2", len(cmds))
	}
	if cmds[0].Kind != CommandSetup || cmds[1].IsEnabled() {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestParseScriptCommandsKeyJSON(t *testing.T) {
	cmds, err := ParseScript([]byte(`{"commands": [{"command": "unload", "nodes": [{"where": "#scene.A"}]}]}`))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Nodes[0].Where.String() != "#scene.A" {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		config bool
	}{
		{"empty", "", true},
		{"scalar", "42", true},
		{"no commands key", "steps: []", true},
		{"bad record", "- command: load\n  nodes: 7", true},
		{"bad yaml", "- [", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "parse script:") {
				t.Errorf("err = %q, want parse script prefix", err)
			}
			if tt.config != errors.Is(err, ErrConfiguration) {
				t.Errorf("errors.Is(ErrConfiguration) = %v, want %v", !tt.config, tt.config)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		ok   bool
	}{
		{"setup camera only", Command{Kind: CommandSetup, Camera: &CameraSpec{Type: "perspective"}}, true},
		{"setup empty", Command{Kind: CommandSetup}, false},
		{"load", Command{Kind: CommandLoad, Where: Path("#scene"), Nodes: []NodeSpec{{Type: "group"}}}, true},
		{"load no where", Command{Kind: CommandLoad, Nodes: []NodeSpec{{Type: "group"}}}, false},
		{"load model no src", Command{Kind: CommandLoad, Where: Path("#scene"), Nodes: []NodeSpec{{Type: "model"}}}, false},
		{"unload no where", Command{Kind: CommandUnload, Nodes: []NodeSpec{{}}}, false},
		{"control no type", Command{Kind: CommandControl, Controllers: []ControllerSpec{{Where: Path("#camera")}}}, false},
		{"add", Command{Kind: CommandAdd, Where: Path("#scene"), What: &AssetSpec{Src: "a.glb"}}, true},
		{"animate no src", Command{Kind: CommandAnimate, What: &AssetSpec{}}, false},
		{"unknown", Command{Kind: "teleport"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestValidateScriptJoinsFailures(t *testing.T) {
	err := ValidateScript([]Command{
		{Kind: CommandSetup},
		{Kind: CommandLoad, Where: Path("#scene"), Nodes: []NodeSpec{{Type: "group"}}},
		{Kind: "teleport"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "command 0:") || !strings.Contains(msg, "command 2:") || strings.Contains(msg, "command 1:") {
		t.Errorf("err = %q", msg)
	}
	if ValidateScript(nil) != nil {
		t.Error("empty script should validate")
	}
}
