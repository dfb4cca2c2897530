package command

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed reserved.yaml
var reservedFS embed.FS

// reservedFile is the on-disk shape of reserved.yaml: one command list per
// platform.
type reservedFile struct {
	Platforms map[string][]string `yaml:"platforms"`
}

// ReservedTable answers whether a command conflicts with a platform's own
// built-in moderation/action commands (e.g. "/ban" on Twitch, "/kick" on
// Discord), per spec.md §4.2 step 6: "Reserved tables are static data
// compiled into the binary; one entry per (platform, command)."
type ReservedTable struct {
	byPlatform map[string]map[string]struct{}
}

// LoadReservedTable parses the embedded reserved.yaml into a ReservedTable.
func LoadReservedTable() (*ReservedTable, error) {
	raw, err := reservedFS.ReadFile("reserved.yaml")
	if err != nil {
		return nil, fmt.Errorf("command: read embedded reserved.yaml: %w", err)
	}

	var f reservedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("command: parse reserved.yaml: %w", err)
	}

	byPlatform := make(map[string]map[string]struct{}, len(f.Platforms))
	for platform, commands := range f.Platforms {
		set := make(map[string]struct{}, len(commands))
		for _, c := range commands {
			set[strings.ToLower(c)] = struct{}{}
		}
		byPlatform[strings.ToLower(platform)] = set
	}

	return &ReservedTable{byPlatform: byPlatform}, nil
}

// IsReserved reports whether command conflicts with platform's reserved set.
// Comparison is case-insensitive; command should be passed without its
// prefix (e.g. "ban", not "/ban").
func (t *ReservedTable) IsReserved(platform, command string) bool {
	set, ok := t.byPlatform[strings.ToLower(platform)]
	if !ok {
		return false
	}
	_, reserved := set[strings.ToLower(command)]
	return reserved
}
