package memory_map

import (
	"strings"
	"testing"
)

const sampleMaps = `7f0000001000-7f0000002000 r--p 00001000 08:01 42 /opt/game/bin/server.so
7f0000000000-7f0000001000 r-xp 00000000 08:01 42 /opt/game/bin/server.so
7f0000002000-7f0000003000 rw-p 00000000 00:00 0
7f0000010000-7f0000014000 r-xp 00000000 08:01 43 /opt/game/bin/engine.so
7ffd00000000-7ffd00021000 rw-p 00000000 00:00 0 [stack]
`

func TestParseSortsAndKeepsPaths(t *testing.T) {
	items, err := Parse(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	if items[0].Address != 0x7f0000000000 {
		t.Fatalf("expected sorted map, first at %x", items[0].Address)
	}
	if items[0].Path != "/opt/game/bin/server.so" || !items[0].IsExecutable() {
		t.Fatalf("unexpected first item %s", items[0])
	}
	if items[2].Path != "" || !items[2].IsWritable() {
		t.Fatalf("unexpected anonymous item %s", items[2])
	}
}

func TestModulesMergesMappings(t *testing.T) {
	items, err := Parse(strings.NewReader(sampleMaps))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	modules := Modules(items)
	if len(modules) != 2 {
		t.Fatalf("expected 2 modules, got %d: %v", len(modules), modules)
	}

	server := modules[0]
	if server.Name != "server.so" || server.Base != 0x7f0000000000 || server.Size != 0x2000 {
		t.Fatalf("unexpected server module %s", server)
	}
	if modules[1].Name != "engine.so" || modules[1].Size != 0x4000 {
		t.Fatalf("unexpected engine module %s", modules[1])
	}
}
